package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chat-relay/internal/relay"
)

type app struct {
	viper  *viper.Viper
	config relay.Config
	paths  relay.Paths
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{viper: viper.New()}

	var configFile string
	var verbose bool

	root := &cobra.Command{
		Use:   "relayctl",
		Short: "Relay coding-assistant notifications to Telegram and route replies back",
		Long: strings.TrimSpace(`
relayctl bridges a long-running terminal coding-assistant session and a
Telegram chat: the assistant's hook dispatches notifications with
"relayctl notify", and the gateway daemon ("relayctl serve") routes reply
text back into the originating tmux session.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(configFile, verbose)
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ~/.config/chat-relay/config.yaml)")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(a),
		newStopCmd(a),
		newStatusCmd(a),
		newNotifyCmd(a),
		newSessionsCmd(a),
		newSetupCmd(a),
	)
	return root
}

func (a *app) load(configFile string, verbose bool) error {
	v := a.viper
	relay.SetConfigDefaults(v)
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "chat-relay"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg, err := relay.LoadConfig(v)
	if err != nil {
		return err
	}
	paths, err := relay.NewPaths(cfg.StateDir, cfg.SessionsDir)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	a.config = cfg
	a.paths = paths
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return nil
}
