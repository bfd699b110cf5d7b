package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chat-relay/internal/relay"
)

func newServeCmd(a *app) *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the inbound gateway (daemonized unless --foreground)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config
			if err := cfg.ValidateForSend(); err != nil {
				return err
			}

			if !foreground {
				daemonArgs := []string{"serve", "--foreground"}
				if f := cmd.Flags().Lookup("config"); f != nil && f.Changed {
					daemonArgs = append(daemonArgs, "--config", f.Value.String())
				}
				pid, err := relay.StartDaemon(a.paths, daemonArgs)
				if err != nil {
					return err
				}
				fmt.Printf("gateway started (pid=%d)\n", pid)
				fmt.Printf("log: %s\n", a.paths.LogFile)
				fmt.Printf("pid: %s\n", a.paths.PIDFile)
				return nil
			}

			if err := relay.EnsureLayout(a.paths); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := relay.NewClient(cfg.BotToken, cfg.ForceIPv4)
			guard := relay.NewGuard(cfg.AllowedIDs, cfg.ChatID)
			store := relay.NewStore(a.paths.SessionsDir, a.logger)
			router := relay.NewRouter(guard, store, relay.NewTmuxForwarder(a.logger), a.logger)
			resolver := relay.NewResolver(client, cfg.ChatID, cfg.GroupChatID, cfg.AllowedIDs, a.logger)
			formatter := relay.Formatter{BotName: botName(ctx, a, client)}

			return relay.RunGateway(ctx, relay.GatewayOptions{
				Client:         client,
				Guard:          guard,
				Router:         router,
				Store:          store,
				Resolver:       resolver,
				Formatter:      formatter,
				Transcriber:    buildTranscriber(cfg),
				DirectChatID:   cfg.ChatID,
				GroupChatID:    cfg.GroupChatID,
				PollTimeoutSec: cfg.PollTimeoutSec,
				OffsetFile:     a.paths.OffsetFile,
				Out:            os.Stdout,
				Logger:         a.logger,
			})
		},
	}

	cmd.Flags().BoolVar(&foreground, "foreground", false, "run in foreground instead of daemonizing")
	return cmd
}

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the gateway daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := relay.StopDaemon(a.paths)
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show gateway daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, running, stale := relay.PIDState(a.paths.PIDFile)
			fmt.Printf("state dir: %s\n", a.paths.StateDir)
			fmt.Printf("sessions:  %s\n", a.paths.SessionsDir)
			switch {
			case running:
				fmt.Printf("gateway:   running (pid=%d)\n", pid)
			case stale:
				fmt.Printf("gateway:   stopped (stale pid=%d)\n", pid)
			default:
				fmt.Println("gateway:   stopped")
			}
			return nil
		},
	}
}

// botName resolves the display name shown in reply hints: the configured
// override wins, else getMe, else empty. A lookup failure is not fatal.
func botName(ctx context.Context, a *app, client *relay.Client) string {
	if a.config.DisplayName != "" {
		return a.config.DisplayName
	}
	name, err := client.BotName(ctx)
	if err != nil {
		a.logger.Warn("bot name lookup failed", "error", err)
		return ""
	}
	return name
}

func buildTranscriber(cfg relay.Config) relay.Transcriber {
	providers := []relay.Transcriber{}
	if cfg.TranscribeAPIKey != "" {
		providers = append(providers, &relay.OpenAITranscriber{
			APIKey: cfg.TranscribeAPIKey,
			Model:  cfg.TranscribeModel,
		})
	}
	if cfg.TranscribeLocalBin != "" {
		providers = append(providers, &relay.LocalTranscriber{Binary: cfg.TranscribeLocalBin})
	}
	if len(providers) == 0 {
		return nil
	}
	return &relay.TranscriberChain{Providers: providers}
}
