package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSetupCmd(a *app) *cobra.Command {
	var (
		outFile        string
		nonInteractive bool
		token          string
		chatID         string
		groupChatID    string
		allowedIDs     []string
		tmuxSession    string
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write the relay config file",
		Long: strings.TrimSpace(`
Write the config file the other commands read. Values come from flags,
falling back to the currently loaded configuration; without
--non-interactive each value is confirmed on stdin.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config
			if !cmd.Flags().Changed("token") {
				token = cfg.BotToken
			}
			if !cmd.Flags().Changed("chat-id") {
				chatID = cfg.ChatID
			}
			if !cmd.Flags().Changed("group-chat-id") {
				groupChatID = cfg.GroupChatID
			}
			if !cmd.Flags().Changed("allowed-ids") {
				allowedIDs = cfg.AllowedIDs
			}
			if !cmd.Flags().Changed("tmux-session") {
				tmuxSession = cfg.TmuxSession
			}
			if outFile == "" {
				outFile = defaultConfigFile()
			}

			if !nonInteractive {
				reader := bufio.NewReader(os.Stdin)
				fmt.Printf("Writing %s\n\n", outFile)
				var err error
				if token, err = promptValue(reader, "Bot token", token); err != nil {
					return err
				}
				if chatID, err = promptValue(reader, "Direct chat id", chatID); err != nil {
					return err
				}
				if groupChatID, err = promptValue(reader, "Group chat id (optional)", groupChatID); err != nil {
					return err
				}
				csv, err := promptValue(reader, "Allowed ids (CSV, optional)", strings.Join(allowedIDs, ","))
				if err != nil {
					return err
				}
				allowedIDs = splitCSV(csv)
				if tmuxSession, err = promptValue(reader, "Tmux session", tmuxSession); err != nil {
					return err
				}
			}

			if strings.TrimSpace(token) == "" {
				return fmt.Errorf("bot token is required")
			}

			if err := os.MkdirAll(filepath.Dir(outFile), 0o755); err != nil {
				return fmt.Errorf("create config dir: %w", err)
			}
			out := viper.New()
			out.Set("telegram.bot_token", strings.TrimSpace(token))
			out.Set("telegram.chat_id", strings.TrimSpace(chatID))
			out.Set("telegram.group_chat_id", strings.TrimSpace(groupChatID))
			out.Set("telegram.allowed_ids", allowedIDs)
			out.Set("forward.tmux_session", strings.TrimSpace(tmuxSession))
			if err := out.WriteConfigAs(outFile); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("config written: %s\n", outFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&outFile, "out", "", "config file to write (default ~/.config/chat-relay/config.yaml)")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "save without interactive prompts")
	cmd.Flags().StringVar(&token, "token", "", "telegram bot token")
	cmd.Flags().StringVar(&chatID, "chat-id", "", "direct chat id")
	cmd.Flags().StringVar(&groupChatID, "group-chat-id", "", "group chat id")
	cmd.Flags().StringSliceVar(&allowedIDs, "allowed-ids", nil, "allowed user/chat ids")
	cmd.Flags().StringVar(&tmuxSession, "tmux-session", "", "default tmux session for forwarded commands")
	return cmd
}

func defaultConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "chat-relay", "config.yaml")
}

func promptValue(reader *bufio.Reader, label, current string) (string, error) {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return current, nil
	}
	return line, nil
}

func splitCSV(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
