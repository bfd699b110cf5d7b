package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"chat-relay/internal/relay"
)

func newNotifyCmd(a *app) *cobra.Command {
	var (
		kind    string
		project string
		message string
		excerpt string
		source  string
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Dispatch one notification to the configured chat",
		Long: strings.TrimSpace(`
Dispatch one notification and print the session token the recipient can
reply with. The message is taken from --message, or from stdin when the
flag is empty. Intended to be invoked from the coding assistant's
completion/input-needed hook.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config
			if err := cfg.ValidateForSend(); err != nil {
				return err
			}

			if strings.TrimSpace(message) == "" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read message from stdin: %w", err)
				}
				message = strings.TrimSpace(string(data))
			}
			if message == "" {
				return fmt.Errorf("notification message is empty")
			}
			if strings.TrimSpace(source) == "" {
				source = cfg.TmuxSession
			}

			if err := relay.EnsureLayout(a.paths); err != nil {
				return err
			}
			client := relay.NewClient(cfg.BotToken, cfg.ForceIPv4)
			store := relay.NewStore(a.paths.SessionsDir, a.logger)
			resolver := relay.NewResolver(client, cfg.ChatID, cfg.GroupChatID, cfg.AllowedIDs, a.logger)
			formatter := relay.Formatter{BotName: cfg.DisplayName}
			notifier := relay.NewNotifier(store, resolver, formatter, a.logger)

			token, err := notifier.Dispatch(cmd.Context(), relay.Notification{
				Kind:          kind,
				Project:       project,
				Message:       message,
				Excerpt:       excerpt,
				SourceContext: source,
			})
			if err != nil {
				// A transient delivery failure keeps the session; the hook
				// still needs its token to reference it later.
				if token != "" {
					fmt.Println(token)
				}
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "notification kind (e.g. completion, input-needed)")
	cmd.Flags().StringVar(&project, "project", "", "project name shown in the message")
	cmd.Flags().StringVar(&message, "message", "", "notification text (stdin when empty)")
	cmd.Flags().StringVar(&excerpt, "excerpt", "", "optional short conversation excerpt")
	cmd.Flags().StringVar(&source, "source", "", "execution session to forward replies into (default from config)")
	return cmd
}
