package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chat-relay/internal/relay"
)

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect persisted sessions",
	}
	cmd.AddCommand(newSessionsListCmd(a), newSessionsPruneCmd(a))
	return cmd
}

func newSessionsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted session records",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := relay.NewStore(a.paths.SessionsDir, a.logger)
			sessions, err := store.List()
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("no sessions")
				return nil
			}
			now := time.Now()
			for _, s := range sessions {
				state := "active"
				if s.Expired(now) {
					state = "expired"
				}
				fmt.Printf("%s  %s  %-7s  created=%s  context=%s  project=%s\n",
					s.Token, s.ID, state, s.Created, s.SourceContext, s.Project)
			}
			return nil
		},
	}
}

func newSessionsPruneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired session records",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := relay.NewStore(a.paths.SessionsDir, a.logger)
			sessions, err := store.List()
			if err != nil {
				return err
			}
			now := time.Now()
			removed := 0
			for _, s := range sessions {
				if !s.Expired(now) {
					continue
				}
				if err := store.Remove(s.ID); err != nil {
					return err
				}
				removed++
			}
			fmt.Printf("removed %d expired session(s)\n", removed)
			return nil
		},
	}
}
