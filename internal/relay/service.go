package relay

import (
	"context"
	"errors"
	"log/slog"
)

// Notifier drives the outbound path: create a session for the
// notification, render it, deliver it through the resolver. It holds its
// collaborators by reference; one instance serves the whole process.
type Notifier struct {
	Store     *Store
	Resolver  *Resolver
	Formatter Formatter
	Logger    *slog.Logger

	// NewToken is GenerateToken unless a test substitutes it.
	NewToken func() (string, error)
}

func NewNotifier(store *Store, resolver *Resolver, formatter Formatter, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		Store:     store,
		Resolver:  resolver,
		Formatter: formatter,
		Logger:    logger,
		NewToken:  GenerateToken,
	}
}

// Dispatch sends one notification and returns the session token it was
// published under. A storage failure is fatal to the send. When delivery
// fails on every endpoint the orphaned session is deleted; a transient
// delivery failure keeps it and still returns the token alongside the
// error, since the session itself remains valid.
func (n *Notifier) Dispatch(ctx context.Context, notification Notification) (string, error) {
	token, err := n.NewToken()
	if err != nil {
		return "", err
	}
	id, err := n.Store.Create(notification, token)
	if err != nil {
		return "", err
	}

	out := n.Formatter.Format(notification, token)
	if err := n.Resolver.Send(ctx, out); err != nil {
		if errors.Is(err, ErrDeliveryFailed) {
			if rmErr := n.Store.Remove(id); rmErr != nil {
				n.Logger.Warn("cleanup of undeliverable session failed",
					"session_id", id, "token", token, "error", rmErr)
			}
			n.Logger.Error("notification undeliverable, session removed",
				"session_id", id, "token", token, "error", err)
			return "", err
		}
		n.Logger.Warn("notification delivery failed transiently, session kept",
			"session_id", id, "token", token, "error", err)
		return token, err
	}

	n.Logger.Info("notification dispatched",
		"session_id", id, "token", token, "project", notification.Project)
	return token, nil
}
