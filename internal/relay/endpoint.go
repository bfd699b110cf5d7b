package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// MessageSender delivers one outbound message to a destination endpoint.
// *Client satisfies it; tests substitute a stub.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID string, out Outbound) error
}

// Resolver picks the outbound destination, detects undeliverable-endpoint
// failures and fails over to alternate candidates, remembering the winner
// for the rest of the process lifetime. It is shared across all outbound
// sends; the active-endpoint cache is guarded by a mutex.
type Resolver struct {
	Transport MessageSender
	Logger    *slog.Logger

	// Direct is the configured primary destination, Group the configured
	// secondary. AllowList entries double as failover candidates.
	Direct    string
	Group     string
	AllowList []string

	mu     sync.Mutex
	active string
}

func NewResolver(transport MessageSender, direct, group string, allowList []string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		Transport: transport,
		Logger:    logger,
		Direct:    strings.TrimSpace(direct),
		Group:     strings.TrimSpace(group),
		AllowList: allowList,
	}
}

// Active returns the currently cached endpoint, empty when no send has
// succeeded yet.
func (r *Resolver) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Send delivers out to the selected destination: last successful endpoint,
// else the group endpoint, else the direct endpoint. An endpoint-invalid
// failure triggers failover across the deduplicated candidate list; a
// transient failure returns immediately without failover. Total failover
// exhaustion returns an error wrapping ErrDeliveryFailed.
func (r *Resolver) Send(ctx context.Context, out Outbound) error {
	target := r.pickTarget()
	if target == "" {
		return &ConfigError{Field: "telegram.chat_id"}
	}

	err := r.Transport.SendMessage(ctx, target, out)
	if err == nil {
		r.remember(target)
		return nil
	}

	var terr *TransportError
	if !errors.As(err, &terr) || !terr.EndpointInvalid() {
		r.Logger.Warn("transient delivery failure", "endpoint", target, "error", err)
		return err
	}

	r.Logger.Warn("endpoint invalid, failing over", "endpoint", target, "error", err)
	failures := []error{err}
	for _, candidate := range r.failoverCandidates(target) {
		cErr := r.Transport.SendMessage(ctx, candidate, out)
		if cErr == nil {
			r.remember(candidate)
			r.Logger.Info("failover succeeded", "endpoint", candidate)
			return nil
		}
		r.Logger.Warn("failover candidate rejected", "endpoint", candidate, "error", cErr)
		failures = append(failures, cErr)
	}
	return fmt.Errorf("%w: %v", ErrDeliveryFailed, errors.Join(failures...))
}

func (r *Resolver) pickTarget() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != "" {
		return r.active
	}
	if r.Group != "" {
		return r.Group
	}
	return r.Direct
}

func (r *Resolver) remember(endpoint string) {
	r.mu.Lock()
	r.active = endpoint
	r.mu.Unlock()
}

// failoverCandidates builds the ordered, deduplicated retry list from
// allow-list entries, the secondary and the primary, preserving first-seen
// order and excluding the endpoint that just failed.
func (r *Resolver) failoverCandidates(failed string) []string {
	seen := map[string]struct{}{failed: {}}
	out := []string{}
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range r.AllowList {
		add(id)
	}
	add(r.Group)
	add(r.Direct)
	return out
}
