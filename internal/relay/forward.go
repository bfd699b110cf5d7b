package relay

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Forwarder injects a resolved command into an execution session. The
// source context is the opaque identifier stored on the session record.
type Forwarder interface {
	Forward(ctx context.Context, command, sourceContext string) error
}

// TmuxForwarder delivers commands with `tmux send-keys` into the pane
// named by the source context, followed by Enter.
type TmuxForwarder struct {
	Binary string
	Logger *slog.Logger
}

func NewTmuxForwarder(logger *slog.Logger) *TmuxForwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &TmuxForwarder{Binary: "tmux", Logger: logger}
}

func (f *TmuxForwarder) Forward(ctx context.Context, command, sourceContext string) error {
	target := strings.TrimSpace(sourceContext)
	if target == "" {
		target = DefaultSourceContext
	}
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("command is empty")
	}

	check := exec.CommandContext(ctx, f.Binary, "has-session", "-t", target)
	if out, err := check.CombinedOutput(); err != nil {
		return fmt.Errorf("tmux session %q not found: %s", target, compactOutput(out, err))
	}

	send := exec.CommandContext(ctx, f.Binary, "send-keys", "-t", target, command, "Enter")
	if out, err := send.CombinedOutput(); err != nil {
		return fmt.Errorf("tmux send-keys to %q: %s", target, compactOutput(out, err))
	}
	f.Logger.Debug("command injected", "source_context", target)
	return nil
}

func compactOutput(out []byte, err error) string {
	msg := strings.TrimSpace(string(out))
	if msg == "" {
		return err.Error()
	}
	return strings.Join(strings.Fields(msg), " ")
}
