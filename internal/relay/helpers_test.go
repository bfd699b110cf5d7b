package relay

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeForwarder records forwarded commands and returns a scripted error.
type fakeForwarder struct {
	mu       sync.Mutex
	commands []string
	contexts []string
	err      error
}

func (f *fakeForwarder) Forward(_ context.Context, command, sourceContext string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.commands = append(f.commands, command)
	f.contexts = append(f.contexts, sourceContext)
	return nil
}

// fakeSender scripts per-endpoint delivery outcomes and records attempts.
type fakeSender struct {
	mu       sync.Mutex
	errs     map[string]error
	attempts []string
}

func (f *fakeSender) SendMessage(_ context.Context, chatID string, _ Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, chatID)
	return f.errs[chatID]
}

func (f *fakeSender) attemptLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.attempts...)
}
