package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportErrorClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		err     TransportError
		invalid bool
	}{
		{"status 400", TransportError{Status: 400}, true},
		{"status 403", TransportError{Status: 403}, true},
		{"status 500", TransportError{Status: 500}, false},
		{"blocked", TransportError{Status: 200, Description: "Forbidden: bot was blocked by the user"}, true},
		{"chat not found", TransportError{Status: 200, Description: "Bad Request: chat not found"}, true},
		{"kicked", TransportError{Status: 200, Description: "bot was kicked from the group chat"}, true},
		{"deactivated", TransportError{Status: 200, Description: "Forbidden: user is deactivated"}, true},
		{"not a member", TransportError{Status: 200, Description: "bot is not a member of the channel"}, true},
		{"empty chat id", TransportError{Description: "chat_id is empty"}, true},
		{"timeout", TransportError{Status: 0, Err: errors.New("context deadline exceeded")}, false},
		{"flood wait", TransportError{Status: 429, Description: "Too Many Requests"}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.invalid, tc.err.EndpointInvalid())
		})
	}
}

func TestResolverPrefersGroupThenDirect(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{errs: map[string]error{}}
	r := NewResolver(sender, "direct", "group", nil, testLogger())
	require.NoError(t, r.Send(context.Background(), Outbound{Text: "hi"}))
	assert.Equal(t, []string{"group"}, sender.attemptLog())
	assert.Equal(t, "group", r.Active())

	r2 := NewResolver(&fakeSender{errs: map[string]error{}}, "direct", "", nil, testLogger())
	require.NoError(t, r2.Send(context.Background(), Outbound{Text: "hi"}))
	assert.Equal(t, "direct", r2.Active())
}

func TestResolverNoDestinationConfigured(t *testing.T) {
	t.Parallel()

	r := NewResolver(&fakeSender{}, "", "", nil, testLogger())
	err := r.Send(context.Background(), Outbound{Text: "hi"})
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestResolverFailoverAdoptsFirstSuccess(t *testing.T) {
	t.Parallel()

	blocked := &TransportError{Endpoint: "E1", Status: 403, Description: "Forbidden: bot was blocked by the user"}
	sender := &fakeSender{errs: map[string]error{"E1": blocked}}
	r := NewResolver(sender, "E1", "", []string{"E1", "E2", "E3"}, testLogger())

	require.NoError(t, r.Send(context.Background(), Outbound{Text: "hi"}))
	// E1 fails, the failover list skips the failed endpoint, E2 wins.
	assert.Equal(t, []string{"E1", "E2"}, sender.attemptLog())
	assert.Equal(t, "E2", r.Active())

	// Subsequent sends stick to E2 without retrying E1.
	require.NoError(t, r.Send(context.Background(), Outbound{Text: "again"}))
	assert.Equal(t, []string{"E1", "E2", "E2"}, sender.attemptLog())
}

func TestResolverTransientFailureNoFailover(t *testing.T) {
	t.Parallel()

	transient := &TransportError{Endpoint: "group", Status: 500, Description: "Internal Server Error"}
	sender := &fakeSender{errs: map[string]error{"group": transient}}
	r := NewResolver(sender, "direct", "group", []string{"other"}, testLogger())

	err := r.Send(context.Background(), Outbound{Text: "hi"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDeliveryFailed)
	assert.Equal(t, []string{"group"}, sender.attemptLog())
	assert.Empty(t, r.Active())
}

func TestResolverExhaustionIsTotalFailure(t *testing.T) {
	t.Parallel()

	invalid := func(ep string) *TransportError {
		return &TransportError{Endpoint: ep, Status: 403, Description: "Forbidden: bot was blocked by the user"}
	}
	sender := &fakeSender{errs: map[string]error{
		"E1": invalid("E1"),
		"E2": invalid("E2"),
		"E3": invalid("E3"),
	}}
	r := NewResolver(sender, "E1", "", []string{"E2", "E3"}, testLogger())

	err := r.Send(context.Background(), Outbound{Text: "hi"})
	require.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Equal(t, []string{"E1", "E2", "E3"}, sender.attemptLog())
	assert.Empty(t, r.Active())
}

func TestResolverFailoverCandidateOrder(t *testing.T) {
	t.Parallel()

	r := NewResolver(&fakeSender{}, "primary", "secondary", []string{"A", "secondary", "A", "B"}, testLogger())
	got := r.failoverCandidates("A")
	// Allow-list first-seen order, then secondary, then primary; the
	// failed endpoint and duplicates are dropped.
	assert.Equal(t, []string{"secondary", "B", "primary"}, got)
}
