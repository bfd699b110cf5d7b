package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T, sender MessageSender) (*Notifier, *Store) {
	t.Helper()
	store := newTestStore(t)
	resolver := NewResolver(sender, "E1", "", []string{"E1", "E2"}, testLogger())
	n := NewNotifier(store, resolver, Formatter{}, testLogger())
	n.NewToken = func() (string, error) { return "AB12CD34", nil }
	return n, store
}

func TestNotifierDispatchCreatesSessionAndSends(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	n, store := newTestNotifier(t, sender)

	token, err := n.Dispatch(context.Background(), Notification{Project: "p", Message: "done"})
	require.NoError(t, err)
	assert.Equal(t, "AB12CD34", token)

	sess, err := store.FindByToken("AB12CD34")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "p", sess.Project)
	assert.Equal(t, []string{"E1"}, sender.attemptLog())
}

func TestNotifierTotalDeliveryFailureDeletesSession(t *testing.T) {
	t.Parallel()

	invalid := func(ep string) *TransportError {
		return &TransportError{Endpoint: ep, Status: 403, Description: "Forbidden: bot was blocked by the user"}
	}
	sender := &fakeSender{errs: map[string]error{"E1": invalid("E1"), "E2": invalid("E2")}}
	n, store := newTestNotifier(t, sender)

	_, err := n.Dispatch(context.Background(), Notification{Message: "done"})
	require.ErrorIs(t, err, ErrDeliveryFailed)

	// Orphaned session cleanup.
	sess, err := store.FindByToken("AB12CD34")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestNotifierTransientFailureKeepsSession(t *testing.T) {
	t.Parallel()

	transient := &TransportError{Endpoint: "E1", Status: 500, Description: "Internal Server Error"}
	sender := &fakeSender{errs: map[string]error{"E1": transient}}
	n, store := newTestNotifier(t, sender)

	token, err := n.Dispatch(context.Background(), Notification{Message: "done"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDeliveryFailed)
	assert.Equal(t, "AB12CD34", token, "kept session's token is still returned")

	sess, findErr := store.FindByToken("AB12CD34")
	require.NoError(t, findErr)
	assert.NotNil(t, sess, "transient failure must retain the session")
}
