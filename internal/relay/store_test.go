package relay

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), testLogger())
}

func storeAt(s *Store, at time.Time) *Store {
	s.Now = func() time.Time { return at }
	return s
}

func TestStoreCreatePersistsStableShape(t *testing.T) {
	t.Parallel()

	base := time.Unix(1_700_000_000, 0).UTC()
	s := storeAt(newTestStore(t), base)

	id, err := s.Create(Notification{
		Project:       "parser",
		Message:       "task finished",
		SourceContext: "agent:1",
	}, "ab12cd34")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	data, err := os.ReadFile(filepath.Join(s.Dir, id+".json"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"id", "token", "type", "created", "expires", "createdAt", "expiresAt", "sourceContext", "project", "notification"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, "AB12CD34", raw["token"], "token is stored uppercased")
	assert.Equal(t, float64(base.Unix()), raw["createdAt"])
	assert.Equal(t, float64(base.Unix()+86400), raw["expiresAt"])

	// No stray temp files once the record is published.
	entries, err := os.ReadDir(s.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestStoreCreateDefaultsSourceContext(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.Create(Notification{Message: "done"}, "AAAA1111")
	require.NoError(t, err)

	sess, err := s.FindByToken("AAAA1111")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, DefaultSourceContext, sess.SourceContext)
	assert.Equal(t, "notification", sess.Type)
}

func TestStoreFindByTokenMissing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	sess, err := s.FindByToken("ZZZZ9999")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestStoreExpiryBoundary(t *testing.T) {
	t.Parallel()

	base := time.Unix(1_700_000_000, 0).UTC()
	s := storeAt(newTestStore(t), base)
	_, err := s.Create(Notification{Message: "m"}, "AB12CD34")
	require.NoError(t, err)

	sess, err := s.FindByToken("AB12CD34")
	require.NoError(t, err)
	require.NotNil(t, sess)

	// Resolvable up to and excluding T+86400.
	assert.False(t, sess.Expired(base.Add(86399*time.Second)))
	assert.True(t, sess.Expired(base.Add(86400*time.Second)))

	s.Now = func() time.Time { return base.Add(86399 * time.Second) }
	recent, err := s.FindMostRecentUnexpired("")
	require.NoError(t, err)
	assert.NotNil(t, recent)

	s.Now = func() time.Time { return base.Add(86400 * time.Second) }
	recent, err = s.FindMostRecentUnexpired("")
	require.NoError(t, err)
	assert.Nil(t, recent)
}

func TestStoreFindMostRecentUnexpired(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.Now = func() time.Time { return time.Unix(100, 0) }
	_, err := s.Create(Notification{Message: "older"}, "AAAAAAAA")
	require.NoError(t, err)
	s.Now = func() time.Time { return time.Unix(200, 0) }
	_, err = s.Create(Notification{Message: "newer"}, "BBBBBBBB")
	require.NoError(t, err)
	s.Now = func() time.Time { return time.Unix(300, 0) }

	sess, err := s.FindMostRecentUnexpired("")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "BBBBBBBB", sess.Token)
}

func TestStoreScopeFilter(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.Now = func() time.Time { return time.Unix(100, 0) }
	_, err := s.Create(Notification{Message: "a", SourceContext: "ctx-a"}, "AAAAAAAA")
	require.NoError(t, err)
	s.Now = func() time.Time { return time.Unix(200, 0) }
	_, err = s.Create(Notification{Message: "b", SourceContext: "ctx-b"}, "BBBBBBBB")
	require.NoError(t, err)

	sess, err := s.FindMostRecentUnexpired("ctx-a")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "AAAAAAAA", sess.Token)
}

func TestStoreRemoveMissingIsNoop(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.Remove("no-such-id"))
}

func TestStoreScanSkipsCorruptRecords(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.Create(Notification{Message: "good"}, "AB12CD34")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "broken.json"), []byte("{not json"), 0o644))

	sess, err := s.FindByToken("AB12CD34")
	require.NoError(t, err)
	assert.NotNil(t, sess)

	all, err := s.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStoreScanIgnoresTempFiles(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(s.Dir, 0o755))
	// A half-written record still under its temp name must stay invisible.
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, ".session-123"), []byte(`{"token":"AB12CD34"`), 0o644))

	sess, err := s.FindByToken("AB12CD34")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestStoreMissingDirBehavesEmpty(t *testing.T) {
	t.Parallel()

	s := NewStore(filepath.Join(t.TempDir(), "never-created"), testLogger())
	sess, err := s.FindByToken("AB12CD34")
	require.NoError(t, err)
	assert.Nil(t, sess)

	all, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, all)
}
