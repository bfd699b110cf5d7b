package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists session records as one JSON file per session. Writes are
// atomic from a reader's perspective: records are written to a temp file
// in the same directory and published with a rename, so a concurrent scan
// sees either the whole record or none of it. A scan racing a create or
// delete may miss or include that record; that is acceptable under the
// relay's best-effort semantics and must not be fixed with a global lock.
type Store struct {
	Dir    string
	Logger *slog.Logger

	// Now is the clock; injectable for expiry tests.
	Now func() time.Time
}

func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Dir: dir, Logger: logger, Now: time.Now}
}

// Create persists a new session for the notification under the given
// token and returns the session id. Expiry is fixed at creation time.
func (s *Store) Create(n Notification, token string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", &StorageError{Op: "create", Err: fmt.Errorf("create sessions dir: %w", err)}
	}

	now := s.Now().UTC()
	sourceContext := strings.TrimSpace(n.SourceContext)
	if sourceContext == "" {
		sourceContext = DefaultSourceContext
	}
	kind := strings.TrimSpace(n.Kind)
	if kind == "" {
		kind = "notification"
	}
	sess := Session{
		ID:            uuid.NewString(),
		Token:         strings.ToUpper(strings.TrimSpace(token)),
		Type:          kind,
		Created:       now.Format(time.RFC3339),
		Expires:       now.Add(sessionTTL * time.Second).Format(time.RFC3339),
		CreatedAt:     now.Unix(),
		ExpiresAt:     now.Unix() + sessionTTL,
		SourceContext: sourceContext,
		Project:       n.Project,
		Notification:  n.Message,
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return "", &StorageError{Op: "create", Err: fmt.Errorf("marshal session: %w", err)}
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.Dir, ".session-*")
	if err != nil {
		return "", &StorageError{Op: "create", Err: fmt.Errorf("create temp record: %w", err)}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return "", &StorageError{Op: "create", Err: fmt.Errorf("write temp record: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", &StorageError{Op: "create", Err: fmt.Errorf("close temp record: %w", err)}
	}
	if err := os.Rename(tmpPath, s.recordPath(sess.ID)); err != nil {
		_ = os.Remove(tmpPath)
		return "", &StorageError{Op: "create", Err: fmt.Errorf("publish record: %w", err)}
	}
	return sess.ID, nil
}

// FindByToken returns the first persisted session whose token matches
// exactly, or nil when none does. Callers normalize case beforehand.
// Unreadable individual records are skipped and logged, not fatal.
func (s *Store) FindByToken(token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	var found *Session
	err := s.scan(func(sess Session) bool {
		if sess.Token == token {
			found = &sess
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// FindMostRecentUnexpired returns the unexpired session with the largest
// CreatedAt, or nil when none exists. Ties keep the first record in scan
// encounter order. The scope narrows by source context when non-empty;
// the router currently passes an empty scope.
func (s *Store) FindMostRecentUnexpired(scope string) (*Session, error) {
	now := s.Now()
	scope = strings.TrimSpace(scope)
	var best *Session
	err := s.scan(func(sess Session) bool {
		if sess.Expired(now) {
			return true
		}
		if scope != "" && sess.SourceContext != scope {
			return true
		}
		if best == nil || sess.CreatedAt > best.CreatedAt {
			copied := sess
			best = &copied
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return best, nil
}

// Remove deletes the session record. A missing record is a no-op.
func (s *Store) Remove(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if err := os.Remove(s.recordPath(id)); err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "remove", Err: err}
	}
	return nil
}

// List returns every readable session record in scan order.
func (s *Store) List() ([]Session, error) {
	out := []Session{}
	err := s.scan(func(sess Session) bool {
		out = append(out, sess)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.Dir, id+".json")
}

// scan walks the session directory in os.ReadDir order (name-sorted),
// invoking visit for each readable record until visit returns false.
func (s *Store) scan(visit func(Session) bool) error {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &StorageError{Op: "scan", Err: err}
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(s.Dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			s.Logger.Warn("skipping unreadable session record", "path", path, "error", err)
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			s.Logger.Warn("skipping corrupt session record", "path", path, "error", err)
			continue
		}
		if !visit(sess) {
			return nil
		}
	}
	return nil
}
