package relay

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// Identity is who sent the inbound message, as opaque string ids.
type Identity struct {
	UserID string
	ChatID string
}

var (
	// Explicit form: the command prefix, a token group in any case, a body.
	explicitPattern = regexp.MustCompile(`(?s)^/cmd\s+([A-Za-z0-9]{8})\s+(\S.*)$`)
	// Bare form: the message starts with an uppercase token group and a
	// body. Only uppercase prefixes are token-shaped here, so ordinary
	// lowercase words ("refactor ...") fall through to recency resolution;
	// a message that does start with 8 uppercase alphanumerics is still
	// parsed as token + body and produces a not-found error when absent.
	barePattern = regexp.MustCompile(`(?s)^([A-Z0-9]{8})\s+(\S.*)$`)
)

// Router resolves one inbound text message against the session store and
// forwards the command body into the session's execution context.
type Router struct {
	Guard   *Guard
	Store   *Store
	Forward Forwarder
	Logger  *slog.Logger

	Now func() time.Time
}

func NewRouter(guard *Guard, store *Store, forward Forwarder, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{Guard: guard, Store: store, Forward: forward, Logger: logger, Now: time.Now}
}

// Route parses text, resolves a session and forwards the command body. It
// returns the confirmation message for the user. Error values map onto the
// user-visible taxonomy: ErrUnauthorized, ErrSessionNotFound,
// ErrNoActiveSession, ErrSessionExpired, *ForwardingError.
func (r *Router) Route(ctx context.Context, id Identity, text string) (string, error) {
	if !r.Guard.IsAuthorized(id.UserID, id.ChatID) {
		r.Logger.Warn("command rejected", "user_id", id.UserID, "chat_id", id.ChatID)
		return "", ErrUnauthorized
	}

	text = strings.TrimSpace(text)
	token, body, explicit := parseCommand(text)

	var sess *Session
	var err error
	if explicit {
		sess, err = r.Store.FindByToken(token)
		if err != nil {
			return "", err
		}
		if sess == nil {
			r.Logger.Info("token not found", "token", token, "chat_id", id.ChatID)
			return "", ErrSessionNotFound
		}
	} else {
		sess, err = r.Store.FindMostRecentUnexpired("")
		if err != nil {
			return "", err
		}
		if sess == nil {
			r.Logger.Info("no active session for bare command", "chat_id", id.ChatID)
			return "", ErrNoActiveSession
		}
	}

	if sess.Expired(r.Now()) {
		if err := r.Store.Remove(sess.ID); err != nil {
			r.Logger.Warn("remove expired session", "session_id", sess.ID, "error", err)
		}
		r.Logger.Info("session expired on access", "session_id", sess.ID, "token", sess.Token)
		return "", ErrSessionExpired
	}

	if err := r.Forward.Forward(ctx, body, sess.SourceContext); err != nil {
		r.Logger.Error("forward failed",
			"session_id", sess.ID, "token", sess.Token, "source_context", sess.SourceContext, "error", err)
		// Session is kept: a retry against the same token should work.
		return "", &ForwardingError{SourceContext: sess.SourceContext, Err: err}
	}

	r.Logger.Info("command forwarded",
		"session_id", sess.ID, "token", sess.Token, "source_context", sess.SourceContext)
	return fmt.Sprintf("sent to %s:\n%s", sess.SourceContext, body), nil
}

// parseCommand splits text into (token, body). explicit is true when the
// message carried a token reference (either grammar form); a false return
// means the whole message is the body and recency resolution applies.
// The explicit form accepts tokens in any case and normalizes to
// uppercase; the bare form only matches tokens already uppercase.
func parseCommand(text string) (token, body string, explicit bool) {
	if m := explicitPattern.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1]), strings.TrimSpace(m[2]), true
	}
	if m := barePattern.FindStringSubmatch(text); m != nil {
		return m[1], strings.TrimSpace(m[2]), true
	}
	return "", text, false
}
