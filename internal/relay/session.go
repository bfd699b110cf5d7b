package relay

import "time"

// sessionTTL is the fixed lifetime of a session record.
const sessionTTL = 86400 // seconds

// DefaultSourceContext is the sentinel execution session used when a
// notification does not name one.
const DefaultSourceContext = "default"

// Notification is the payload dispatched by the coding-assistant hook. The
// relay treats it as opaque: it is copied into the session record and into
// the outbound message but never reinterpreted.
type Notification struct {
	Kind          string `json:"kind,omitempty"`
	Project       string `json:"project"`
	Message       string `json:"message"`
	Excerpt       string `json:"excerpt,omitempty"`
	SourceContext string `json:"sourceContext,omitempty"`
}

// Session is the durable record binding a token to an execution context.
// The JSON shape is stable for cross-process interop: the assistant hook
// and the relay daemon read the same files.
type Session struct {
	ID            string `json:"id"`
	Token         string `json:"token"`
	Type          string `json:"type"`
	Created       string `json:"created"`
	Expires       string `json:"expires"`
	CreatedAt     int64  `json:"createdAt"`
	ExpiresAt     int64  `json:"expiresAt"`
	SourceContext string `json:"sourceContext"`
	Project       string `json:"project"`
	Notification  string `json:"notification"`
}

// Expired reports whether the session is past its deadline. A session is
// resolvable up to and excluding ExpiresAt.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.Unix()
}
