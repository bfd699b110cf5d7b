package relay

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced to the user at the gateway boundary.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrSessionNotFound = errors.New("invalid or expired token")
	ErrNoActiveSession = errors.New("no active session")
	ErrSessionExpired  = errors.New("session expired")

	// ErrDeliveryFailed marks total failover exhaustion: every candidate
	// endpoint rejected the message. The caller must clean up the session
	// that triggered the send.
	ErrDeliveryFailed = errors.New("delivery failed on all endpoints")
)

// ConfigError reports a missing credential or destination. It is raised at
// send time and is fatal only to that send.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing configuration: %s", e.Field)
}

// StorageError wraps a session-store failure. Write failures are fatal to
// the operation; unreadable records during a scan are skipped instead.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ForwardingError reports that the execution session could not accept the
// command. The session record is retained so a retry can still resolve.
type ForwardingError struct {
	SourceContext string
	Err           error
}

func (e *ForwardingError) Error() string {
	return fmt.Sprintf("forward to %s: %v", e.SourceContext, e.Err)
}

func (e *ForwardingError) Unwrap() error { return e.Err }

// TransportError carries the HTTP status and API description of a failed
// outbound delivery so the resolver can decide between failover and
// immediate return.
type TransportError struct {
	Endpoint    string
	Status      int
	Description string
	Err         error
}

func (e *TransportError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("transport endpoint=%s status=%d: %s", e.Endpoint, e.Status, e.Description)
	}
	return fmt.Sprintf("transport endpoint=%s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// invalidEndpointMarkers are API descriptions that mean the destination
// itself is undeliverable, as opposed to a transient transport fault.
var invalidEndpointMarkers = []string{
	"chat not found",
	"bot was blocked by the user",
	"user is deactivated",
	"bot was kicked",
	"bot is not a member",
	"chat_id is empty",
}

// EndpointInvalid reports whether the failure condemns the endpoint itself.
// HTTP 400 and 403 always do; otherwise the description is matched against
// the known undeliverable-endpoint markers.
func (e *TransportError) EndpointInvalid() bool {
	if e.Status == 400 || e.Status == 403 {
		return true
	}
	desc := strings.ToLower(e.Description)
	for _, marker := range invalidEndpointMarkers {
		if strings.Contains(desc, marker) {
			return true
		}
	}
	return false
}
