package relay

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths locates the relay's on-disk state.
type Paths struct {
	StateDir    string
	SessionsDir string
	PIDFile     string
	LogFile     string
	OffsetFile  string
}

func NewPaths(stateDir, sessionsDir string) (Paths, error) {
	if stateDir == "" {
		return Paths{}, fmt.Errorf("state dir is required")
	}
	absState, err := filepath.Abs(stateDir)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve state dir: %w", err)
	}
	if sessionsDir == "" {
		sessionsDir = filepath.Join(absState, "sessions")
	}
	absSessions, err := filepath.Abs(sessionsDir)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve sessions dir: %w", err)
	}
	return Paths{
		StateDir:    absState,
		SessionsDir: absSessions,
		PIDFile:     filepath.Join(absState, "gateway.pid"),
		LogFile:     filepath.Join(absState, "gateway.log"),
		OffsetFile:  filepath.Join(absState, "gateway.offset"),
	}, nil
}

func EnsureLayout(p Paths) error {
	for _, dir := range []string{p.StateDir, p.SessionsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
