package relay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the surface the relay consumes. Precedence is flag > env
// (RELAY_ prefix) > config file > default, handled by viper in the CLI.
type Config struct {
	BotToken    string
	ChatID      string
	GroupChatID string
	AllowedIDs  []string
	DisplayName string
	ForceIPv4   bool

	StateDir    string
	SessionsDir string

	TmuxSession string

	TranscribeAPIKey   string
	TranscribeModel    string
	TranscribeLocalBin string

	PollTimeoutSec int
}

// DefaultStateDir is where pid/log/offset files and the session directory
// live unless overridden.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chat-relay"
	}
	return filepath.Join(home, ".chat-relay")
}

// SetConfigDefaults installs defaults on v. Called once by the CLI before
// reading the config file.
func SetConfigDefaults(v *viper.Viper) {
	v.SetDefault("telegram.poll_timeout_sec", 30)
	v.SetDefault("telegram.force_ipv4", false)
	v.SetDefault("state.dir", DefaultStateDir())
	v.SetDefault("forward.tmux_session", DefaultSourceContext)
	v.SetDefault("transcribe.model", "gpt-4o-mini-transcribe")
}

// LoadConfig materializes Config from v.
func LoadConfig(v *viper.Viper) (Config, error) {
	stateDir := strings.TrimSpace(v.GetString("state.dir"))
	if stateDir == "" {
		stateDir = DefaultStateDir()
	}
	sessionsDir := strings.TrimSpace(v.GetString("sessions.dir"))
	if sessionsDir == "" {
		sessionsDir = filepath.Join(stateDir, "sessions")
	}

	cfg := Config{
		BotToken:           strings.TrimSpace(v.GetString("telegram.bot_token")),
		ChatID:             strings.TrimSpace(v.GetString("telegram.chat_id")),
		GroupChatID:        strings.TrimSpace(v.GetString("telegram.group_chat_id")),
		AllowedIDs:         v.GetStringSlice("telegram.allowed_ids"),
		DisplayName:        strings.TrimSpace(v.GetString("telegram.display_name")),
		ForceIPv4:          v.GetBool("telegram.force_ipv4"),
		StateDir:           stateDir,
		SessionsDir:        sessionsDir,
		TmuxSession:        strings.TrimSpace(v.GetString("forward.tmux_session")),
		TranscribeAPIKey:   strings.TrimSpace(v.GetString("transcribe.api_key")),
		TranscribeModel:    strings.TrimSpace(v.GetString("transcribe.model")),
		TranscribeLocalBin: strings.TrimSpace(v.GetString("transcribe.local_bin")),
		PollTimeoutSec:     v.GetInt("telegram.poll_timeout_sec"),
	}
	if cfg.PollTimeoutSec <= 0 {
		return Config{}, fmt.Errorf("telegram.poll_timeout_sec must be > 0")
	}
	return cfg, nil
}

// ValidateForSend checks the fields a send cannot proceed without. Raised
// at send time, fatal to that send only.
func (c Config) ValidateForSend() error {
	if c.BotToken == "" {
		return &ConfigError{Field: "telegram.bot_token"}
	}
	if c.ChatID == "" && c.GroupChatID == "" && len(c.AllowedIDs) == 0 {
		return &ConfigError{Field: "telegram.chat_id"}
	}
	return nil
}
