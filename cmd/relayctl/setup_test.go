package main

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/viper"
)

func TestSetupWritesConfigNonInteractive(t *testing.T) {
	out := filepath.Join(t.TempDir(), "config.yaml")

	cmd := newSetupCmd(&app{})
	cmd.SetArgs([]string{
		"--non-interactive",
		"--out", out,
		"--token", "tok-123",
		"--chat-id", "42",
		"--allowed-ids", "100,200",
		"--tmux-session", "work",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("setup: %v", err)
	}

	v := viper.New()
	v.SetConfigFile(out)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("read written config: %v", err)
	}
	if got := v.GetString("telegram.bot_token"); got != "tok-123" {
		t.Fatalf("bot token mismatch: %q", got)
	}
	if got := v.GetString("telegram.chat_id"); got != "42" {
		t.Fatalf("chat id mismatch: %q", got)
	}
	if got := v.GetStringSlice("telegram.allowed_ids"); !reflect.DeepEqual(got, []string{"100", "200"}) {
		t.Fatalf("allowed ids mismatch: %v", got)
	}
	if got := v.GetString("forward.tmux_session"); got != "work" {
		t.Fatalf("tmux session mismatch: %q", got)
	}
}

func TestSetupRequiresToken(t *testing.T) {
	cmd := newSetupCmd(&app{})
	cmd.SetArgs([]string{
		"--non-interactive",
		"--out", filepath.Join(t.TempDir(), "config.yaml"),
	})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected missing-token error")
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" 100, ,200 ,")
	if !reflect.DeepEqual(got, []string{"100", "200"}) {
		t.Fatalf("csv split mismatch: %v", got)
	}
	if got := splitCSV(""); len(got) != 0 {
		t.Fatalf("empty csv should split to nothing: %v", got)
	}
}
