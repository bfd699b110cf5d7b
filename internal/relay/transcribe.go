package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Transcriber converts a voice/audio payload to text.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// TranscriberChain tries each provider in order until one succeeds. Each
// provider failure is recorded with its name so the aggregate error tells
// which strategy failed for what reason.
type TranscriberChain struct {
	Providers []Transcriber
	Logger    *slog.Logger
}

func (c *TranscriberChain) Name() string { return "chain" }

func (c *TranscriberChain) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(c.Providers) == 0 {
		return "", errors.New("no transcription provider configured")
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var failures []error
	for _, p := range c.Providers {
		text, err := p.Transcribe(ctx, audio)
		if err == nil {
			return text, nil
		}
		logger.Warn("transcription provider failed", "provider", p.Name(), "error", err)
		failures = append(failures, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return "", fmt.Errorf("all transcription providers failed: %w", errors.Join(failures...))
}

// OpenAITranscriber posts the audio to the hosted transcription endpoint.
type OpenAITranscriber struct {
	APIKey string
	Model  string
	HTTP   *http.Client
}

func (t *OpenAITranscriber) Name() string { return "openai" }

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if strings.TrimSpace(t.APIKey) == "" {
		return "", errors.New("api key is not configured")
	}
	if len(audio) == 0 {
		return "", errors.New("empty audio payload")
	}
	model := strings.TrimSpace(t.Model)
	if model == "" {
		model = "gpt-4o-mini-transcribe"
	}
	client := t.HTTP
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("model", model); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", "voice.ogg")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+t.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("transcription request failed: %s", strings.TrimSpace(string(raw)))
	}
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", err
	}
	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return "", errors.New("transcription returned empty text")
	}
	return text, nil
}

// LocalTranscriber shells out to a local whisper-style binary that prints
// the transcript on stdout.
type LocalTranscriber struct {
	Binary string
}

func (t *LocalTranscriber) Name() string { return "local" }

func (t *LocalTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	bin := strings.TrimSpace(t.Binary)
	if bin == "" {
		return "", errors.New("local transcriber binary is not configured")
	}
	if len(audio) == 0 {
		return "", errors.New("empty audio payload")
	}

	tmp, err := os.CreateTemp("", "relay-voice-*.ogg")
	if err != nil {
		return "", fmt.Errorf("write voice temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write voice temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write voice temp file: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin, tmp.Name())
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("run %s: %w", bin, err)
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", errors.New("local transcriber returned empty text")
	}
	return text, nil
}
