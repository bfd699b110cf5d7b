package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const maxMessageRunes = 3500

// GatewayOptions wires the inbound long-poll loop.
type GatewayOptions struct {
	Client      *Client
	Guard       *Guard
	Router      *Router
	Store       *Store
	Resolver    *Resolver
	Formatter   Formatter
	Transcriber Transcriber

	// DirectChatID and GroupChatID are the callback re-delivery targets.
	DirectChatID string
	GroupChatID  string

	PollTimeoutSec int
	OffsetFile     string
	Out            io.Writer
	Logger         *slog.Logger
}

// RunGateway long-polls for inbound events and dispatches each one. Every
// error is converted into a user-facing reply; none stops the loop. The
// loop returns nil on context cancellation.
func RunGateway(ctx context.Context, opts GatewayOptions) error {
	if opts.Client == nil {
		return fmt.Errorf("telegram client is required")
	}
	if opts.Router == nil || opts.Guard == nil || opts.Store == nil {
		return fmt.Errorf("gateway router, guard and store are required")
	}
	pollTimeoutSec := opts.PollTimeoutSec
	if pollTimeoutSec <= 0 {
		pollTimeoutSec = 30
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	offset, err := loadOffset(opts.OffsetFile)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "[gateway] started (poll_timeout=%ds)\n", pollTimeoutSec)
	backoff := 2 * time.Second

	for {
		if err := ctx.Err(); err != nil {
			fmt.Fprintln(out, "[gateway] interrupted; stopping")
			return nil
		}

		updates, nextOffset, err := opts.Client.GetUpdates(ctx, offset, pollTimeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("getUpdates failed", "error", err)
			if sleepErr := sleepOrCancel(ctx, backoff); sleepErr != nil {
				return nil
			}
			if backoff < 15*time.Second {
				backoff *= 2
				if backoff > 15*time.Second {
					backoff = 15 * time.Second
				}
			}
			continue
		}
		backoff = 2 * time.Second

		for _, upd := range updates {
			switch {
			case upd.CallbackQuery != nil:
				handleCallback(ctx, opts, logger, upd.CallbackQuery)
			case upd.Message != nil:
				handleMessage(ctx, opts, logger, upd.Message)
			}
		}

		if nextOffset > offset {
			offset = nextOffset
			if err := saveOffset(opts.OffsetFile, offset); err != nil {
				logger.Warn("save offset failed", "error", err)
			}
		}
	}
}

func handleMessage(ctx context.Context, opts GatewayOptions, logger *slog.Logger, msg *Message) {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	userID := ""
	if msg.From != nil {
		userID = strconv.FormatInt(msg.From.ID, 10)
	}
	if msg.Chat.ID == 0 {
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		media := msg.Voice
		if media == nil {
			media = msg.Audio
		}
		if media == nil {
			return
		}
		transcript, err := transcribeMedia(ctx, opts, media)
		if err != nil {
			logger.Warn("voice transcription failed",
				"chat_id", chatID, "user_id", userID, "error", err)
			replyTo(ctx, opts, logger, chatID, "could not transcribe voice message")
			return
		}
		text = transcript
	}

	reply, err := opts.Router.Route(ctx, Identity{UserID: userID, ChatID: chatID}, text)
	if err != nil {
		replyTo(ctx, opts, logger, chatID, userReply(err))
		return
	}
	// Confirmations ride the resolver so they stick to the active
	// endpoint like notifications do.
	if opts.Resolver != nil {
		for _, chunk := range splitMessage(reply, maxMessageRunes) {
			if sendErr := opts.Resolver.Send(ctx, Outbound{Text: chunk}); sendErr != nil {
				logger.Warn("confirmation send failed", "chat_id", chatID, "error", sendErr)
				break
			}
		}
		return
	}
	replyTo(ctx, opts, logger, chatID, reply)
}

// handleCallback answers an inline-button press and re-delivers the
// session's notification to the requested destination.
func handleCallback(ctx context.Context, opts GatewayOptions, logger *slog.Logger, cb *CallbackQuery) {
	purpose, token, ok := parseCallbackData(cb.Data)
	if !ok {
		_ = opts.Client.AnswerCallback(ctx, cb.ID, "unrecognized action")
		return
	}

	chatID := ""
	userID := ""
	if cb.Message != nil {
		chatID = strconv.FormatInt(cb.Message.Chat.ID, 10)
	}
	if cb.From != nil {
		userID = strconv.FormatInt(cb.From.ID, 10)
	}
	if !opts.Guard.IsAuthorized(userID, chatID) {
		_ = opts.Client.AnswerCallback(ctx, cb.ID, "unauthorized")
		logger.Warn("callback rejected", "user_id", userID, "chat_id", chatID)
		return
	}

	sess, err := opts.Store.FindByToken(token)
	if err != nil || sess == nil || sess.Expired(time.Now()) {
		_ = opts.Client.AnswerCallback(ctx, cb.ID, "session is no longer available")
		return
	}

	target := opts.DirectChatID
	if purpose == CallbackGroup {
		target = opts.GroupChatID
	}
	if strings.TrimSpace(target) == "" {
		_ = opts.Client.AnswerCallback(ctx, cb.ID, "destination is not configured")
		return
	}

	out := opts.Formatter.Format(Notification{
		Project: sess.Project,
		Message: sess.Notification,
	}, sess.Token)
	if err := opts.Client.SendMessage(ctx, target, out); err != nil {
		logger.Warn("callback re-delivery failed",
			"token", token, "endpoint", target, "error", err)
		_ = opts.Client.AnswerCallback(ctx, cb.ID, "delivery failed")
		return
	}
	_ = opts.Client.AnswerCallback(ctx, cb.ID, "")
}

func transcribeMedia(ctx context.Context, opts GatewayOptions, media *MediaFile) (string, error) {
	if opts.Transcriber == nil {
		return "", errors.New("transcription is not configured")
	}
	path, err := opts.Client.FilePath(ctx, media.FileID)
	if err != nil {
		return "", err
	}
	audio, err := opts.Client.DownloadFile(ctx, path)
	if err != nil {
		return "", err
	}
	return opts.Transcriber.Transcribe(ctx, audio)
}

func replyTo(ctx context.Context, opts GatewayOptions, logger *slog.Logger, chatID, text string) {
	for _, chunk := range splitMessage(text, maxMessageRunes) {
		if err := opts.Client.SendMessage(ctx, chatID, Outbound{Text: chunk}); err != nil {
			logger.Warn("reply send failed", "chat_id", chatID, "error", err)
			return
		}
	}
}

// userReply converts a routing error into the user-facing denial or
// failure message.
func userReply(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrSessionNotFound):
		return "invalid or expired token"
	case errors.Is(err, ErrNoActiveSession):
		return "no active session"
	case errors.Is(err, ErrSessionExpired):
		return "session expired"
	default:
		return "error: " + compactError(err.Error())
	}
}

// splitMessage chunks text at newline boundaries where possible, keeping
// every chunk within maxRunes.
func splitMessage(text string, maxRunes int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxRunes <= 0 {
		maxRunes = maxMessageRunes
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return []string{text}
	}

	out := []string{}
	for start := 0; start < len(runes); {
		end := start + maxRunes
		if end >= len(runes) {
			out = append(out, strings.TrimSpace(string(runes[start:])))
			break
		}
		split := end
		for i := end; i > start+(maxRunes/2); i-- {
			if runes[i-1] == '\n' {
				split = i
				break
			}
		}
		chunk := strings.TrimSpace(string(runes[start:split]))
		if chunk != "" {
			out = append(out, chunk)
		}
		start = split
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

func compactError(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "unknown error"
	}
	raw = strings.Join(strings.Fields(strings.ReplaceAll(raw, "\n", " ")), " ")
	if len(raw) > 300 {
		return raw[:297] + "..."
	}
	return raw
}

func sleepOrCancel(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func loadOffset(path string) (int64, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read offset file: %w", err)
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return 0, nil
	}
	offset, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse offset: %w", err)
	}
	if offset < 0 {
		return 0, nil
	}
	return offset, nil
}

func saveOffset(path string, offset int64) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create offset dir: %w", err)
	}
	return os.WriteFile(path, []byte(strconv.FormatInt(offset, 10)+"\n"), 0o644)
}
