package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// Outbound is one message to deliver: text plus optional formatting marker
// and inline action buttons.
type Outbound struct {
	Text      string
	ParseMode string
	Buttons   []Button
}

// Button is an inline action carrying opaque callback data of the shape
// "<purpose>:<token>".
type Button struct {
	Label        string
	CallbackData string
}

type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type Message struct {
	Chat  Chat       `json:"chat"`
	From  *User      `json:"from,omitempty"`
	Text  string     `json:"text"`
	Voice *MediaFile `json:"voice,omitempty"`
	Audio *MediaFile `json:"audio,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

type MediaFile struct {
	FileID   string `json:"file_id"`
	MimeType string `json:"mime_type,omitempty"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from,omitempty"`
	Data    string   `json:"data"`
	Message *Message `json:"message,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// Client is a minimal Bot API client over net/http. All failures are
// reported as *TransportError so callers can classify them.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewClient builds a client. With forceIPv4 the underlying dialer only
// uses tcp4; some hosts resolve api.telegram.org to unroutable v6
// addresses.
func NewClient(token string, forceIPv4 bool) *Client {
	httpClient := &http.Client{Timeout: 60 * time.Second}
	if forceIPv4 {
		dialer := &net.Dialer{Timeout: 15 * time.Second}
		httpClient.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
				return dialer.DialContext(ctx, "tcp4", addr)
			},
		}
	}
	return &Client{
		BaseURL: defaultTelegramBaseURL,
		Token:   strings.TrimSpace(token),
		HTTP:    httpClient,
	}
}

func (c *Client) endpoint(method string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = defaultTelegramBaseURL
	}
	return fmt.Sprintf("%s/bot%s/%s", base, c.Token, method)
}

// SendMessage delivers out to the chat id. The returned error, when not
// nil, is a *TransportError carrying HTTP status and API description.
func (c *Client) SendMessage(ctx context.Context, chatID string, out Outbound) error {
	if strings.TrimSpace(c.Token) == "" {
		return &ConfigError{Field: "telegram.bot_token"}
	}
	if strings.TrimSpace(chatID) == "" {
		return &TransportError{Endpoint: chatID, Description: "chat_id is empty"}
	}

	payload := map[string]any{
		"chat_id": chatID,
		"text":    out.Text,
	}
	if out.ParseMode != "" {
		payload["parse_mode"] = out.ParseMode
	}
	if len(out.Buttons) > 0 {
		row := make([]map[string]string, 0, len(out.Buttons))
		for _, b := range out.Buttons {
			row = append(row, map[string]string{"text": b.Label, "callback_data": b.CallbackData})
		}
		payload["reply_markup"] = map[string]any{"inline_keyboard": [][]map[string]string{row}}
	}

	_, err := c.call(ctx, chatID, "sendMessage", payload)
	return err
}

// GetUpdates long-polls for inbound events and returns them with the next
// offset to acknowledge.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, int64, error) {
	values := url.Values{}
	values.Set("timeout", strconv.Itoa(timeoutSec))
	if offset > 0 {
		values.Set("offset", strconv.FormatInt(offset, 10))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("getUpdates")+"?"+values.Encode(), nil)
	if err != nil {
		return nil, offset, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, offset, &TransportError{Endpoint: "getUpdates", Err: err}
	}
	defer resp.Body.Close()

	raw, err := decodeAPIResponse("getUpdates", resp)
	if err != nil {
		return nil, offset, err
	}
	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, offset, fmt.Errorf("decode updates: %w", err)
	}
	nextOffset := offset
	for _, upd := range updates {
		if upd.UpdateID >= nextOffset {
			nextOffset = upd.UpdateID + 1
		}
	}
	return updates, nextOffset, nil
}

// AnswerCallback acknowledges an inline-button press.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	_, err := c.call(ctx, "", "answerCallbackQuery", payload)
	return err
}

// BotName resolves the bot's display username via getMe.
func (c *Client) BotName(ctx context.Context) (string, error) {
	raw, err := c.call(ctx, "", "getMe", map[string]any{})
	if err != nil {
		return "", err
	}
	var me struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(raw, &me); err != nil {
		return "", fmt.Errorf("decode getMe: %w", err)
	}
	return me.Username, nil
}

// FilePath resolves a file id to the download path on the Bot API file
// host.
func (c *Client) FilePath(ctx context.Context, fileID string) (string, error) {
	raw, err := c.call(ctx, "", "getFile", map[string]any{"file_id": fileID})
	if err != nil {
		return "", err
	}
	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return "", fmt.Errorf("decode getFile: %w", err)
	}
	if file.FilePath == "" {
		return "", fmt.Errorf("getFile returned empty path for %s", fileID)
	}
	return file.FilePath, nil
}

// DownloadFile fetches file bytes previously resolved with FilePath.
func (c *Client) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = defaultTelegramBaseURL
	}
	endpoint := fmt.Sprintf("%s/file/bot%s/%s", base, c.Token, filePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: "file download", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, &TransportError{
			Endpoint:    "file download",
			Status:      resp.StatusCode,
			Description: strings.TrimSpace(string(body)),
		}
	}
	// 32 MiB is above the Bot API download limit for bot-served files.
	return io.ReadAll(io.LimitReader(resp.Body, 32<<20))
}

func (c *Client) call(ctx context.Context, endpointLabel, method string, payload map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: endpointLabel, Err: err}
	}
	defer resp.Body.Close()
	raw, err := decodeAPIResponse(endpointLabel, resp)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func decodeAPIResponse(endpointLabel string, resp *http.Response) (json.RawMessage, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransportError{Endpoint: endpointLabel, Status: resp.StatusCode, Err: err}
	}
	var payload apiResponse
	if jsonErr := json.Unmarshal(data, &payload); jsonErr != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &TransportError{
				Endpoint:    endpointLabel,
				Status:      resp.StatusCode,
				Description: strings.TrimSpace(string(data)),
			}
		}
		return nil, fmt.Errorf("decode api response: %w", jsonErr)
	}
	if !payload.OK {
		return nil, &TransportError{
			Endpoint:    endpointLabel,
			Status:      resp.StatusCode,
			Description: strings.TrimSpace(payload.Description),
		}
	}
	return payload.Result, nil
}
