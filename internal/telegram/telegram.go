package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/deusflow/autopost/internal/logger"
	"github.com/deusflow/autopost/internal/publish"
	"github.com/deusflow/autopost/internal/textnorm"
)

const (
	DefaultBaseURL = "https://api.telegram.org"
	// Telegram caption max ~1024 chars
	maxCaption = 1000
	maxRetries = 3
)

// Client is a Bot API client bound to one chat or channel.
type Client struct {
	Token   string
	ChatID  string
	BaseURL string
	// DisablePreview turns off link previews for text messages.
	DisablePreview bool

	http  *http.Client
	sleep func(time.Duration)
}

func New(token, chatID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		Token:   token,
		ChatID:  chatID,
		BaseURL: DefaultBaseURL,
		http:    httpClient,
		sleep:   time.Sleep,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// SendMessage sends text message to the chat with retry logic. Returns the message id.
func (c *Client) SendMessage(ctx context.Context, text string) (string, error) {
	payload := map[string]interface{}{
		"chat_id":                  c.ChatID,
		"text":                     text,
		"disable_web_page_preview": c.DisablePreview,
	}
	return c.withRetry(ctx, "message", func() (string, error) {
		return c.postJSON(ctx, "sendMessage", payload)
	})
}

// SendPhoto sends a photo with optional caption. Image data is uploaded as
// multipart; otherwise the image URL is passed to Telegram.
func (c *Client) SendPhoto(ctx context.Context, img *publish.Image, caption string) (string, error) {
	caption = textnorm.Clamp(caption, maxCaption)
	return c.withRetry(ctx, "photo", func() (string, error) {
		if len(img.Data) > 0 {
			return c.sendPhotoUpload(ctx, img, caption)
		}
		return c.postJSON(ctx, "sendPhoto", map[string]interface{}{
			"chat_id": c.ChatID,
			"photo":   img.URL,
			"caption": caption,
		})
	})
}

// GetMe returns the bot username.
func (c *Client) GetMe(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("getMe"), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	var me struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(resp.Result, &me); err != nil {
		return "", fmt.Errorf("error parse getMe: %w", err)
	}
	return me.Username, nil
}

// withRetry retries with exponential backoff (2^attempt seconds). Rate
// limits are returned at once.
func (c *Client) withRetry(ctx context.Context, what string, send func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		id, err := send()
		if err == nil {
			logger.Debug("Sent to Telegram", "kind", what, "attempt", attempt)
			return id, nil
		}
		if errors.Is(err, publish.ErrRateLimited) || ctx.Err() != nil {
			return "", err
		}
		lastErr = err
		logger.Warn("Error send to Telegram", "kind", what, "attempt", attempt, "max", maxRetries, "error", err)

		if attempt < maxRetries {
			waitTime := time.Duration(1<<attempt) * time.Second
			c.sleep(waitTime)
		}
	}
	return "", fmt.Errorf("can't send %s after %d tries: %w", what, maxRetries, lastErr)
}

func (c *Client) postJSON(ctx context.Context, method string, payload map[string]interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error make JSON: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	return messageID(resp.Result), nil
}

func (c *Client) sendPhotoUpload(ctx context.Context, img *publish.Image, caption string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("chat_id", c.ChatID)
	if caption != "" {
		_ = w.WriteField("caption", caption)
	}
	name := img.Name
	if name == "" {
		name = "photo.jpg"
	}
	part, err := w.CreateFormFile("photo", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("sendPhoto"), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	return messageID(resp.Result), nil
}

func (c *Client) do(req *http.Request) (*apiResponse, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error HTTP request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("Failed to close response body", "error", err)
		}
	}(resp.Body)

	var out apiResponse
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	_ = json.Unmarshal(data, &out)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("telegram retry after %ds: %w", out.Parameters.RetryAfter, publish.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK || !out.OK {
		return nil, fmt.Errorf("telegram API error: status %d: %s", resp.StatusCode, out.Description)
	}
	return &out, nil
}

func (c *Client) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.BaseURL, c.Token, method)
}

func messageID(raw json.RawMessage) string {
	var msg struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.MessageID == 0 {
		return ""
	}
	return strconv.FormatInt(msg.MessageID, 10)
}

// Publisher adapts Client to publish.Publisher.
type Publisher struct {
	Client *Client
}

func (p *Publisher) Name() string { return "telegram" }

func (p *Publisher) Verify(ctx context.Context) (string, error) {
	name, err := p.Client.GetMe(ctx)
	if err != nil {
		return "", err
	}
	return "@" + name, nil
}

// Publish sends a photo with the text as caption when an image is attached,
// otherwise a plain message. Replies are not threaded on Telegram.
func (p *Publisher) Publish(ctx context.Context, post publish.Post) (string, error) {
	if post.Image != nil && (len(post.Image.Data) > 0 || post.Image.URL != "") {
		return p.Client.SendPhoto(ctx, post.Image, post.Text)
	}
	return p.Client.SendMessage(ctx, post.Text)
}
