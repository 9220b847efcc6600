package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/autopost/internal/logger"
	"github.com/deusflow/autopost/internal/publish"
	"github.com/dghubble/oauth1"
)

const (
	DefaultAPIBase    = "https://api.twitter.com"
	DefaultUploadBase = "https://upload.twitter.com"
)

// Credentials are the OAuth 1.0a user-context keys.
type Credentials struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type Tweet struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Lang      string    `json:"lang"`
	CreatedAt time.Time `json:"created_at"`
}

// APIError is a non-2xx answer that is neither a rate limit nor a duplicate.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("x api error: status %d: %s", e.Status, e.Body)
}

// Client talks to the X API v2, plus the v1.1 media upload endpoint.
type Client struct {
	http       *http.Client
	APIBase    string
	UploadBase string
}

// New returns a client that signs every request with creds. base supplies
// the transport and timeout; nil means a 30s default.
func New(creds Credentials, base *http.Client) *Client {
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)
	config := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	httpClient := config.Client(ctx, token)
	httpClient.Timeout = base.Timeout
	return &Client{
		http:       httpClient,
		APIBase:    DefaultAPIBase,
		UploadBase: DefaultUploadBase,
	}
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var resp struct {
		Data *User `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, c.APIBase+"/2/users/me", nil, "", &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("users/me returned no user")
	}
	return resp.Data, nil
}

func (c *Client) UserByUsername(ctx context.Context, username string) (*User, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	var resp struct {
		Data *User `json:"data"`
	}
	endpoint := c.APIBase + "/2/users/by/username/" + url.PathEscape(username)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, "", &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("user %s not found", username)
	}
	return resp.Data, nil
}

// UserTweets returns the user's own recent tweets (no retweets or replies)
// newer than sinceID, oldest first. maxResults is clamped to 5..100.
func (c *Client) UserTweets(ctx context.Context, userID, sinceID string, maxResults int) ([]Tweet, error) {
	if maxResults < 5 {
		maxResults = 5
	}
	if maxResults > 100 {
		maxResults = 100
	}
	q := url.Values{}
	q.Set("exclude", "retweets,replies")
	q.Set("tweet.fields", "lang,created_at")
	q.Set("max_results", strconv.Itoa(maxResults))
	if sinceID != "" {
		q.Set("since_id", sinceID)
	}

	var resp struct {
		Data []Tweet `json:"data"`
	}
	endpoint := c.APIBase + "/2/users/" + url.PathEscape(userID) + "/tweets?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, endpoint, nil, "", &resp); err != nil {
		return nil, err
	}
	sort.SliceStable(resp.Data, func(i, j int) bool {
		return idLess(resp.Data[i].ID, resp.Data[j].ID)
	})
	return resp.Data, nil
}

// idLess compares numeric snowflake ids without parsing them.
func idLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// CreateTweet posts text with optional media and reply target.
func (c *Client) CreateTweet(ctx context.Context, text string, mediaIDs []string, replyTo string) (string, error) {
	payload := map[string]interface{}{"text": text}
	if len(mediaIDs) > 0 {
		payload["media"] = map[string]interface{}{"media_ids": mediaIDs}
	}
	if replyTo != "" {
		payload["reply"] = map[string]interface{}{"in_reply_to_tweet_id": replyTo}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error make JSON: %w", err)
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, c.APIBase+"/2/tweets", bytes.NewReader(body), "application/json", &resp); err != nil {
		return "", err
	}
	return resp.Data.ID, nil
}

// UploadMedia uploads an image through the v1.1 endpoint and returns its media id.
func (c *Client) UploadMedia(ctx context.Context, img *publish.Image) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	name := img.Name
	if name == "" {
		name = "image"
	}
	part, err := w.CreateFormFile("media", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	var resp struct {
		MediaIDString string `json:"media_id_string"`
	}
	endpoint := c.UploadBase + "/1.1/media/upload.json"
	if err := c.do(ctx, http.MethodPost, endpoint, &buf, w.FormDataContentType(), &resp); err != nil {
		return "", fmt.Errorf("media upload: %w", err)
	}
	if resp.MediaIDString == "" {
		return "", fmt.Errorf("media upload returned no id")
	}
	return resp.MediaIDString, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn("Failed to close response body", "error", err)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, publish.ErrRateLimited)
	case resp.StatusCode == http.StatusForbidden && strings.Contains(strings.ToLower(string(data)), "duplicate"):
		return publish.ErrDuplicate
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("error parse response: %w", err)
	}
	return nil
}

// Publisher adapts Client to publish.Publisher.
type Publisher struct {
	Client *Client
}

func (p *Publisher) Name() string { return "x" }

func (p *Publisher) Verify(ctx context.Context) (string, error) {
	u, err := p.Client.Me(ctx)
	if err != nil {
		return "", err
	}
	return "@" + u.Username, nil
}

// Publish uploads the image first when one is attached. A failed upload
// (other than a rate limit) degrades to a text-only post.
func (p *Publisher) Publish(ctx context.Context, post publish.Post) (string, error) {
	var mediaIDs []string
	if post.Image != nil && len(post.Image.Data) > 0 {
		id, err := p.Client.UploadMedia(ctx, post.Image)
		switch {
		case err == nil:
			mediaIDs = append(mediaIDs, id)
		case errors.Is(err, publish.ErrRateLimited):
			return "", err
		default:
			logger.Warn("Image upload failed, posting text only", "error", err)
		}
	}
	return p.Client.CreateTweet(ctx, post.Text, mediaIDs, post.ReplyTo)
}
