package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	postsPath = "/wp-json/wp/v2/posts"
	mediaPath = "/wp-json/wp/v2/media"
	tokenPath = "/wp-json/jwt-auth/v1/token"
)

// User-facing messages for failures that carry no remote explanation.
const (
	PublishFailedMessage = "Error occurred on Uploading new post."
	UploadFailedMessage  = "Image upload failed"
	TokenFailedMessage   = "Error: fetch token."
	FetchFailedMessage   = "Unknown Error: fetch from WordPress."
)

// RequestError wraps a transport or decoding failure with the message the
// user gets for it.
type RequestError struct {
	UserMessage string
	Err         error
}

func (e *RequestError) Error() string { return fmt.Sprintf("%s: %v", e.UserMessage, e.Err) }
func (e *RequestError) Unwrap() error { return e.Err }

// Publisher talks to the WordPress REST API. One Publisher can serve many
// sites; taxonomy lookups are cached per site URL.
type Publisher struct {
	client *http.Client
	logger *zap.Logger
	cache  *cache.Cache
	now    func() time.Time
}

// New creates a Publisher. A nil client gets a 60s timeout client.
func New(client *http.Client, logger *zap.Logger) *Publisher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client: client,
		logger: logger,
		cache:  cache.New(10*time.Minute, 30*time.Minute),
		now:    time.Now,
	}
}

// Publish creates a post. It makes exactly one request; the post counts as
// created only when the response body carries an "id".
func (p *Publisher) Publish(ctx context.Context, site Site, req PublishRequest) (Post, error) {
	if err := req.validate(); err != nil {
		return Post{}, err
	}
	if req.Status == "" {
		req.Status = StatusPublish
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := [][2]string{
		{"title", req.Title},
		{"content", req.Content},
		{"excerpt", req.Excerpt},
		{"status", req.Status},
	}
	if len(req.Categories) > 0 {
		fields = append(fields, [2]string{"categories", joinIDs(req.Categories)})
	}
	if len(req.Tags) > 0 {
		fields = append(fields, [2]string{"tags", joinIDs(req.Tags)})
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return Post{}, &RequestError{UserMessage: PublishFailedMessage, Err: err}
		}
	}
	if err := writer.Close(); err != nil {
		return Post{}, &RequestError{UserMessage: PublishFailedMessage, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, site.BaseURL()+postsPath, &body)
	if err != nil {
		return Post{}, &RequestError{UserMessage: PublishFailedMessage, Err: err}
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+site.Token)

	raw, err := p.do(httpReq)
	if err != nil {
		return Post{}, &RequestError{UserMessage: PublishFailedMessage, Err: err}
	}

	var post Post
	if err := decodeObject(raw, "id", &post); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			p.logger.Warn("publish rejected",
				zap.String("site", site.BaseURL()),
				zap.String("code", apiErr.Code),
				zap.Int("status", apiErr.Data.Status))
			return Post{}, apiErr
		}
		return Post{}, &RequestError{UserMessage: PublishFailedMessage, Err: err}
	}
	p.logger.Info("post published",
		zap.String("site", site.BaseURL()),
		zap.Int64("post_id", post.ID),
		zap.String("link", post.Link))
	return post, nil
}

// do sends req and returns the response body regardless of status; WordPress
// explains failures in the body.
func (p *Publisher) do(req *http.Request) ([]byte, error) {
	start := p.now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("wordpress request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", p.now().Sub(start)))
	return body, nil
}

func (p *Publisher) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	body, err := p.do(req)
	if err != nil {
		return err
	}
	return decodeWP(body, out)
}

// decodeObject decodes body into out when it is a JSON object holding key;
// a WordPress error body becomes *APIError.
func decodeObject(body []byte, key string, out any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if _, ok := fields[key]; ok {
		return json.Unmarshal(body, out)
	}
	if apiErr := apiErrorFrom(fields, body); apiErr != nil {
		return apiErr
	}
	return fmt.Errorf("unexpected response without %q", key)
}

// decodeWP decodes list or object responses, turning error bodies into
// *APIError.
func decodeWP(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if apiErr := apiErrorFrom(fields, trimmed); apiErr != nil {
			return apiErr
		}
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func apiErrorFrom(fields map[string]json.RawMessage, body []byte) *APIError {
	_, hasCode := fields["code"]
	_, hasMessage := fields["message"]
	if !hasCode || !hasMessage {
		return nil
	}
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return nil
	}
	return &apiErr
}

// UserMessage maps a publisher error to the text shown to the user: remote
// messages verbatim, local failures as a fixed sentence.
func UserMessage(err error) string {
	var apiErr *APIError
	var reqErr *RequestError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.As(err, &reqErr):
		return reqErr.UserMessage
	case errors.Is(err, ErrTitleRequired), errors.Is(err, ErrMediaTooLarge),
		errors.Is(err, ErrNoCredentials):
		return err.Error()
	default:
		return FetchFailedMessage
	}
}
