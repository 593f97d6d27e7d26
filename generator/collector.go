package generator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"auto_wordpress_post_publisher/draft"
)

const (
	// DefaultMaxTokens applies when the caller doesn't pick a budget.
	DefaultMaxTokens = 4096
	// charsPerToken: each prompt character is budgeted as four tokens.
	charsPerToken = 4
)

// ErrInvalidTemperature rejects temperatures the service would refuse.
var ErrInvalidTemperature = errors.New("temperature must be between 0 and 2")

// ModelParams are the user's choices for one request.
type ModelParams struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// EffectiveMaxTokens subtracts the estimated prompt size from the requested
// budget. The result can be zero or negative for long prompts.
func EffectiveMaxTokens(requested int, prompt string) int {
	if requested <= 0 {
		requested = DefaultMaxTokens
	}
	return requested - charsPerToken*utf8.RuneCountInString(prompt)
}

// Collector runs completion requests for one wizard session, one at a time.
type Collector struct {
	client CompletionClient
	logger *zap.Logger
	busy   atomic.Bool
}

func NewCollector(client CompletionClient, logger *zap.Logger) (*Collector, error) {
	if client == nil {
		return nil, errors.New("completion client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{client: client, logger: logger}, nil
}

// Busy reports whether a request is in flight.
func (c *Collector) Busy() bool { return c.busy.Load() }

// Request sends prompt to the completion service and returns the resulting
// chat entry. A call made while another is in flight fails with ErrBusy and
// never reaches the network. Failures are not retried.
func (c *Collector) Request(ctx context.Context, prompt string, params ModelParams) (draft.ChatEntry, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return draft.ChatEntry{}, ErrBusy
	}
	defer c.busy.Store(false)

	if strings.TrimSpace(prompt) == "" {
		return draft.ChatEntry{}, ErrEmptyPrompt
	}
	if params.Temperature < 0 || params.Temperature > 2 {
		return draft.ChatEntry{}, ErrInvalidTemperature
	}
	budget := EffectiveMaxTokens(params.MaxTokens, prompt)
	if budget <= 0 {
		return draft.ChatEntry{}, ErrPromptTooLong
	}

	start := time.Now()
	resp, err := c.client.Complete(ctx, CompletionRequest{
		Model:       params.Model,
		Prompt:      prompt,
		Temperature: params.Temperature,
		MaxTokens:   budget,
	})
	if err != nil {
		c.logger.Warn("completion request failed",
			zap.String("model", params.Model),
			zap.Int("max_tokens", budget),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return draft.ChatEntry{}, err
	}

	entry := draft.ChatEntry{
		ID:          resp.ID,
		Prompt:      prompt,
		Completion:  resp.Text,
		TotalTokens: TotalTokens(resp),
	}
	c.logger.Debug("completion received",
		zap.String("id", entry.ID),
		zap.Int("total_tokens", entry.TotalTokens),
		zap.Duration("elapsed", time.Since(start)))
	return entry, nil
}

// TotalTokens adds prompt and completion usage, each treated as zero when
// missing or nonsensical.
func TotalTokens(c Completion) int {
	var total int64
	if c.PromptTokens > 0 {
		total += c.PromptTokens
	}
	if c.CompletionTokens > 0 {
		total += c.CompletionTokens
	}
	return int(total)
}
