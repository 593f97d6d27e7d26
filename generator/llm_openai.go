package generator

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when neither the request nor the settings name one.
const DefaultModel = "gpt-3.5-turbo-instruct"

// OpenAILLM implements CompletionClient using the official openai-go SDK
// (legacy completions endpoint). The SDK's automatic retries are disabled:
// a failed request is reported once and the user resubmits.
type OpenAILLM struct {
	Model string
	Opts  []option.RequestOption
}

func NewOpenAILLMFromConfig(cfg *LLMSettings, httpClient *http.Client) (*OpenAILLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &OpenAILLM{Model: model, Opts: opts}, nil
}

func (o *OpenAILLM) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	client := openai.NewClient(o.Opts...)

	model := req.Model
	if model == "" {
		model = o.Model
	}
	resp, err := client.Completions.New(ctx, openai.CompletionNewParams{
		Model: openai.CompletionNewParamsModel(model),
		Prompt: openai.CompletionNewParamsPromptUnion{
			OfString: openai.String(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			if apiErr.Message != "" {
				return Completion{}, &CompletionError{
					Message:    apiErr.Message,
					Type:       apiErr.Type,
					Param:      apiErr.Param,
					Code:       apiErr.Code,
					StatusCode: apiErr.StatusCode,
				}
			}
			if cerr := errorFromResponse(apiErr.Response); cerr != nil {
				return Completion{}, cerr
			}
		}
		return Completion{}, err
	}

	if len(resp.Choices) == 0 {
		// 某些兼容网关以 200 返回 error 包体。
		if cerr := errorFromBody([]byte(resp.RawJSON()), http.StatusOK); cerr != nil {
			return Completion{}, cerr
		}
		return Completion{}, errors.New("openai: empty choices")
	}
	return Completion{
		ID:               resp.ID,
		Text:             resp.Choices[0].Text,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
