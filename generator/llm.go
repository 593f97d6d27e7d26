package generator

import (
	"context"
	"fmt"
	"net/http"
)

// CompletionClient 抽象文本补全服务，便于替换/Mock。
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// CompletionRequest is one call to the completion endpoint. MaxTokens is the
// budget actually sent, after prompt accounting.
type CompletionRequest struct {
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completion is what the collector needs from a service response. Usage
// counts are zero when the service omitted them.
type Completion struct {
	ID               string
	Text             string
	PromptTokens     int64
	CompletionTokens int64
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewClient builds the client for settings.Provider.
func NewClient(settings LLMSettings, httpClient *http.Client) (CompletionClient, error) {
	switch settings.Provider {
	case "", "openai":
		return NewOpenAILLMFromConfig(&settings, httpClient)
	case "compatible":
		// OpenAI 兼容接口（自建网关等），必须填写 base_url。
		if settings.BaseURL == "" {
			return nil, fmt.Errorf("llm provider %s requires base_url (OpenAI-compatible endpoint)", settings.Provider)
		}
		return NewOpenAILLMFromConfig(&settings, httpClient)
	case "mock":
		return &MockLLM{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", settings.Provider)
	}
}
