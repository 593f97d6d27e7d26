package generator

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
type MockLLM struct {
	calls atomic.Int64
}

func (m *MockLLM) Complete(_ context.Context, req CompletionRequest) (Completion, error) {
	n := m.calls.Add(1)

	var sb strings.Builder
	sb.WriteString("\n\n这里是一段自动生成的示例回答。\n")
	sb.WriteString("根据提示生成的内容：")
	sb.WriteString(req.Prompt)

	promptTokens := int64(len([]rune(req.Prompt)))
	return Completion{
		ID:               fmt.Sprintf("cmpl-mock-%d", n),
		Text:             sb.String(),
		PromptTokens:     promptTokens,
		CompletionTokens: int64(len([]rune(sb.String()))),
	}, nil
}
