package llm

import (
	"context"
	"fmt"

	"VoxMind/backend/go/internal/config"
)

// LLM 定义了问答补全模型需要实现的接口。
type LLM interface {
	// Generate 根据提示词生成一段补全文本。
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewModel 根据配置创建对应提供商的 LLM 实例。
func NewModel(ctx context.Context, cfg config.CompletionConfig) (LLM, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	case "gemini":
		return NewGemini(ctx, cfg.Gemini.Model, cfg.Gemini.APIKey)
	case "ollama":
		return NewOllama(cfg.Ollama.Model, cfg.Ollama.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", cfg.Provider)
	}
}
