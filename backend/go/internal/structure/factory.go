package structure

import (
	"context"
	"fmt"
	"strings"

	"VoxMind/backend/go/internal/config"
)

// structureMaxTokens 限制结构化输出的长度，备忘录的结构化结果都很短。
const structureMaxTokens = 500

// NewStructurer 根据配置创建对应提供商的 Structurer 实例。
// Ollama 通过其 OpenAI 兼容接口 (/v1) 接入。
func NewStructurer(ctx context.Context, cfg config.StructureConfig) (Structurer, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIStructurer(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, structureMaxTokens), nil
	case "gemini":
		return NewGeminiStructurer(ctx, cfg.Gemini.Model, cfg.Gemini.APIKey)
	case "ollama":
		baseURL := cfg.Ollama.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return NewOpenAIStructurer("ollama", cfg.Ollama.Model, strings.TrimRight(baseURL, "/")+"/v1", structureMaxTokens), nil
	default:
		return nil, fmt.Errorf("unsupported structure provider: %s", cfg.Provider)
	}
}
