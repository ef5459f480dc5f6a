package transcribe

import (
	"fmt"

	"VoxMind/backend/go/internal/config"
	vhttp "VoxMind/backend/go/pkg/http"
)

// NewTranscriber 根据配置创建对应提供商的 Transcriber 实例。
func NewTranscriber(cfg config.STTConfig, httpClient *vhttp.Client) (Transcriber, error) {
	switch cfg.Provider {
	case "groq":
		return NewGroqClient(httpClient, cfg.Groq.APIKey, cfg.Groq.Model, cfg.Groq.BaseURL, cfg.Language), nil
	default:
		return nil, fmt.Errorf("unsupported stt provider: %s", cfg.Provider)
	}
}
