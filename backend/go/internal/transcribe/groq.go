package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"VoxMind/backend/go/internal/apperr"
	vhttp "VoxMind/backend/go/pkg/http"
)

const defaultGroqBaseURL = "https://api.groq.com/openai/v1"

// GroqClient 使用 Groq 的 Whisper 接口进行转写。
// 该接口支持 URL 模式: 直接传入音频下载地址，由 Groq 侧拉取音频，
// 因此无需在本服务中转音频字节。官方没有支持 URL 模式的 Go SDK，
// 这里按 OpenAI 兼容协议直接构造 HTTP 请求。
type GroqClient struct {
	httpClient *vhttp.Client
	baseURL    string
	apiKey     string
	model      string
	language   string
}

// NewGroqClient 创建一个新的 GroqClient。
// language 是可选的语言提示 (例如 "ko"，韩英混说也能正常处理)。
func NewGroqClient(httpClient *vhttp.Client, apiKey, model, baseURL, language string) *GroqClient {
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}
	return &GroqClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		language:   language,
	}
}

type groqTranscriptionRequest struct {
	URL            string `json:"url"`
	Model          string `json:"model"`
	Language       string `json:"language,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type groqTranscriptionResponse struct {
	Text string `json:"text"`
}

type groqErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Transcribe 将签名音频 URL 提交给 Groq Whisper 并返回转写文本。
func (c *GroqClient) Transcribe(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(groqTranscriptionRequest{
		URL:            audioURL,
		Model:          c.model,
		Language:       c.language,
		ResponseFormat: "json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal transcription request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/audio/transcriptions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: groq transcription request failed: %v", apperr.ErrUpstreamService, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read groq response: %v", apperr.ErrUpstreamService, err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp groqErrorResponse
		if json.Unmarshal(payload, &errResp) == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("%w: groq transcription failed: %s", apperr.ErrUpstreamService, errResp.Error.Message)
		}
		return "", fmt.Errorf("%w: groq transcription failed: %d - %s", apperr.ErrUpstreamService, resp.StatusCode, string(payload))
	}

	var result groqTranscriptionResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", fmt.Errorf("%w: failed to decode groq response: %v", apperr.ErrUpstreamService, err)
	}
	if result.Text == "" {
		return "", fmt.Errorf("%w: groq transcription returned no text", apperr.ErrUpstreamService)
	}

	return result.Text, nil
}

var _ Transcriber = (*GroqClient)(nil)
