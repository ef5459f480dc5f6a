package structure

import (
	"context"
	"fmt"

	"VoxMind/backend/go/internal/apperr"
	"VoxMind/backend/go/internal/models"
	openai "github.com/meguminnnnnnnnn/go-openai"
)

// systemPrompt 指导模型从口述内容中提取结构化字段。
// 注意: 提示词要求保留韩语语境中的英文技术术语，不做翻译。
const systemPrompt = `당신은 음성 메모를 분석하는 AI 어시스턴트입니다.
사용자가 녹음한 내용에서 핵심 정보를 추출하세요.

중요 규칙:
1. 한국어 문맥 속의 영어 단어나 기술 용어는 번역하지 말고 원문 그대로 유지하세요.
   예: "useState hook" → "useState hook" (O), "사용상태 후크" (X)
2. 횡설수설하거나 반복된 내용이 있어도 핵심만 추출하세요.
3. 액션 아이템은 명시적으로 언급된 것만 포함하세요.

다음 JSON 형식으로만 응답하세요:
{
  "title": "한 줄 제목 (20자 이내)",
  "summary": "핵심 요약 (2-3문장)",
  "category": "업무|개발|일기|아이디어|학습|기타 중 하나",
  "action_items": ["할 일 1", "할 일 2"]
}`

const structureTemperature = 0.3

// OpenAIStructurer 通过 OpenAI 兼容的 Chat Completions 接口做结构化提取。
type OpenAIStructurer struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIStructurer 创建一个新的 OpenAIStructurer。
// baseURL 为空时使用官方地址，也可以指向任意 OpenAI 兼容服务。
func NewOpenAIStructurer(apiKey, model, baseURL string, maxTokens int) *OpenAIStructurer {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIStructurer{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Structure 将转写文本提交给模型并解析返回的 JSON。
func (s *OpenAIStructurer) Structure(ctx context.Context, rawText string) (*models.MemoStructure, error) {
	temperature := float32(structureTemperature)
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "다음 음성 메모를 분석해주세요:\n\n" + rawText},
		},
		MaxTokens:   s.maxTokens,
		Temperature: &temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: structure completion failed: %v", apperr.ErrUpstreamService, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: structure completion returned no choices", apperr.ErrUpstreamService)
	}

	return ExtractStructure(resp.Choices[0].Message.Content)
}

var _ Structurer = (*OpenAIStructurer)(nil)
