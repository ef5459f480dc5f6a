package structure

import (
	"context"
	"fmt"

	"VoxMind/backend/go/internal/apperr"
	"VoxMind/backend/go/internal/models"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiStructurer 使用 Gemini API 做结构化提取。
type GeminiStructurer struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiStructurer 创建一个新的 GeminiStructurer。
func NewGeminiStructurer(ctx context.Context, model, apiKey string) (*GeminiStructurer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	generativeModel := client.GenerativeModel(model)
	generativeModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	generativeModel.ResponseMIMEType = "application/json"
	temperature := float32(structureTemperature)
	generativeModel.Temperature = &temperature

	return &GeminiStructurer{
		client: client,
		model:  generativeModel,
	}, nil
}

// Structure 将转写文本提交给 Gemini 并解析返回的 JSON。
func (s *GeminiStructurer) Structure(ctx context.Context, rawText string) (*models.MemoStructure, error) {
	resp, err := s.model.GenerateContent(ctx, genai.Text("다음 음성 메모를 분석해주세요:\n\n"+rawText))
	if err != nil {
		return nil, fmt.Errorf("%w: gemini structure request failed: %v", apperr.ErrUpstreamService, err)
	}

	completion := firstText(resp)
	if completion == "" {
		return nil, fmt.Errorf("%w: gemini structure returned no text", apperr.ErrUpstreamService)
	}

	return ExtractStructure(completion)
}

// Close 释放底层的 genai 客户端。
func (s *GeminiStructurer) Close() error {
	return s.client.Close()
}

// firstText 取出响应里第一段文本内容。
func firstText(resp *genai.GenerateContentResponse) string {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok && text != "" {
				return string(text)
			}
		}
	}
	return ""
}

var _ Structurer = (*GeminiStructurer)(nil)
