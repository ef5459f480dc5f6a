package rag

import (
	"context"
	"fmt"
	"strings"

	"VoxMind/backend/go/internal/apperr"
	"VoxMind/backend/go/internal/embedding"
	"VoxMind/backend/go/internal/llm"
	"VoxMind/backend/go/internal/memo"
	"VoxMind/backend/go/internal/models"
	"VoxMind/backend/go/internal/vectorindex"
	"VoxMind/backend/go/pkg/logger"
)

// Fixed user-facing answers. Chat callers get one of these instead of an
// error when retrieval or generation comes up empty.
const (
	NoMatchAnswer         = "관련된 메모를 찾을 수 없습니다."
	EmptyCompletionAnswer = "답변을 생성하지 못했습니다."
)

const defaultTopK = 5

// Engine answers questions grounded in the caller's own memos. It shares
// the embedding client with the indexing pipeline; using a different model
// or dimension on either side silently breaks recall.
type Engine struct {
	log      *logger.Logger
	embedder embedding.Embedding
	index    vectorindex.Index
	memos    memo.Store
	model    llm.LLM
	topK     int
}

// NewEngine creates a new Engine. topK <= 0 falls back to the default of 5.
func NewEngine(embedder embedding.Embedding, index vectorindex.Index, memos memo.Store,
	model llm.LLM, topK int, log *logger.Logger) *Engine {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Engine{
		log:      log,
		embedder: embedder,
		index:    index,
		memos:    memos,
		model:    model,
		topK:     topK,
	}
}

// Answer embeds the question, retrieves the owner's nearest memos, and asks
// the completion model to answer strictly from them. Sources come back in
// retrieval order. A blank question fails with ErrEmptyQuestion before any
// network call is made.
func (e *Engine) Answer(ctx context.Context, ownerID, question string) (*models.ChatAnswer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: 질문을 입력해주세요", apperr.ErrEmptyQuestion)
	}
	log := e.log.WithOwner(ownerID)

	vector, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	matches, err := e.index.Query(ctx, ownerID, vector, e.topK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		log.Info("no vector matches for question")
		return &models.ChatAnswer{Answer: NoMatchAnswer, Sources: []models.ChatSource{}}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.MemoID
	}

	// Hydrate against the relational store, re-filtered by owner. Stale
	// index entries and foreign-owner hits drop out here.
	records, err := e.memos.GetByIDs(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		log.Warn("vector matches had no backing memo records")
		return &models.ChatAnswer{Answer: NoMatchAnswer, Sources: []models.ChatSource{}}, nil
	}

	answer, err := e.model.Generate(ctx, buildPrompt(question, records))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(answer) == "" {
		answer = EmptyCompletionAnswer
	}

	sources := make([]models.ChatSource, len(records))
	for i, r := range records {
		sources[i] = models.ChatSource{
			ID:        r.ID,
			Title:     r.Title,
			Summary:   r.Summary,
			Category:  r.Category,
			CreatedAt: r.CreatedAt,
		}
	}

	return &models.ChatAnswer{Answer: answer, Sources: sources}, nil
}

// buildPrompt lists each memo's date, category, title, summary and full
// text, and instructs the model to answer only from that context.
func buildPrompt(question string, records []*models.MemoRecord) string {
	var sb strings.Builder
	sb.WriteString("당신은 사용자의 음성 메모를 기반으로 질문에 답하는 AI 어시스턴트입니다.\n")
	sb.WriteString("아래 메모 내용만을 근거로 답변하세요. 메모에 없는 정보는 지어내지 마세요.\n\n")

	for i, r := range records {
		fmt.Fprintf(&sb, "[메모 %d]\n", i+1)
		fmt.Fprintf(&sb, "날짜: %s\n", r.CreatedAt.Format("2006-01-02"))
		fmt.Fprintf(&sb, "분류: %s\n", r.Category)
		fmt.Fprintf(&sb, "제목: %s\n", r.Title)
		fmt.Fprintf(&sb, "요약: %s\n", r.Summary)
		fmt.Fprintf(&sb, "내용: %s\n\n", r.RawText)
	}

	fmt.Fprintf(&sb, "질문: %s\n답변:", question)
	return sb.String()
}
