package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"VoxMind/backend/go/internal/apperr"
	"VoxMind/backend/go/internal/models"
	"VoxMind/backend/go/internal/vectorindex"
	"VoxMind/backend/go/pkg/logger"
)

type fakeEmbedder struct {
	vector []float32
	calls  int
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	return f.vector, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

type fakeIndex struct {
	matches []vectorindex.Match
	calls   int
}

func (f *fakeIndex) Upsert(context.Context, models.EmbeddingVector) error { return nil }

func (f *fakeIndex) Query(_ context.Context, _ string, _ []float32, _ int) ([]vectorindex.Match, error) {
	f.calls++
	return f.matches, nil
}

func (f *fakeIndex) DeleteByIDs(context.Context, []string) error { return nil }

// fakeMemoStore hydrates by owner, like the real store does.
type fakeMemoStore struct {
	records map[string]*models.MemoRecord
}

func (f *fakeMemoStore) Insert(context.Context, *models.MemoRecord) error { return nil }

func (f *fakeMemoStore) GetByID(_ context.Context, ownerID, id string) (*models.MemoRecord, error) {
	r, ok := f.records[id]
	if !ok || r.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: memo %s", apperr.ErrNotFound, id)
	}
	return r, nil
}

func (f *fakeMemoStore) GetByIDs(_ context.Context, ownerID string, ids []string) ([]*models.MemoRecord, error) {
	var out []*models.MemoRecord
	for _, id := range ids {
		if r, ok := f.records[id]; ok && r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeMemoStore) ListByOwner(context.Context, string, models.Category) ([]*models.MemoRecord, error) {
	return nil, nil
}

func (f *fakeMemoStore) DeleteByID(context.Context, string, string) error { return nil }

type fakeLLM struct {
	response string
	prompts  []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, nil
}

func memoRecord(owner, id, title string) *models.MemoRecord {
	return &models.MemoRecord{
		ID:        id,
		OwnerID:   owner,
		RawText:   "raw text of " + id,
		Title:     title,
		Summary:   "summary of " + id,
		Category:  models.CategoryWork,
		CreatedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func newEngine(embedder *fakeEmbedder, index *fakeIndex, memos *fakeMemoStore, model *fakeLLM) *Engine {
	return NewEngine(embedder, index, memos, model, 5, logger.New("rag-test", "", ""))
}

func TestAnswerRejectsBlankQuestion(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1}}
	index := &fakeIndex{}
	model := &fakeLLM{}
	engine := newEngine(embedder, index, &fakeMemoStore{}, model)

	for _, question := range []string{"", "   ", "\t\n"} {
		_, err := engine.Answer(context.Background(), "u1", question)
		if !errors.Is(err, apperr.ErrEmptyQuestion) {
			t.Errorf("question %q: expected ErrEmptyQuestion, got %v", question, err)
		}
	}
	// No network call of any kind for a blank question.
	if embedder.calls != 0 || index.calls != 0 || len(model.prompts) != 0 {
		t.Error("blank question must not reach any service")
	}
}

func TestAnswerNoMatches(t *testing.T) {
	model := &fakeLLM{response: "should not be called"}
	engine := newEngine(&fakeEmbedder{vector: []float32{0.1}}, &fakeIndex{}, &fakeMemoStore{}, model)

	got, err := engine.Answer(context.Background(), "u1", "휴가 언제 가기로 했지?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if got.Answer != NoMatchAnswer {
		t.Errorf("expected fixed no-match answer, got %q", got.Answer)
	}
	if len(got.Sources) != 0 {
		t.Errorf("expected empty sources, got %v", got.Sources)
	}
	// The completion model is never invoked without matches.
	if len(model.prompts) != 0 {
		t.Error("completion model invoked despite zero matches")
	}
}

func TestAnswerGroundedWithSources(t *testing.T) {
	index := &fakeIndex{matches: []vectorindex.Match{
		{MemoID: "memo-2", OwnerID: "u1", Score: 0.4},
		{MemoID: "memo-1", OwnerID: "u1", Score: 0.9},
	}}
	memos := &fakeMemoStore{records: map[string]*models.MemoRecord{
		"memo-1": memoRecord("u1", "memo-1", "Meeting Notes"),
		"memo-2": memoRecord("u1", "memo-2", "Deadline Memo"),
	}}
	model := &fakeLLM{response: "The deadline is next Friday."}
	engine := newEngine(&fakeEmbedder{vector: []float32{0.1}}, index, memos, model)

	got, err := engine.Answer(context.Background(), "u1", "When is the deadline?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if got.Answer != "The deadline is next Friday." {
		t.Errorf("unexpected answer: %q", got.Answer)
	}
	// Sources preserve retrieval order, no re-ranking.
	if len(got.Sources) != 2 || got.Sources[0].ID != "memo-2" || got.Sources[1].ID != "memo-1" {
		t.Errorf("sources out of retrieval order: %v", got.Sources)
	}

	if len(model.prompts) != 1 {
		t.Fatalf("expected one completion call, got %d", len(model.prompts))
	}
	prompt := model.prompts[0]
	for _, want := range []string{"Deadline Memo", "Meeting Notes", "2024-01-15", "업무", "When is the deadline?", "메모에 없는 정보는 지어내지 마세요"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestAnswerFiltersForeignOwnersOnHydrate(t *testing.T) {
	// The index misbehaves and returns another owner's memo; hydration
	// must drop it.
	index := &fakeIndex{matches: []vectorindex.Match{
		{MemoID: "memo-1", OwnerID: "u1"},
		{MemoID: "memo-foreign", OwnerID: "u2"},
	}}
	memos := &fakeMemoStore{records: map[string]*models.MemoRecord{
		"memo-1":       memoRecord("u1", "memo-1", "Mine"),
		"memo-foreign": memoRecord("u2", "memo-foreign", "Not mine"),
	}}
	model := &fakeLLM{response: "answer"}
	engine := newEngine(&fakeEmbedder{vector: []float32{0.1}}, index, memos, model)

	got, err := engine.Answer(context.Background(), "u1", "question")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if len(got.Sources) != 1 || got.Sources[0].ID != "memo-1" {
		t.Errorf("expected only the caller's memo as source, got %v", got.Sources)
	}
	if strings.Contains(model.prompts[0], "Not mine") {
		t.Error("foreign memo leaked into the prompt")
	}
}

func TestAnswerStaleIndexEntries(t *testing.T) {
	// All matches point at memos that no longer exist in the relational
	// store, so the engine answers as if there were no matches.
	index := &fakeIndex{matches: []vectorindex.Match{{MemoID: "gone", OwnerID: "u1"}}}
	model := &fakeLLM{response: "should not be called"}
	engine := newEngine(&fakeEmbedder{vector: []float32{0.1}}, index, &fakeMemoStore{}, model)

	got, err := engine.Answer(context.Background(), "u1", "question")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if got.Answer != NoMatchAnswer || len(got.Sources) != 0 {
		t.Errorf("expected no-match answer for stale entries, got %+v", got)
	}
	if len(model.prompts) != 0 {
		t.Error("completion model invoked for stale-only matches")
	}
}

func TestAnswerEmptyCompletion(t *testing.T) {
	index := &fakeIndex{matches: []vectorindex.Match{{MemoID: "memo-1", OwnerID: "u1"}}}
	memos := &fakeMemoStore{records: map[string]*models.MemoRecord{
		"memo-1": memoRecord("u1", "memo-1", "Test"),
	}}
	engine := newEngine(&fakeEmbedder{vector: []float32{0.1}}, index, memos, &fakeLLM{response: "  "})

	got, err := engine.Answer(context.Background(), "u1", "Test question")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if got.Answer != EmptyCompletionAnswer {
		t.Errorf("expected fixed empty-completion answer, got %q", got.Answer)
	}
	if len(got.Sources) != 1 {
		t.Errorf("sources still returned with the fallback answer, got %v", got.Sources)
	}
}
