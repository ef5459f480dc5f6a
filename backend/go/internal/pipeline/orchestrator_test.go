package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"VoxMind/backend/go/internal/apperr"
	"VoxMind/backend/go/internal/models"
	"VoxMind/backend/go/internal/vectorindex"
	"VoxMind/backend/go/pkg/logger"
)

// fakeRunStore is an in-memory RunStore.
type fakeRunStore struct {
	mu   sync.Mutex
	runs map[string]*models.PipelineRun
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{runs: make(map[string]*models.PipelineRun)}
}

func (f *fakeRunStore) Create(_ context.Context, run *models.PipelineRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *run
	f.runs[run.RunID] = &clone
	return nil
}

func (f *fakeRunStore) Get(_ context.Context, runID string) (*models.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: pipeline run %s", apperr.ErrNotFound, runID)
	}
	clone := *run
	return &clone, nil
}

func (f *fakeRunStore) SaveCheckpoint(_ context.Context, runID, step string, output json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return fmt.Errorf("%w: pipeline run %s", apperr.ErrNotFound, runID)
	}
	checkpoints, err := run.Checkpoints()
	if err != nil {
		return err
	}
	checkpoints[step] = output
	encoded, err := json.Marshal(checkpoints)
	if err != nil {
		return err
	}
	run.StepOutputs = encoded
	run.CurrentStep = step
	return nil
}

func (f *fakeRunStore) SetStatus(_ context.Context, runID string, status models.RunStatus, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return fmt.Errorf("%w: pipeline run %s", apperr.ErrNotFound, runID)
	}
	run.Status = status
	run.LastError = lastError
	return nil
}

// fakeAudioStore resolves known references and records deletes.
type fakeAudioStore struct {
	objects map[string]bool
	deleted []string
}

func newFakeAudioStore(refs ...string) *fakeAudioStore {
	objects := make(map[string]bool)
	for _, ref := range refs {
		objects[ref] = true
	}
	return &fakeAudioStore{objects: objects}
}

func (f *fakeAudioStore) Put(context.Context, string, io.Reader, int64, string) error { return nil }

func (f *fakeAudioStore) Get(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *fakeAudioStore) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

func (f *fakeAudioStore) Stat(_ context.Context, key string) (*models.AudioArtifact, error) {
	if !f.objects[key] {
		return nil, fmt.Errorf("%w: audio reference %q not found", apperr.ErrInvalidInput, key)
	}
	return &models.AudioArtifact{ID: key, StorageKey: key, UploadedAt: time.Now()}, nil
}

func (f *fakeAudioStore) SignedReadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeStructurer struct {
	result *models.MemoStructure
	err    error
	calls  int
}

func (f *fakeStructurer) Structure(context.Context, string) (*models.MemoStructure, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(context.Background(), texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// fakeMemoStore implements memo.Store for persist-step assertions.
type fakeMemoStore struct {
	mu      sync.Mutex
	records map[string]*models.MemoRecord
	inserts int
}

func newFakeMemoStore() *fakeMemoStore {
	return &fakeMemoStore{records: make(map[string]*models.MemoRecord)}
}

func (f *fakeMemoStore) Insert(_ context.Context, record *models.MemoRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if _, exists := f.records[record.ID]; exists {
		return fmt.Errorf("duplicate memo %s", record.ID)
	}
	f.records[record.ID] = record
	return nil
}

func (f *fakeMemoStore) GetByID(_ context.Context, ownerID, id string) (*models.MemoRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok || record.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: memo %s", apperr.ErrNotFound, id)
	}
	return record, nil
}

func (f *fakeMemoStore) GetByIDs(_ context.Context, ownerID string, ids []string) ([]*models.MemoRecord, error) {
	var out []*models.MemoRecord
	for _, id := range ids {
		if record, err := f.GetByID(context.Background(), ownerID, id); err == nil {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeMemoStore) ListByOwner(_ context.Context, ownerID string, _ models.Category) ([]*models.MemoRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.MemoRecord
	for _, record := range f.records {
		if record.OwnerID == ownerID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeMemoStore) DeleteByID(_ context.Context, ownerID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	return nil
}

type fakeVectorIndex struct {
	upserts []models.EmbeddingVector
}

func (f *fakeVectorIndex) Upsert(_ context.Context, vec models.EmbeddingVector) error {
	f.upserts = append(f.upserts, vec)
	return nil
}

func (f *fakeVectorIndex) Query(context.Context, string, []float32, int) ([]vectorindex.Match, error) {
	return nil, nil
}

func (f *fakeVectorIndex) DeleteByIDs(context.Context, []string) error { return nil }

// testPolicies keeps the default shape but with millisecond delays so
// retry tests run instantly.
func testPolicies() map[string]StepPolicy {
	policies := make(map[string]StepPolicy, len(defaultPolicies))
	for step, p := range defaultPolicies {
		p.Delay = time.Millisecond
		p.Timeout = time.Second
		policies[step] = p
	}
	return policies
}

type testEnv struct {
	orchestrator *Orchestrator
	runs         *fakeRunStore
	audio        *fakeAudioStore
	transcriber  *fakeTranscriber
	structurer   *fakeStructurer
	embedder     *fakeEmbedder
	memos        *fakeMemoStore
	index        *fakeVectorIndex
}

func newTestEnv(retainAudio bool) *testEnv {
	env := &testEnv{
		runs:  newFakeRunStore(),
		audio: newFakeAudioStore("rec-1"),
		transcriber: &fakeTranscriber{
			text: "today I discussed the roadmap",
		},
		structurer: &fakeStructurer{
			result: &models.MemoStructure{
				Title:       "Roadmap sync",
				Summary:     "Discussed roadmap",
				Category:    models.CategoryWork,
				ActionItems: []string{},
			},
		},
		embedder: &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}},
		memos:    newFakeMemoStore(),
		index:    &fakeVectorIndex{},
	}
	env.orchestrator = NewOrchestrator(Deps{
		Log:         logger.New("pipeline-test", "", ""),
		Runs:        env.runs,
		Audio:       env.audio,
		Transcriber: env.transcriber,
		Structurer:  env.structurer,
		Embedder:    env.embedder,
		Memos:       env.memos,
		Index:       env.index,
		Policies:    testPolicies(),
		RetainAudio: retainAudio,
	})
	return env
}

func TestPipelineCompletesScenario(t *testing.T) {
	env := newTestEnv(true)

	runID, err := env.orchestrator.Start(context.Background(), "u1", "rec-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	run, err := env.orchestrator.GetStatus(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if run.Status != models.RunComplete {
		t.Fatalf("expected complete, got %s (lastError=%q)", run.Status, run.LastError)
	}

	result, err := env.orchestrator.Result(run)
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if result == nil || result.Title != "Roadmap sync" {
		t.Errorf("expected output title 'Roadmap sync', got %+v", result)
	}
	if result.Category != models.CategoryWork {
		t.Errorf("expected category %q, got %q", models.CategoryWork, result.Category)
	}

	// Exactly one memo and one vector entry sharing the same ID.
	if env.memos.inserts != 1 {
		t.Errorf("expected exactly one memo insert, got %d", env.memos.inserts)
	}
	if len(env.index.upserts) != 1 {
		t.Fatalf("expected exactly one vector upsert, got %d", len(env.index.upserts))
	}
	if env.index.upserts[0].MemoID != result.MemoID {
		t.Errorf("memo and vector IDs differ: %s vs %s", result.MemoID, env.index.upserts[0].MemoID)
	}
	if env.index.upserts[0].OwnerID != "u1" {
		t.Errorf("expected owner u1 on vector entry, got %s", env.index.upserts[0].OwnerID)
	}

	// Retained audio keeps the reference on the record and the object alive.
	record, err := env.memos.GetByID(context.Background(), "u1", result.MemoID)
	if err != nil {
		t.Fatalf("memo not found: %v", err)
	}
	if record.AudioRef != "rec-1" {
		t.Errorf("expected audio reference retained, got %q", record.AudioRef)
	}
	if len(env.audio.deleted) != 0 {
		t.Errorf("audio must not be deleted when retained, deleted %v", env.audio.deleted)
	}
	if record.RawText != "today I discussed the roadmap" {
		t.Errorf("unexpected raw text: %q", record.RawText)
	}
}

func TestPipelineCleanupWhenAudioNotRetained(t *testing.T) {
	env := newTestEnv(false)

	runID, err := env.orchestrator.Start(context.Background(), "u1", "rec-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	run, _ := env.orchestrator.GetStatus(context.Background(), runID)
	if run.Status != models.RunComplete {
		t.Fatalf("expected complete, got %s (lastError=%q)", run.Status, run.LastError)
	}
	if len(env.audio.deleted) != 1 || env.audio.deleted[0] != "rec-1" {
		t.Errorf("expected audio cleanup, deleted %v", env.audio.deleted)
	}

	result, _ := env.orchestrator.Result(run)
	record, err := env.memos.GetByID(context.Background(), "u1", result.MemoID)
	if err != nil {
		t.Fatalf("memo not found: %v", err)
	}
	if record.AudioRef != "" {
		t.Errorf("expected empty audio reference without retention, got %q", record.AudioRef)
	}
}

func TestCheckpointSkipsCompletedSteps(t *testing.T) {
	env := newTestEnv(true)
	env.structurer.err = fmt.Errorf("%w: model unavailable", apperr.ErrUpstreamService)

	runID, err := env.orchestrator.Start(context.Background(), "u1", "rec-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	run, _ := env.orchestrator.GetStatus(context.Background(), runID)
	if run.Status != models.RunErrored {
		t.Fatalf("expected errored, got %s", run.Status)
	}
	if env.transcriber.calls != 1 {
		t.Fatalf("expected 1 transcribe call, got %d", env.transcriber.calls)
	}
	if env.structurer.calls != 3 {
		t.Fatalf("expected structure retried to its budget of 3, got %d", env.structurer.calls)
	}

	// The upstream recovers and the run is resumed.
	env.structurer.err = nil
	if err := env.orchestrator.Resume(context.Background(), runID); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	run, _ = env.orchestrator.GetStatus(context.Background(), runID)
	if run.Status != models.RunComplete {
		t.Fatalf("expected complete after resume, got %s (lastError=%q)", run.Status, run.LastError)
	}
	// The transcribe checkpoint kept the step from re-running.
	if env.transcriber.calls != 1 {
		t.Errorf("transcribe re-invoked despite checkpoint: %d calls", env.transcriber.calls)
	}
	if env.structurer.calls != 4 {
		t.Errorf("expected one more structure call after resume, got %d", env.structurer.calls)
	}
	if env.memos.inserts != 1 || len(env.index.upserts) != 1 {
		t.Errorf("expected single persist and index, got %d/%d", env.memos.inserts, len(env.index.upserts))
	}
}

func TestMissingCategoryErrorsRun(t *testing.T) {
	env := newTestEnv(true)
	env.structurer.err = fmt.Errorf("%w: category", apperr.ErrMissingRequiredField)

	runID, err := env.orchestrator.Start(context.Background(), "u1", "rec-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	run, _ := env.orchestrator.GetStatus(context.Background(), runID)
	if run.Status != models.RunErrored {
		t.Fatalf("expected errored, got %s", run.Status)
	}
	// The step name and the originating message both survive verbatim.
	if !strings.Contains(run.LastError, "step structure") {
		t.Errorf("expected step name in lastError, got %q", run.LastError)
	}
	if !strings.Contains(run.LastError, "category") {
		t.Errorf("expected originating message in lastError, got %q", run.LastError)
	}
	// Downstream steps never ran.
	if env.embedder.calls != 0 || env.memos.inserts != 0 || len(env.index.upserts) != 0 {
		t.Error("downstream steps ran despite structure failure")
	}
}

func TestStartRejectsUnknownAudio(t *testing.T) {
	env := newTestEnv(true)

	_, err := env.orchestrator.Start(context.Background(), "u1", "rec-missing")
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if env.transcriber.calls != 0 {
		t.Error("no step should run for an unresolvable audio reference")
	}
}

func TestResumeRequiresErroredRun(t *testing.T) {
	env := newTestEnv(true)

	runID, err := env.orchestrator.Start(context.Background(), "u1", "rec-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := env.orchestrator.Resume(context.Background(), runID); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput resuming a complete run, got %v", err)
	}
	if err := env.orchestrator.Resume(context.Background(), "no-such-run"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown run, got %v", err)
	}
}
