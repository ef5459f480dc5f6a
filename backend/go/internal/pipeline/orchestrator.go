package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"VoxMind/backend/go/internal/apperr"
	"VoxMind/backend/go/internal/embedding"
	"VoxMind/backend/go/internal/memo"
	"VoxMind/backend/go/internal/models"
	"VoxMind/backend/go/internal/objectstore"
	"VoxMind/backend/go/internal/structure"
	"VoxMind/backend/go/internal/transcribe"
	"VoxMind/backend/go/internal/vectorindex"
	"VoxMind/backend/go/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// signedURLTTL is how long the transcription service may fetch the audio.
const signedURLTTL = time.Hour

// Deps carries everything the orchestrator needs. Async selects whether
// Start returns immediately and the run executes in a goroutine; tests run
// synchronously for deterministic assertions.
type Deps struct {
	Log         *logger.Logger
	Runs        RunStore
	Audio       objectstore.ObjectStore
	Transcriber transcribe.Transcriber
	Structurer  structure.Structurer
	Embedder    embedding.Embedding
	Memos       memo.Store
	Index       vectorindex.Index
	Policies    map[string]StepPolicy
	RetainAudio bool
	Async       bool
}

// Orchestrator drives one upload through the fixed step order
// transcribe, structure, embed, persist, index (and cleanup when audio is
// not retained). Each step runs under its own retry/timeout policy and its
// output is checkpointed before the next step starts, so a resumed run
// skips completed steps instead of re-invoking paid external services.
type Orchestrator struct {
	deps Deps
	exec *executor
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps, exec: newExecutor()}
}

// Start validates the audio reference, records a new run and begins
// executing it. The returned run ID doubles as the memo ID the persist
// step will create, which keeps replays idempotent.
func (o *Orchestrator) Start(ctx context.Context, ownerID, audioRef string) (string, error) {
	if ownerID == "" || audioRef == "" {
		return "", fmt.Errorf("%w: owner and audio reference are required", apperr.ErrInvalidInput)
	}
	if _, err := o.deps.Audio.Stat(ctx, audioRef); err != nil {
		return "", err
	}

	run := &models.PipelineRun{
		RunID:    uuid.NewString(),
		OwnerID:  ownerID,
		AudioRef: audioRef,
		Status:   models.RunQueued,
	}
	if err := o.deps.Runs.Create(ctx, run); err != nil {
		return "", err
	}

	o.launch(run.RunID)
	return run.RunID, nil
}

// Resume re-enters an errored run at its first unfinished step.
func (o *Orchestrator) Resume(ctx context.Context, runID string) error {
	run, err := o.deps.Runs.Get(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status != models.RunErrored {
		return fmt.Errorf("%w: run %s is %s, only errored runs can be resumed", apperr.ErrInvalidInput, runID, run.Status)
	}

	o.launch(runID)
	return nil
}

// GetStatus returns the run record by ID.
func (o *Orchestrator) GetStatus(ctx context.Context, runID string) (*models.PipelineRun, error) {
	return o.deps.Runs.Get(ctx, runID)
}

// Result decodes the final output of a completed run from its persist
// checkpoint. It returns nil for runs that have not completed persist yet.
func (o *Orchestrator) Result(run *models.PipelineRun) (*models.RunResult, error) {
	checkpoints, err := run.Checkpoints()
	if err != nil {
		return nil, err
	}
	raw, ok := checkpoints[models.StepPersist]
	if !ok {
		return nil, nil
	}
	var result models.RunResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode run result: %w", err)
	}
	return &result, nil
}

func (o *Orchestrator) launch(runID string) {
	if o.deps.Async {
		go func() {
			// The request context ends with the HTTP response, the run must not.
			if err := o.Execute(context.Background(), runID); err != nil {
				o.deps.Log.WithRun(runID).WithError(err).Error("pipeline run failed")
			}
		}()
		return
	}
	if err := o.Execute(context.Background(), runID); err != nil {
		o.deps.Log.WithRun(runID).WithError(err).Error("pipeline run failed")
	}
}

// Execute runs the pipeline for runID until completion or until a step
// exhausts its retry budget. It may be called again for an errored run;
// checkpointed steps are skipped.
func (o *Orchestrator) Execute(ctx context.Context, runID string) error {
	run, err := o.deps.Runs.Get(ctx, runID)
	if err != nil {
		return err
	}
	log := o.deps.Log.WithRun(runID).WithOwner(run.OwnerID)

	if err := o.deps.Runs.SetStatus(ctx, runID, models.RunRunning, ""); err != nil {
		return err
	}

	checkpoints, err := run.Checkpoints()
	if err != nil {
		return o.fail(ctx, log, runID, fmt.Errorf("corrupt checkpoints: %w", err))
	}

	// transcribe
	rawTranscript, err := o.runStep(ctx, log, run, checkpoints, models.StepTranscribe, func(stepCtx context.Context) (interface{}, error) {
		audioURL, err := o.deps.Audio.SignedReadURL(stepCtx, run.AudioRef, signedURLTTL)
		if err != nil {
			return nil, err
		}
		return o.deps.Transcriber.Transcribe(stepCtx, audioURL)
	})
	if err != nil {
		return o.fail(ctx, log, runID, err)
	}
	var rawText string
	if err := json.Unmarshal(rawTranscript, &rawText); err != nil {
		return o.fail(ctx, log, runID, fmt.Errorf("corrupt transcribe checkpoint: %w", err))
	}

	// structure
	rawStructure, err := o.runStep(ctx, log, run, checkpoints, models.StepStructure, func(stepCtx context.Context) (interface{}, error) {
		return o.deps.Structurer.Structure(stepCtx, rawText)
	})
	if err != nil {
		return o.fail(ctx, log, runID, err)
	}
	var memoStructure models.MemoStructure
	if err := json.Unmarshal(rawStructure, &memoStructure); err != nil {
		return o.fail(ctx, log, runID, fmt.Errorf("corrupt structure checkpoint: %w", err))
	}

	// embed the summary, the same text the chat path searches against
	rawEmbedding, err := o.runStep(ctx, log, run, checkpoints, models.StepEmbed, func(stepCtx context.Context) (interface{}, error) {
		return o.deps.Embedder.Embed(stepCtx, memoStructure.Summary)
	})
	if err != nil {
		return o.fail(ctx, log, runID, err)
	}
	var vector []float32
	if err := json.Unmarshal(rawEmbedding, &vector); err != nil {
		return o.fail(ctx, log, runID, fmt.Errorf("corrupt embed checkpoint: %w", err))
	}

	// persist
	_, err = o.runStep(ctx, log, run, checkpoints, models.StepPersist, func(stepCtx context.Context) (interface{}, error) {
		actionItems, err := json.Marshal(memoStructure.ActionItems)
		if err != nil {
			return nil, err
		}
		audioRef := ""
		if o.deps.RetainAudio {
			audioRef = run.AudioRef
		}
		record := &models.MemoRecord{
			ID:          run.RunID,
			OwnerID:     run.OwnerID,
			RawText:     rawText,
			Title:       memoStructure.Title,
			Summary:     memoStructure.Summary,
			Category:    memoStructure.Category,
			ActionItems: datatypes.JSON(actionItems),
			AudioRef:    audioRef,
		}
		if err := o.deps.Memos.Insert(stepCtx, record); err != nil {
			return nil, err
		}
		return &models.RunResult{
			MemoID:      record.ID,
			Title:       record.Title,
			Summary:     record.Summary,
			Category:    record.Category,
			ActionItems: memoStructure.ActionItems,
		}, nil
	})
	if err != nil {
		return o.fail(ctx, log, runID, err)
	}

	// index
	_, err = o.runStep(ctx, log, run, checkpoints, models.StepIndex, func(stepCtx context.Context) (interface{}, error) {
		err := o.deps.Index.Upsert(stepCtx, models.EmbeddingVector{
			MemoID:  run.RunID,
			OwnerID: run.OwnerID,
			Values:  vector,
		})
		return err == nil, err
	})
	if err != nil {
		return o.fail(ctx, log, runID, err)
	}

	// cleanup only when audio is not retained for playback
	if !o.deps.RetainAudio {
		_, err = o.runStep(ctx, log, run, checkpoints, models.StepCleanup, func(stepCtx context.Context) (interface{}, error) {
			err := o.deps.Audio.Delete(stepCtx, run.AudioRef)
			return err == nil, err
		})
		if err != nil {
			return o.fail(ctx, log, runID, err)
		}
	}

	if err := o.deps.Runs.SetStatus(ctx, runID, models.RunComplete, ""); err != nil {
		return err
	}
	log.Info("pipeline run complete")
	return nil
}

// runStep returns the checkpointed output when the step already ran,
// otherwise executes it under its policy and checkpoints the result before
// returning. Errors carry the step name, the originating message stays
// intact.
func (o *Orchestrator) runStep(ctx context.Context, log *logger.Logger, run *models.PipelineRun,
	checkpoints map[string]json.RawMessage, step string, fn func(ctx context.Context) (interface{}, error)) (json.RawMessage, error) {

	if output, ok := checkpoints[step]; ok {
		log.WithStep(step).Debug("checkpoint found, skipping step")
		return output, nil
	}

	policy, ok := o.deps.Policies[step]
	if !ok {
		return nil, fmt.Errorf("step %s: no policy configured", step)
	}

	log.WithStep(step).Info("step started")
	var result interface{}
	err := o.exec.run(ctx, policy, func(stepCtx context.Context) error {
		r, err := fn(stepCtx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", step, err)
	}

	output, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("step %s: failed to encode output: %w", step, err)
	}
	if err := o.deps.Runs.SaveCheckpoint(ctx, run.RunID, step, output); err != nil {
		return nil, fmt.Errorf("step %s: %w", step, err)
	}
	checkpoints[step] = output
	log.WithStep(step).Info("step complete")
	return output, nil
}

// fail marks the run errored with the originating error preserved verbatim.
func (o *Orchestrator) fail(ctx context.Context, log *logger.Logger, runID string, cause error) error {
	log.WithError(cause).Error("pipeline step failed")
	if err := o.deps.Runs.SetStatus(ctx, runID, models.RunErrored, cause.Error()); err != nil {
		log.WithError(err).Error("failed to record errored status")
	}
	return cause
}
