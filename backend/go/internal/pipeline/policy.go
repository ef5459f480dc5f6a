package pipeline

import (
	"context"
	"fmt"
	"time"

	"VoxMind/backend/go/internal/config"
	"VoxMind/backend/go/internal/models"
)

// BackoffKind selects how the delay between retry attempts grows.
type BackoffKind string

const (
	BackoffExponential BackoffKind = "exponential"
	BackoffLinear      BackoffKind = "linear"
	BackoffConstant    BackoffKind = "constant"
)

// StepPolicy is the declarative retry/timeout policy for one pipeline step.
// Every step runs through the same executor with its own policy instead of
// hand-rolled retry loops at each call site.
type StepPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     BackoffKind
	Timeout     time.Duration
}

// DelayFor returns the pause after a failed attempt (1-based).
func (p StepPolicy) DelayFor(attempt int) time.Duration {
	switch p.Backoff {
	case BackoffExponential:
		d := p.Delay
		for i := 1; i < attempt; i++ {
			d *= 2
		}
		return d
	case BackoffLinear:
		return p.Delay * time.Duration(attempt)
	default:
		return p.Delay
	}
}

// defaultPolicies mirrors the latency profile of each step: remote AI calls
// get exponential backoff and long budgets, local storage writes get short
// linear/constant ones.
var defaultPolicies = map[string]StepPolicy{
	models.StepTranscribe: {MaxAttempts: 3, Delay: 5 * time.Second, Backoff: BackoffExponential, Timeout: 5 * time.Minute},
	models.StepStructure:  {MaxAttempts: 3, Delay: 3 * time.Second, Backoff: BackoffExponential, Timeout: 5 * time.Minute},
	models.StepEmbed:      {MaxAttempts: 3, Delay: 2 * time.Second, Backoff: BackoffExponential, Timeout: 2 * time.Minute},
	models.StepPersist:    {MaxAttempts: 3, Delay: 1 * time.Second, Backoff: BackoffLinear, Timeout: 30 * time.Second},
	models.StepIndex:      {MaxAttempts: 3, Delay: 2 * time.Second, Backoff: BackoffExponential, Timeout: 1 * time.Minute},
	models.StepCleanup:    {MaxAttempts: 2, Delay: 1 * time.Second, Backoff: BackoffConstant, Timeout: 30 * time.Second},
}

// PoliciesFromConfig starts from the built-in defaults and applies any
// per-step overrides from the configuration file.
func PoliciesFromConfig(cfg config.PipelineConfig) (map[string]StepPolicy, error) {
	policies := make(map[string]StepPolicy, len(defaultPolicies))
	for step, p := range defaultPolicies {
		policies[step] = p
	}

	for step, override := range cfg.Steps {
		base, ok := policies[step]
		if !ok {
			return nil, fmt.Errorf("unknown pipeline step in config: %s", step)
		}
		if override.MaxAttempts > 0 {
			base.MaxAttempts = override.MaxAttempts
		}
		if override.Backoff != "" {
			switch BackoffKind(override.Backoff) {
			case BackoffExponential, BackoffLinear, BackoffConstant:
				base.Backoff = BackoffKind(override.Backoff)
			default:
				return nil, fmt.Errorf("unknown backoff kind for step %s: %s", step, override.Backoff)
			}
		}
		delay, err := config.ParseDuration(override.Delay, base.Delay)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", step, err)
		}
		base.Delay = delay
		timeout, err := config.ParseDuration(override.Timeout, base.Timeout)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", step, err)
		}
		base.Timeout = timeout
		policies[step] = base
	}

	return policies, nil
}

// executor runs a step function under a StepPolicy. The sleep function is
// injectable so tests can run without real backoff pauses.
type executor struct {
	sleep func(ctx context.Context, d time.Duration) error
}

func newExecutor() *executor {
	return &executor{sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// run invokes fn up to MaxAttempts times, each attempt under its own timeout.
// The last attempt's error is returned unmodified so the caller can surface
// the originating failure verbatim.
func (e *executor) run(ctx context.Context, policy StepPolicy, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		stepCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		err := fn(stepCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < policy.MaxAttempts {
			if sleepErr := e.sleep(ctx, policy.DelayFor(attempt)); sleepErr != nil {
				return lastErr
			}
		}
	}
	return lastErr
}
