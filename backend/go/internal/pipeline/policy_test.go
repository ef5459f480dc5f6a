package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"VoxMind/backend/go/internal/config"
	"VoxMind/backend/go/internal/models"
)

func TestDelayForBackoffKinds(t *testing.T) {
	cases := []struct {
		name    string
		policy  StepPolicy
		attempt int
		want    time.Duration
	}{
		{"exponential first", StepPolicy{Delay: 5 * time.Second, Backoff: BackoffExponential}, 1, 5 * time.Second},
		{"exponential second", StepPolicy{Delay: 5 * time.Second, Backoff: BackoffExponential}, 2, 10 * time.Second},
		{"exponential third", StepPolicy{Delay: 5 * time.Second, Backoff: BackoffExponential}, 3, 20 * time.Second},
		{"linear third", StepPolicy{Delay: time.Second, Backoff: BackoffLinear}, 3, 3 * time.Second},
		{"constant always", StepPolicy{Delay: time.Second, Backoff: BackoffConstant}, 4, time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.DelayFor(tc.attempt); got != tc.want {
				t.Errorf("DelayFor(%d) = %v, want %v", tc.attempt, got, tc.want)
			}
		})
	}
}

func TestPoliciesFromConfigDefaults(t *testing.T) {
	policies, err := PoliciesFromConfig(config.PipelineConfig{})
	if err != nil {
		t.Fatalf("PoliciesFromConfig failed: %v", err)
	}

	transcribe := policies[models.StepTranscribe]
	if transcribe.MaxAttempts != 3 || transcribe.Delay != 5*time.Second ||
		transcribe.Backoff != BackoffExponential || transcribe.Timeout != 5*time.Minute {
		t.Errorf("unexpected transcribe defaults: %+v", transcribe)
	}

	persist := policies[models.StepPersist]
	if persist.Backoff != BackoffLinear || persist.Timeout != 30*time.Second {
		t.Errorf("unexpected persist defaults: %+v", persist)
	}
}

func TestPoliciesFromConfigOverride(t *testing.T) {
	policies, err := PoliciesFromConfig(config.PipelineConfig{
		Steps: map[string]config.StepPolicyConfig{
			models.StepEmbed: {MaxAttempts: 5, Delay: "500ms"},
		},
	})
	if err != nil {
		t.Fatalf("PoliciesFromConfig failed: %v", err)
	}

	embed := policies[models.StepEmbed]
	if embed.MaxAttempts != 5 {
		t.Errorf("expected MaxAttempts override 5, got %d", embed.MaxAttempts)
	}
	if embed.Delay != 500*time.Millisecond {
		t.Errorf("expected Delay override 500ms, got %v", embed.Delay)
	}
	// Untouched fields keep their defaults.
	if embed.Backoff != BackoffExponential || embed.Timeout != 2*time.Minute {
		t.Errorf("expected untouched defaults, got %+v", embed)
	}
}

func TestPoliciesFromConfigRejectsUnknownStep(t *testing.T) {
	_, err := PoliciesFromConfig(config.PipelineConfig{
		Steps: map[string]config.StepPolicyConfig{"upload": {MaxAttempts: 1}},
	})
	if err == nil {
		t.Fatal("expected error for unknown step name")
	}
}

func TestExecutorRetriesUntilSuccess(t *testing.T) {
	exec := &executor{sleep: func(context.Context, time.Duration) error { return nil }}
	policy := StepPolicy{MaxAttempts: 3, Delay: time.Second, Backoff: BackoffConstant, Timeout: time.Second}

	calls := 0
	err := exec.run(context.Background(), policy, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestExecutorExhaustsBudget(t *testing.T) {
	var slept []time.Duration
	exec := &executor{sleep: func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}}
	policy := StepPolicy{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: BackoffExponential, Timeout: time.Second}

	wantErr := errors.New("upstream down")
	calls := 0
	err := exec.run(context.Background(), policy, func(context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected originating error preserved, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	// Two pauses between three attempts, exponential from the base delay.
	if len(slept) != 2 || slept[0] != 2*time.Second || slept[1] != 4*time.Second {
		t.Errorf("unexpected backoff sequence: %v", slept)
	}
}

func TestExecutorStopsWhenContextCancelled(t *testing.T) {
	exec := newExecutor()
	policy := StepPolicy{MaxAttempts: 3, Delay: time.Hour, Backoff: BackoffConstant, Timeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	wantErr := errors.New("boom")
	calls := 0
	err := exec.run(ctx, policy, func(context.Context) error {
		calls++
		cancel()
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt after cancellation, got %d", calls)
	}
}
