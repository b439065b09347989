package runner

import (
	"fmt"
	"testing"
	"time"
)

type fixedDecisionStrategy struct {
	decision RetryDecision
}

func (f fixedDecisionStrategy) SleepDuration(int, error) time.Duration {
	return f.decision.Delay
}

func (f fixedDecisionStrategy) DecideRetry(int, error) RetryDecision {
	return f.decision
}

func TestDecideRetryUsesDeciderWhenAvailable(t *testing.T) {
	strategy := fixedDecisionStrategy{
		decision: RetryDecision{
			ShouldRetry: false,
			Delay:       25 * time.Millisecond,
			Metadata: map[string]any{
				"source": "test",
			},
		},
	}

	decision := DecideRetry(strategy, 1, fmt.Errorf("boom"))
	if decision.ShouldRetry {
		t.Fatal("expected strategy decision to disable retry")
	}
	if decision.Delay != 25*time.Millisecond {
		t.Fatalf("unexpected delay: %s", decision.Delay)
	}
	if decision.Metadata["source"] != "test" {
		t.Fatal("expected metadata propagation")
	}
}

func TestDecideRetryFallsBackToSleepDuration(t *testing.T) {
	strategy := ExponentialBackoffStrategy{
		Base:   10 * time.Millisecond,
		Factor: 2,
		Max:    100 * time.Millisecond,
	}
	decision := DecideRetry(strategy, 2, nil)
	if !decision.ShouldRetry {
		t.Fatal("expected fallback strategy to retry")
	}
	if decision.Delay != 40*time.Millisecond {
		t.Fatalf("unexpected fallback delay: %s", decision.Delay)
	}
}

func TestStrategyFor(t *testing.T) {
	if _, ok := StrategyFor(0, 2, time.Second).(NoDelayStrategy); !ok {
		t.Error("expected no delay strategy for zero delay")
	}
	if s, ok := StrategyFor(time.Second, 1, 0).(FixedDelayStrategy); !ok || s.Delay != time.Second {
		t.Error("expected fixed delay strategy")
	}
	s, ok := StrategyFor(10*time.Millisecond, 3, 50*time.Millisecond).(ExponentialBackoffStrategy)
	if !ok {
		t.Fatal("expected exponential strategy")
	}
	if d := s.SleepDuration(5, nil); d != 50*time.Millisecond {
		t.Errorf("expected capped delay, got %s", d)
	}
}
