package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func failingClassifier(error) ErrorClassification {
	return ErrorClassification{Retryable: false, RecordFailure: true}
}

func breakerConfig() Config {
	return Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: time.Millisecond,
		BreakerEnabled:      true,
		BreakerMinRequests:  3,
		BreakerFailureRatio: 1.0,
		BreakerOpenTimeout:  time.Hour,
	}
}

func TestBreakerOpensAfterSustainedFailures(t *testing.T) {
	exec := NewExecutor(breakerConfig())
	boom := errors.New("upstream down")

	calls := 0
	fn := func(context.Context) error { calls++; return boom }

	for i := 0; i < 3; i++ {
		if err := exec.Execute(context.Background(), "llm.extract", fn, failingClassifier); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v", i+1, err)
		}
	}

	err := exec.Execute(context.Background(), "llm.extract", fn, failingClassifier)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (open breaker must not invoke fn)", calls)
	}
}

func TestBreakerIsolatesOperations(t *testing.T) {
	exec := NewExecutor(breakerConfig())
	boom := errors.New("upstream down")

	fail := func(context.Context) error { return boom }
	for i := 0; i < 3; i++ {
		exec.Execute(context.Background(), "llm.extract", fail, failingClassifier) //nolint:errcheck
	}
	if err := exec.Execute(context.Background(), "llm.extract", fail, failingClassifier); !IsCircuitOpen(err) {
		t.Fatalf("extract breaker should be open, got %v", err)
	}

	ok := func(context.Context) error { return nil }
	if err := exec.Execute(context.Background(), "llm.link", ok, failingClassifier); err != nil {
		t.Errorf("link operation tripped by extract failures: %v", err)
	}
}

func TestBreakerIgnoresUnrecordedFailures(t *testing.T) {
	exec := NewExecutor(breakerConfig())
	boom := errors.New("bad request")
	terminal := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}

	calls := 0
	fn := func(context.Context) error { calls++; return boom }
	for i := 0; i < 5; i++ {
		if err := exec.Execute(context.Background(), "llm.extract", fn, terminal); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v", i+1, err)
		}
	}
	if calls != 5 {
		t.Errorf("calls = %d, want 5 (terminal errors must not trip the breaker)", calls)
	}
}

func TestBreakerDisabledNeverTrips(t *testing.T) {
	cfg := breakerConfig()
	cfg.BreakerEnabled = false
	exec := NewExecutor(cfg)
	boom := errors.New("upstream down")

	calls := 0
	fn := func(context.Context) error { calls++; return boom }
	for i := 0; i < 6; i++ {
		if err := exec.Execute(context.Background(), "llm.extract", fn, failingClassifier); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v", i+1, err)
		}
	}
	if calls != 6 {
		t.Errorf("calls = %d, want 6", calls)
	}
}
