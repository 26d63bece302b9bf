package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func fastConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
	}
}

func TestDoRetriesTransientFailure(t *testing.T) {
	exec := NewExecutor(fastConfig())

	attempts := 0
	errTransient := errors.New("connection reset")
	got, err := Do(context.Background(), exec, "gemini.generate", func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errTransient
		}
		return "payload", nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{Retryable: errors.Is(err, errTransient), RecordFailure: true}
	})
	if err != nil || got != "payload" {
		t.Fatalf("Do() = %q, %v", got, err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoWithoutExecutorCallsDirectly(t *testing.T) {
	got, err := Do(context.Background(), nil, "op", func(context.Context) (int, error) { return 7, nil }, nil)
	if err != nil || got != 7 {
		t.Fatalf("Do() = %d, %v", got, err)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(fastConfig())

	attempts := 0
	errPermanent := errors.New("invalid api key")
	err := exec.Execute(context.Background(), "gemini.generate", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{}
	})
	if !errors.Is(err, errPermanent) || attempts != 1 {
		t.Fatalf("expected single permanent failure, attempts=%d err=%v", attempts, err)
	}
}

func TestExecuteOpensCircuitPerOperation(t *testing.T) {
	var mu sync.Mutex
	var transitions []string
	cfg := fastConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = time.Minute
	cfg.BreakerHalfOpenMaxCalls = 1
	cfg.OnStateChange = func(op, from, to string) {
		mu.Lock()
		transitions = append(transitions, op+":"+from+"->"+to)
		mu.Unlock()
	}
	exec := NewExecutor(cfg)

	errUpstream := errors.New("503")
	classifier := func(error) ErrorClassification { return ErrorClassification{RecordFailure: true} }
	for i := 0; i < 2; i++ {
		if err := exec.Execute(context.Background(), "translate", func(context.Context) error { return errUpstream }, classifier); !errors.Is(err, errUpstream) {
			t.Fatalf("iteration %d: expected upstream error, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "translate", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if exec.State("translate") != "open" || exec.State("generate") != "closed" {
		t.Fatalf("unexpected states: translate=%s generate=%s", exec.State("translate"), exec.State("generate"))
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 1 || transitions[0] != "translate:closed->open" {
		t.Fatalf("unexpected transitions: %v", transitions)
	}
}

func TestConfigNormalizeFillsDefaults(t *testing.T) {
	got := Config{RetryInitialBackoff: 2 * time.Second, RetryMaxBackoff: time.Second, BreakerFailureRatio: 1.5}.normalize()
	def := DefaultConfig()

	if got.RetryMaxAttempts != def.RetryMaxAttempts || got.RetryMultiplier != def.RetryMultiplier {
		t.Fatalf("retry defaults not applied: %+v", got)
	}
	if got.RetryMaxBackoff != 2*time.Second {
		t.Fatalf("max backoff should be raised to the initial backoff, got %s", got.RetryMaxBackoff)
	}
	if got.BreakerFailureRatio != def.BreakerFailureRatio || got.BreakerMinRequests != def.BreakerMinRequests {
		t.Fatalf("breaker defaults not applied: %+v", got)
	}
	if got.BreakerEnabled {
		t.Fatalf("normalize must not enable a disabled breaker")
	}
}
