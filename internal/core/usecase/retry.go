package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
)

// RetryPolicy controls how section tasks are re-attempted.
type RetryPolicy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
	// Jitter is the fraction in [0,1) by which a delay may be spread.
	Jitter float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialDelay:      600 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          10 * time.Second,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = def.BackoffMultiplier
	}
	if p.MaxDelay > 0 && p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = 0
	}
	return p
}

// Delay returns the wait that follows the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type sectionTask func(ctx context.Context) (domain.SectionData, error)

// Retrier runs section tasks, announcing every retry on the stream before
// backing off.
type Retrier struct {
	policy   RetryPolicy
	sleep    sleepFunc
	observer ports.AnalysisObserver
}

func NewRetrier(policy RetryPolicy, observer ports.AnalysisObserver) *Retrier {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Retrier{
		policy:   policy.normalize(),
		sleep:    sleepContext,
		observer: observer,
	}
}

func (r *Retrier) Policy() RetryPolicy {
	return r.policy
}

// Run returns the payload, the number of retries performed and the last error.
// emit reports false once the run no longer accepts events.
func (r *Retrier) Run(
	ctx context.Context,
	section domain.SectionName,
	task sectionTask,
	emit func(domain.SectionEvent) bool,
) (domain.SectionData, int, error) {
	maxAttempts := r.policy.MaxAttempts
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, err
		}

		data, err := task(ctx)
		if err == nil && data == nil {
			err = domain.WrapError(domain.ErrSchemaViolation, "run "+string(section), errors.New("empty payload"))
		}
		if err == nil {
			return data, attempt - 1, nil
		}
		lastErr = err

		if !r.retryable(ctx, err) || attempt == maxAttempts {
			return nil, attempt - 1, err
		}

		wait := r.jittered(r.policy.Delay(attempt))
		slog.Warn("retry_attempt",
			"section", string(section),
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"error", err,
		)
		r.observer.SectionRetried(section)

		notice := domain.SectionEvent{
			Section:    section,
			Progress:   section.Progress(),
			IsRetrying: true,
			RetryCount: attempt,
		}
		if !emit(notice) {
			return nil, attempt, closedRunError(ctx)
		}
		if err := r.sleep(ctx, wait); err != nil {
			return nil, attempt, err
		}
	}
	return nil, maxAttempts - 1, lastErr
}

func (r *Retrier) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return !domain.IsKind(err, domain.ErrRequiresUserAction) &&
		!domain.IsKind(err, domain.ErrTranslationUnavailable) &&
		!domain.IsKind(err, domain.ErrInvalidInput)
}

func (r *Retrier) jittered(d time.Duration) time.Duration {
	if r.policy.Jitter == 0 || d <= 0 {
		return d
	}
	spread := (rand.Float64()*2 - 1) * r.policy.Jitter
	return time.Duration(float64(d) * (1 + spread))
}

func closedRunError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.Canceled
}
