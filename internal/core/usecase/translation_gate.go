package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
)

const defaultProviderTimeout = 10 * time.Second

// TranslationGate wraps a Translator with availability probing and bounded
// preparation of language pairs that still need a download.
type TranslationGate struct {
	translator ports.Translator
	timeout    time.Duration

	probes singleflight.Group

	mu    sync.Mutex
	ready map[string]struct{}
}

func NewTranslationGate(translator ports.Translator, providerTimeout time.Duration) *TranslationGate {
	if providerTimeout <= 0 {
		providerTimeout = defaultProviderTimeout
	}
	return &TranslationGate{
		translator: translator,
		timeout:    providerTimeout,
		ready:      make(map[string]struct{}),
	}
}

func (g *TranslationGate) ProviderTimeout() time.Duration {
	return g.timeout
}

func (g *TranslationGate) Translate(ctx context.Context, text, source, target string) (string, error) {
	source = domain.NormalizeLanguage(source)
	target = domain.NormalizeLanguage(target)
	if source == target || strings.TrimSpace(text) == "" {
		return text, nil
	}
	if g.translator == nil {
		return "", domain.WrapError(domain.ErrTranslationUnavailable, "translate "+pairKey(source, target), errors.New("no translator configured"))
	}

	pair := pairKey(source, target)
	if g.isReady(pair) {
		return g.translator.Translate(ctx, text, source, target)
	}

	switch g.probe(ctx, source, target) {
	case domain.AvailabilityUnavailable:
		return "", domain.WrapError(domain.ErrTranslationUnavailable, "translate "+pair, errors.New("language pair is not supported"))
	case domain.AvailabilityDownloadable:
		slog.Info("translation_pair_preparing", "pair", pair, "timeout_ms", g.timeout.Milliseconds())
		out, err := boundedCall(ctx, g.timeout, "translate "+pair, func(callCtx context.Context) (string, error) {
			return g.translator.Translate(callCtx, text, source, target)
		})
		if err != nil {
			return "", err
		}
		g.markReady(pair)
		return out, nil
	default:
		out, err := g.translator.Translate(ctx, text, source, target)
		if err != nil {
			return "", err
		}
		g.markReady(pair)
		return out, nil
	}
}

// probe treats probe errors as available and lets the translate call decide.
func (g *TranslationGate) probe(ctx context.Context, source, target string) domain.Availability {
	pair := pairKey(source, target)
	v, err, _ := g.probes.Do(pair, func() (any, error) {
		return g.translator.Availability(ctx, source, target)
	})
	if err != nil {
		slog.Warn("translation_probe_failed", "pair", pair, "error", err)
		return domain.AvailabilityAvailable
	}
	availability, _ := v.(domain.Availability)
	if availability == "" {
		return domain.AvailabilityAvailable
	}
	return availability
}

func (g *TranslationGate) isReady(pair string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.ready[pair]
	return ok
}

func (g *TranslationGate) markReady(pair string) {
	g.mu.Lock()
	g.ready[pair] = struct{}{}
	g.mu.Unlock()
}

func pairKey(source, target string) string {
	return source + "->" + target
}

// boundedCall runs fn under the provider timeout and retries it once before
// surfacing domain.ErrRequiresUserAction.
func boundedCall[T any](ctx context.Context, timeout time.Duration, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		v, err := fn(callCtx)
		cancel()
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if !errors.Is(err, context.DeadlineExceeded) && !domain.IsKind(err, domain.ErrRequiresUserAction) {
			return zero, err
		}
		lastErr = err
		slog.Warn("provider_call_timeout", "operation", operation, "attempt", attempt, "error", err)
	}
	if domain.IsKind(lastErr, domain.ErrRequiresUserAction) {
		return zero, lastErr
	}
	return zero, domain.WrapError(domain.ErrRequiresUserAction, operation, fmt.Errorf("not ready after %s: %w", timeout, lastErr))
}
