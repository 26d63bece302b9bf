package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
)

type analysisRun struct {
	uc         *AnalyzeStreamingUseCase
	stream     *Stream
	session    ports.GenerationSession
	contractID string
	document   string
	actx       domain.AnalysisContext
	plan       domain.LanguagePlan
	logger     *slog.Logger

	mu      sync.Mutex
	results *domain.CachedAnalysis
}

// runSection supervises one section and emits its terminal event. Only the
// critical section returns its failure; the others end with a null payload.
func (r *analysisRun) runSection(ctx context.Context, section domain.SectionName) (domain.SectionData, error) {
	task, settle := r.taskFor(ctx, section)
	data, retries, err := r.uc.retrier.Run(ctx, section, task, r.stream.emit)
	settle(ctx)

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.uc.observer.SectionFinished(section, "failed")
		if section.Critical() {
			return nil, err
		}
		r.logger.Warn("section_failed", "section", string(section), "retries", retries, "error", err)
		r.stream.emit(domain.SectionEvent{
			Section:    section,
			Progress:   section.Progress(),
			RetryCount: retries,
		})
		return nil, nil
	}

	r.collect(data)
	r.uc.observer.SectionFinished(section, "succeeded")
	if !r.stream.emit(domain.SectionEvent{
		Section:    section,
		Data:       data,
		Progress:   section.Progress(),
		RetryCount: retries,
	}) {
		return nil, closedRunError(ctx)
	}
	return data, nil
}

func (r *analysisRun) taskFor(ctx context.Context, section domain.SectionName) (sectionTask, func(context.Context)) {
	if section == domain.SectionSummary {
		quick := r.startQuickTake(ctx)
		return r.summaryTask(quick), func(ctx context.Context) { quick.wait(ctx) }
	}
	return r.extractTask(section), func(context.Context) {}
}

// extractTask memoizes the raw extraction so retries only redo what failed
// after it.
func (r *analysisRun) extractTask(section domain.SectionName) sectionTask {
	var raw domain.SectionData
	return func(ctx context.Context) (domain.SectionData, error) {
		if raw == nil {
			data, err := r.extract(ctx, section)
			if err != nil {
				return nil, err
			}
			raw = data
			r.capture(ctx, raw)
		}
		return r.postTranslate(ctx, raw)
	}
}

func (r *analysisRun) summaryTask(quick *quickTakeResult) sectionTask {
	var (
		raw    *domain.Summary
		merged bool
	)
	return func(ctx context.Context) (domain.SectionData, error) {
		if raw == nil {
			data, err := r.extract(ctx, domain.SectionSummary)
			if err != nil {
				return nil, err
			}
			summary, ok := data.(*domain.Summary)
			if !ok {
				return nil, domain.WrapError(domain.ErrSchemaViolation, "extract summary", fmt.Errorf("unexpected payload %T", data))
			}
			raw = summary
		}
		if !merged {
			if !quick.wait(ctx) {
				return nil, ctx.Err()
			}
			raw.QuickTake = quick.value
			merged = true
			r.capture(ctx, raw)
		}
		return r.postTranslate(ctx, raw)
	}
}

func (r *analysisRun) extract(ctx context.Context, section domain.SectionName) (domain.SectionData, error) {
	data, err := r.session.Extract(ctx, ports.ExtractionRequest{
		Section:        section,
		Document:       r.document,
		OutputLanguage: r.plan.AnalysisLanguage,
		Context:        r.actx,
	})
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", section, err)
	}
	if data == nil {
		return nil, domain.WrapError(domain.ErrSchemaViolation, "extract "+string(section), fmt.Errorf("empty payload"))
	}
	return data, nil
}

// capture stores a section in the language the generator produced it in.
func (r *analysisRun) capture(ctx context.Context, data domain.SectionData) {
	r.uc.cache.putSection(ctx, r.contractID, r.plan.AnalysisLanguage, data)
}

func (r *analysisRun) postTranslate(ctx context.Context, raw domain.SectionData) (domain.SectionData, error) {
	if !r.plan.NeedsPostTranslation {
		return raw.CloneData(), nil
	}
	return translateSection(ctx, r.uc.gate, raw, r.plan.AnalysisLanguage, r.plan.TargetLanguage)
}

func (r *analysisRun) collect(data domain.SectionData) {
	r.mu.Lock()
	r.results.Patch(data)
	r.mu.Unlock()
}

// storeTranslated writes the emitted set under the language it was translated into.
func (r *analysisRun) storeTranslated(ctx context.Context) {
	r.mu.Lock()
	final := r.results.Clone()
	r.mu.Unlock()
	if len(final.Present) == 0 {
		return
	}
	final.TranslatedAt = r.uc.now().UTC()
	r.uc.cache.put(ctx, r.contractID, r.plan.TargetLanguage, *final)
}

type quickTakeResult struct {
	done  chan struct{}
	value *string
}

// wait reports false if ctx ends first.
func (q *quickTakeResult) wait(ctx context.Context) bool {
	select {
	case <-q.done:
		return true
	case <-ctx.Done():
		return false
	}
}

// startQuickTake runs the best-effort one-line summary next to the detailed one.
func (r *analysisRun) startQuickTake(ctx context.Context) *quickTakeResult {
	q := &quickTakeResult{done: make(chan struct{})}
	go func() {
		defer close(q.done)
		text, err := r.session.QuickTake(ctx, r.document, r.plan.AnalysisLanguage)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("quick_take_failed", "error", err)
			}
			return
		}
		if text = strings.TrimSpace(text); text != "" {
			q.value = &text
		}
	}()
	return q
}
