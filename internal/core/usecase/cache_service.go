package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
)

// cacheWriter applies cache writes for a run. Failures are logged and never
// reach the stream.
type cacheWriter struct {
	store    ports.AnalysisCacheStore
	observer ports.AnalysisObserver
}

func (w cacheWriter) putSection(ctx context.Context, contractID, language string, data domain.SectionData) {
	if w.store == nil {
		return
	}
	if err := w.store.PutSection(ctx, contractID, language, data); err != nil {
		slog.Warn("cache_write_failed", "contract_id", contractID, "language", language, "section", string(data.Section()), "error", err)
		w.observer.CacheOperation("put_section", "error")
		return
	}
	w.observer.CacheOperation("put_section", "ok")
}

func (w cacheWriter) put(ctx context.Context, contractID, language string, analysis domain.CachedAnalysis) {
	if w.store == nil {
		return
	}
	if err := w.store.Put(ctx, contractID, language, analysis); err != nil {
		slog.Warn("cache_write_failed", "contract_id", contractID, "language", language, "error", err)
		w.observer.CacheOperation("put", "error")
		return
	}
	w.observer.CacheOperation("put", "ok")
}

// AnalysisCacheService reads cached analyses and derives languages that were
// never produced by translating an existing entry section by section.
type AnalysisCacheService struct {
	store    ports.AnalysisCacheStore
	gate     *TranslationGate
	bridge   *LanguageBridge
	observer ports.AnalysisObserver
	now      func() time.Time
}

func NewAnalysisCacheService(
	store ports.AnalysisCacheStore,
	gate *TranslationGate,
	bridge *LanguageBridge,
	observer ports.AnalysisObserver,
) *AnalysisCacheService {
	if observer == nil {
		observer = noopObserver{}
	}
	return &AnalysisCacheService{
		store:    store,
		gate:     gate,
		bridge:   bridge,
		observer: observer,
		now:      time.Now,
	}
}

func (s *AnalysisCacheService) Languages(ctx context.Context, contractID string) ([]string, error) {
	if contractID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list cached languages", errors.New("contract id is required"))
	}
	langs, err := s.store.Languages(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("list cached languages: %w", err)
	}
	sort.Strings(langs)
	return langs, nil
}

// Resolve returns the analysis in the requested language. Missing sections
// are translated from other cached languages; the derived entry is written
// back only when every translation succeeded.
func (s *AnalysisCacheService) Resolve(ctx context.Context, contractID, language string) (*domain.CachedAnalysis, error) {
	lang := domain.NormalizeLanguage(language)
	if contractID == "" || lang == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "resolve cached analysis", errors.New("contract id and language are required"))
	}

	cached, err := s.store.Get(ctx, contractID, lang)
	switch {
	case err == nil && complete(cached):
		s.observer.CacheOperation("get", "hit")
		return cached, nil
	case err != nil && !domain.IsKind(err, domain.ErrCacheMiss):
		s.observer.CacheOperation("get", "error")
		return nil, fmt.Errorf("read cached analysis: %w", err)
	}

	languages, err := s.store.Languages(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("list cached languages: %w", err)
	}
	sources := s.rankSources(languages, lang)

	derived := cached.Clone()
	if derived == nil {
		derived = &domain.CachedAnalysis{}
	}
	entries := make(map[string]*domain.CachedAnalysis)
	translated, failed := 0, 0

	for _, section := range domain.AllSections() {
		if derived.Has(section) {
			continue
		}
		source, data := s.findSection(ctx, contractID, sources, section, entries)
		if data == nil {
			continue
		}
		out, err := translateSection(ctx, s.gate, data, source, lang)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("cache_derive_failed", "contract_id", contractID, "section", string(section), "source", source, "target", lang, "error", err)
			failed++
			continue
		}
		derived.Patch(out)
		translated++
	}

	if translated == 0 {
		if cached != nil {
			s.observer.CacheOperation("get", "hit")
			return cached, nil
		}
		s.observer.CacheOperation("get", "miss")
		if failed > 0 {
			return nil, domain.WrapError(domain.ErrTranslationUnavailable, "derive cached analysis",
				fmt.Errorf("no section could be translated to %s", lang))
		}
		return nil, domain.WrapError(domain.ErrCacheMiss, "resolve cached analysis", fmt.Errorf("contract %s has no cached analysis", contractID))
	}

	derived.TranslatedAt = s.now().UTC()
	s.observer.CacheOperation("derive", "ok")
	if failed == 0 {
		if err := s.store.Put(ctx, contractID, lang, *derived); err != nil {
			slog.Warn("cache_write_failed", "contract_id", contractID, "language", lang, "error", err)
			s.observer.CacheOperation("put", "error")
		}
	}
	return derived, nil
}

// rankSources prefers the bridge language, then other natively supported
// languages, then the rest.
func (s *AnalysisCacheService) rankSources(languages []string, target string) []string {
	var native, other []string
	bridge := ""
	if s.bridge != nil {
		bridge = s.bridge.BridgeLanguage()
	}
	hasBridge := false
	for _, lang := range languages {
		lang = domain.NormalizeLanguage(lang)
		switch {
		case lang == "" || lang == target:
		case lang == bridge:
			hasBridge = true
		case s.bridge != nil && s.bridge.Supports(lang):
			native = append(native, lang)
		default:
			other = append(other, lang)
		}
	}
	sort.Strings(native)
	sort.Strings(other)
	out := make([]string, 0, len(native)+len(other)+1)
	if hasBridge {
		out = append(out, bridge)
	}
	out = append(out, native...)
	return append(out, other...)
}

func (s *AnalysisCacheService) findSection(
	ctx context.Context,
	contractID string,
	sources []string,
	section domain.SectionName,
	entries map[string]*domain.CachedAnalysis,
) (string, domain.SectionData) {
	for _, source := range sources {
		entry, ok := entries[source]
		if !ok {
			got, err := s.store.Get(ctx, contractID, source)
			if err != nil && !domain.IsKind(err, domain.ErrCacheMiss) {
				slog.Warn("cache_read_failed", "contract_id", contractID, "language", source, "error", err)
			}
			entry = got
			entries[source] = entry
		}
		if entry == nil {
			continue
		}
		if data := entry.SectionData(section); data != nil {
			return source, data
		}
	}
	return "", nil
}

func complete(c *domain.CachedAnalysis) bool {
	if c == nil {
		return false
	}
	for _, section := range domain.AllSections() {
		if !c.Has(section) {
			return false
		}
	}
	return true
}
