package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

const (
	DefaultMaxContracts = 5
	DefaultRetention    = 7 * 24 * time.Hour
)

type contractEntry struct {
	languages map[string]*domain.CachedAnalysis
}

// Store is the in-process interim cache. It holds at most maxContracts
// contracts; reads use Peek so recency follows writes only.
type Store struct {
	mu        sync.Mutex
	contracts *lru.Cache[string, *contractEntry]
	retention time.Duration
	now       func() time.Time
}

func New(maxContracts int, retention time.Duration) (*Store, error) {
	if maxContracts <= 0 {
		maxContracts = DefaultMaxContracts
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	contracts, err := lru.NewWithEvict[string, *contractEntry](maxContracts, func(contractID string, _ *contractEntry) {
		slog.Info("cache_contract_evicted", "contract_id", contractID)
	})
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &Store{contracts: contracts, retention: retention, now: time.Now}, nil
}

func (s *Store) PutSection(_ context.Context, contractID, language string, data domain.SectionData) error {
	if data == nil {
		return domain.WrapError(domain.ErrInvalidInput, "cache put section", errors.New("section data is nil"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entryLocked(contractID)
	lang := domain.NormalizeLanguage(language)
	analysis, ok := entry.languages[lang]
	if !ok || analysis.Expired(s.now(), s.retention) {
		analysis = &domain.CachedAnalysis{}
		entry.languages[lang] = analysis
	}
	analysis.Patch(data)
	analysis.TranslatedAt = s.now().UTC()
	s.contracts.Add(contractID, entry)
	return nil
}

func (s *Store) Put(_ context.Context, contractID, language string, analysis domain.CachedAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entryLocked(contractID)
	stored := analysis.Clone()
	if stored.TranslatedAt.IsZero() {
		stored.TranslatedAt = s.now().UTC()
	}
	entry.languages[domain.NormalizeLanguage(language)] = stored
	s.contracts.Add(contractID, entry)
	return nil
}

func (s *Store) Get(_ context.Context, contractID, language string) (*domain.CachedAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lang := domain.NormalizeLanguage(language)
	entry, ok := s.contracts.Peek(contractID)
	if !ok {
		return nil, miss(contractID, lang)
	}
	s.pruneLocked(contractID, entry)
	analysis, ok := entry.languages[lang]
	if !ok {
		return nil, miss(contractID, lang)
	}
	return analysis.Clone(), nil
}

func (s *Store) Languages(_ context.Context, contractID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.contracts.Peek(contractID)
	if !ok {
		return nil, nil
	}
	s.pruneLocked(contractID, entry)
	out := make([]string, 0, len(entry.languages))
	for lang := range entry.languages {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out, nil
}

// Contracts lists cached contract IDs, most recently written first.
func (s *Store) Contracts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.contracts.Keys()
	out := make([]string, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		out = append(out, keys[i])
	}
	return out
}

func (s *Store) entryLocked(contractID string) *contractEntry {
	entry, ok := s.contracts.Peek(contractID)
	if !ok {
		entry = &contractEntry{languages: make(map[string]*domain.CachedAnalysis)}
	}
	return entry
}

func (s *Store) pruneLocked(contractID string, entry *contractEntry) {
	now := s.now()
	for lang, analysis := range entry.languages {
		if analysis.Expired(now, s.retention) {
			delete(entry.languages, lang)
		}
	}
	if len(entry.languages) == 0 {
		s.contracts.Remove(contractID)
	}
}

func miss(contractID, language string) error {
	return domain.WrapError(domain.ErrCacheMiss, "cache get", fmt.Errorf("contract %s language %s", contractID, language))
}
