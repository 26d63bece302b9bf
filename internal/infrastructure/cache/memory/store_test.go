package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestStore(t *testing.T, max int) (*Store, *clock) {
	t.Helper()
	s, err := New(max, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c := &clock{t: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}
	s.now = c.now
	return s, c
}

func metadata(title string) *domain.Metadata {
	return &domain.Metadata{Title: title, ContractType: "lease", Parties: []domain.Party{{Name: "A"}}}
}

func TestPutSectionAndGet(t *testing.T) {
	s, _ := newTestStore(t, 5)
	ctx := context.Background()

	if err := s.PutSection(ctx, "c1", "EN", metadata("Lease")); err != nil {
		t.Fatalf("PutSection() error = %v", err)
	}
	if err := s.PutSection(ctx, "c1", "en", &domain.RiskReport{}); err != nil {
		t.Fatalf("PutSection() error = %v", err)
	}

	got, err := s.Get(ctx, "c1", "en")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Metadata.Title != "Lease" || !got.Has(domain.SectionRisks) || got.Has(domain.SectionSummary) {
		t.Fatalf("unexpected entry: %+v", got)
	}

	got.Metadata.Title = "mutated"
	again, _ := s.Get(ctx, "c1", "en")
	if again.Metadata.Title != "Lease" {
		t.Fatalf("Get must return a copy")
	}

	if _, err := s.Get(ctx, "c1", "ja"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestEvictsLeastRecentlyWrittenContract(t *testing.T) {
	s, _ := newTestStore(t, 5)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		if err := s.PutSection(ctx, fmt.Sprintf("c%d", i), "en", metadata("x")); err != nil {
			t.Fatalf("PutSection() error = %v", err)
		}
	}

	// reads do not refresh recency
	if _, err := s.Get(ctx, "c1", "en"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if err := s.PutSection(ctx, "c2", "es", metadata("y")); err != nil {
		t.Fatalf("PutSection() error = %v", err)
	}
	if err := s.PutSection(ctx, "c6", "en", metadata("z")); err != nil {
		t.Fatalf("PutSection() error = %v", err)
	}

	if _, err := s.Get(ctx, "c1", "en"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected c1 to be evicted, got %v", err)
	}
	if _, err := s.Get(ctx, "c2", "en"); err != nil {
		t.Fatalf("c2 was rewritten and must survive: %v", err)
	}
	if got := s.Contracts(); len(got) != 5 || got[0] != "c6" {
		t.Fatalf("unexpected contracts: %v", got)
	}
}

func TestEntriesExpireAfterRetention(t *testing.T) {
	s, c := newTestStore(t, 5)
	ctx := context.Background()
	if err := s.PutSection(ctx, "c1", "en", metadata("old")); err != nil {
		t.Fatalf("PutSection() error = %v", err)
	}
	c.t = c.t.Add(3 * 24 * time.Hour)
	if err := s.Put(ctx, "c1", "ar", domain.CachedAnalysis{}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	c.t = c.t.Add(5 * 24 * time.Hour)
	if _, err := s.Get(ctx, "c1", "en"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected expired entry to miss, got %v", err)
	}
	langs, _ := s.Languages(ctx, "c1")
	if len(langs) != 1 || langs[0] != "ar" {
		t.Fatalf("unexpected languages: %v", langs)
	}

	c.t = c.t.Add(5 * 24 * time.Hour)
	if langs, _ := s.Languages(ctx, "c1"); len(langs) != 0 {
		t.Fatalf("expected all languages expired, got %v", langs)
	}
	if len(s.Contracts()) != 0 {
		t.Fatalf("expected empty contract to be dropped")
	}
}
