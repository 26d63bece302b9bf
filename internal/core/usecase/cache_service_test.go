package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

const cachedContractID = "c1"

func seedEntry(t *testing.T, store *fakeCacheStore, language string, sections ...domain.SectionName) {
	t.Helper()
	entry := domain.CachedAnalysis{TranslatedAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}
	for _, section := range sections {
		entry.Patch(samplePayload(section))
	}
	if err := store.Put(context.Background(), cachedContractID, language, entry); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store.puts = 0
}

func newCacheService(store *fakeCacheStore, tr *fakeTranslator) *AnalysisCacheService {
	gate := NewTranslationGate(tr, time.Second)
	svc := NewAnalysisCacheService(store, gate, NewLanguageBridge([]string{"en", "es", "ja"}, "en"), nil)
	svc.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestResolveReturnsCachedEntry(t *testing.T) {
	store := newFakeCacheStore()
	seedEntry(t, store, "en", domain.AllSections()...)
	tr := &fakeTranslator{}

	got, err := newCacheService(store, tr).Resolve(context.Background(), cachedContractID, "EN")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Metadata.Title != "Service Agreement" || tr.callCount() != 0 {
		t.Fatalf("expected direct hit, got %+v with %d translations", got.Metadata, tr.callCount())
	}
}

func TestResolveDerivesAndIsIdempotent(t *testing.T) {
	store := newFakeCacheStore()
	seedEntry(t, store, "en", domain.AllSections()...)
	tr := &fakeTranslator{}
	svc := newCacheService(store, tr)

	first, err := svc.Resolve(context.Background(), cachedContractID, "ar")
	if err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	if first.Metadata.Title != "[ar] Service Agreement" || len(first.Risks) != 1 {
		t.Fatalf("unexpected derived entry: %+v", first)
	}
	if store.puts != 1 {
		t.Fatalf("expected derived entry to be written once, got %d", store.puts)
	}
	calls := tr.callCount()

	second, err := svc.Resolve(context.Background(), cachedContractID, "ar")
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if tr.callCount() != calls {
		t.Fatalf("second read must be served from cache, got %d new translations", tr.callCount()-calls)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("divergent results:\n%+v\n%+v", first, second)
	}
}

func TestResolvePrefersBridgeLanguageSource(t *testing.T) {
	store := newFakeCacheStore()
	seedEntry(t, store, "de", domain.AllSections()...)
	seedEntry(t, store, "en", domain.AllSections()...)
	seedEntry(t, store, "es", domain.AllSections()...)
	tr := &fakeTranslator{}

	if _, err := newCacheService(store, tr).Resolve(context.Background(), cachedContractID, "ja"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	for _, call := range tr.calls {
		if call != "en->ja" {
			t.Fatalf("expected translation from en, got %s", call)
		}
	}
}

func TestResolvePartialFailureIsNotCached(t *testing.T) {
	store := newFakeCacheStore()
	seedEntry(t, store, "en", domain.AllSections()...)
	tr := &fakeTranslator{failWhen: func(text, _, _ string) bool { return text == "Uncapped liability" }}

	got, err := newCacheService(store, tr).Resolve(context.Background(), cachedContractID, "ar")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Has(domain.SectionRisks) || !got.Has(domain.SectionObligations) {
		t.Fatalf("unexpected sections: %v", got.Present)
	}
	if store.puts != 0 {
		t.Fatalf("partial derivation must not be written, got %d writes", store.puts)
	}
}

func TestResolveFillsMissingSectionsOfPartialEntry(t *testing.T) {
	store := newFakeCacheStore()
	seedEntry(t, store, "en", domain.AllSections()...)
	seedEntry(t, store, "ar", domain.SectionMetadata)
	tr := &fakeTranslator{}

	got, err := newCacheService(store, tr).Resolve(context.Background(), cachedContractID, "ar")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !complete(got) {
		t.Fatalf("expected complete entry, got %v", got.Present)
	}
	if got.Metadata.Title != "Service Agreement" {
		t.Fatalf("existing section must be kept, got %q", got.Metadata.Title)
	}
}

func TestResolveMiss(t *testing.T) {
	store := newFakeCacheStore()
	_, err := newCacheService(store, &fakeTranslator{}).Resolve(context.Background(), cachedContractID, "en")
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	_, err = newCacheService(store, &fakeTranslator{}).Resolve(context.Background(), "", "en")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
