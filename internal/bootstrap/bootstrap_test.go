package bootstrap

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/config"
	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

func fixtureConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Provider:           "fixture",
		SupportedLanguages: []string{"en", "ja"},
		BridgeLanguage:     "en",
		RetryMaxAttempts:   3,
		RetryInitialDelay:  time.Millisecond,
		RetryMultiplier:    2,
		RetryMaxDelay:      10 * time.Millisecond,
		ProviderTimeout:    time.Second,
		CacheBackend:       "memory",
		CacheMaxContracts:  5,
		CacheRetention:     time.Hour,
		StorageBackend:     "localfs",
		StoragePath:        t.TempDir(),
	}
}

func TestFixtureAppRunsEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	app, err := New(ctx, fixtureConfig(t), Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	text := "This Services Agreement is made between Acme Corp and Beta LLC. The provider shall deliver monthly reports."
	info, err := app.IngestUC.Upload(ctx, "services.txt", "text/plain", strings.NewReader(text))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	contract, err := app.IngestUC.Load(ctx, info.ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	stream, err := app.AnalyzeUC.AnalyzeStreaming(ctx, contract, domain.AnalysisContext{ContractLanguage: "en", OutputLanguage: "en"})
	if err != nil {
		t.Fatalf("AnalyzeStreaming() error = %v", err)
	}
	terminals := 0
	for ev := range stream.Events() {
		if ev.Terminal() {
			terminals++
		}
	}
	if terminals != 5 || stream.Err() != nil {
		t.Fatalf("terminals=%d err=%v", terminals, stream.Err())
	}

	cached, err := app.CacheUC.Resolve(ctx, info.ID, "en")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !cached.Has(domain.SectionOmissions) {
		t.Fatalf("cached analysis misses omissions: %+v", cached.Present)
	}
}

func TestUnknownBackendsFail(t *testing.T) {
	for _, mutate := range []func(*config.Config){
		func(c *config.Config) { c.Provider = "openai" },
		func(c *config.Config) { c.CacheBackend = "redis" },
		func(c *config.Config) { c.StorageBackend = "ftp" },
		func(c *config.Config) { c.BridgeLanguage = "ar" },
	} {
		cfg := fixtureConfig(t)
		mutate(&cfg)
		if _, err := New(context.Background(), cfg, Options{}); err == nil {
			t.Fatalf("expected error for config %+v", cfg)
		}
	}
}
