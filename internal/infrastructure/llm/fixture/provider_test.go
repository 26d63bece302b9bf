package fixture

import (
	"context"
	"testing"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
)

func TestFixtureSectionsValidate(t *testing.T) {
	p := New([]string{"en"})
	sess, err := p.CreateSession(context.Background(), domain.AnalysisContext{UserRole: "client", Parties: &domain.PartyPair{First: "Acme"}})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	for _, section := range domain.AllSections() {
		data, err := sess.Extract(context.Background(), ports.ExtractionRequest{Section: section, Document: "Lease\nterms", OutputLanguage: "en"})
		if err != nil {
			t.Fatalf("Extract(%s) error = %v", section, err)
		}
		if err := data.Validate(); err != nil {
			t.Fatalf("%s payload invalid: %v", section, err)
		}
	}
	quick, _ := sess.QuickTake(context.Background(), "Lease\nterms", "en")
	if quick != "[en] Lease" {
		t.Fatalf("QuickTake() = %q", quick)
	}
}

func TestFixtureTranslator(t *testing.T) {
	tr := &Translator{Downloadable: map[string]bool{"en->ar": true}}
	if a, _ := tr.Availability(context.Background(), "en", "ar"); a != domain.AvailabilityDownloadable {
		t.Fatalf("expected downloadable, got %s", a)
	}
	if a, _ := tr.Availability(context.Background(), "en", "es"); a != domain.AvailabilityAvailable {
		t.Fatalf("expected available, got %s", a)
	}
	if out, _ := tr.Translate(context.Background(), "hi", "en", "es"); out != "[es] hi" {
		t.Fatalf("Translate() = %q", out)
	}
}
