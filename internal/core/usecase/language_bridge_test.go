package usecase

import (
	"errors"
	"testing"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

func TestLanguageBridgePlan(t *testing.T) {
	bridge := NewLanguageBridge([]string{"en", "es", "ja"}, "en")

	tests := []struct {
		name     string
		contract string
		output   string
		want     domain.LanguagePlan
	}{
		{
			name:     "native",
			contract: "ja",
			output:   "ja",
			want:     domain.LanguagePlan{SourceLanguage: "ja", TargetLanguage: "ja", AnalysisLanguage: "ja", BridgeLanguage: "en"},
		},
		{
			name:     "unsupported both ways",
			contract: "ar",
			output:   "ar",
			want: domain.LanguagePlan{
				SourceLanguage: "ar", TargetLanguage: "ar", AnalysisLanguage: "en", BridgeLanguage: "en",
				NeedsPreTranslation: true, NeedsPostTranslation: true,
			},
		},
		{
			name:     "unsupported contract supported output",
			contract: "de",
			output:   "es",
			want: domain.LanguagePlan{
				SourceLanguage: "de", TargetLanguage: "es", AnalysisLanguage: "es", BridgeLanguage: "en",
				NeedsPreTranslation: true,
			},
		},
		{
			name:     "supported contract unsupported output",
			contract: "en",
			output:   "fr",
			want: domain.LanguagePlan{
				SourceLanguage: "en", TargetLanguage: "fr", AnalysisLanguage: "en", BridgeLanguage: "en",
				NeedsPostTranslation: true,
			},
		},
		{
			name:     "output defaults to contract language",
			contract: "ES-es",
			output:   "",
			want:     domain.LanguagePlan{SourceLanguage: "es", TargetLanguage: "es", AnalysisLanguage: "es", BridgeLanguage: "en"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bridge.Plan(tt.contract, tt.output)
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Plan() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLanguageBridgeMisconfigured(t *testing.T) {
	cases := map[string]*LanguageBridge{
		"no languages":       NewLanguageBridge(nil, "en"),
		"unsupported bridge": NewLanguageBridge([]string{"es", "ja"}, "en"),
		"blank entries only": NewLanguageBridge([]string{" ", ""}, "en"),
	}
	for name, bridge := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := bridge.Plan("en", "en"); !errors.Is(err, domain.ErrBridgeMisconfigured) {
				t.Fatalf("expected ErrBridgeMisconfigured, got %v", err)
			}
		})
	}
}

func TestLanguageBridgeUnknownContractLanguage(t *testing.T) {
	bridge := NewLanguageBridge([]string{"en"}, "")
	if bridge.BridgeLanguage() != "en" {
		t.Fatalf("expected default bridge en, got %q", bridge.BridgeLanguage())
	}
	if _, err := bridge.Plan("", "en"); err == nil {
		t.Fatalf("expected error for unknown contract language")
	}
}
