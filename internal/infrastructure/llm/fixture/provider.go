// Package fixture is a deterministic provider for local runs and tests. It
// never calls a network service.
package fixture

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/llm/prompts"
)

type Provider struct {
	languages []string
}

func New(languages []string) *Provider {
	return &Provider{languages: languages}
}

func (p *Provider) SupportedLanguages() []string {
	return append([]string(nil), p.languages...)
}

func (p *Provider) CreateSession(_ context.Context, actx domain.AnalysisContext) (ports.GenerationSession, error) {
	return &session{actx: actx}, nil
}

type session struct {
	actx domain.AnalysisContext
}

func (s *session) Extract(ctx context.Context, req ports.ExtractionRequest) (domain.SectionData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tag := "[" + req.OutputLanguage + "] "
	first, second := "Party A", "Party B"
	if p := s.actx.Parties; p != nil {
		if p.First != "" {
			first = p.First
		}
		if p.Second != "" {
			second = p.Second
		}
	}

	switch req.Section {
	case domain.SectionMetadata:
		return &domain.Metadata{
			Title:           tag + headline(req.Document),
			ContractType:    tag + "services agreement",
			Parties:         []domain.Party{{Name: first, Role: tag + "provider"}, {Name: second, Role: tag + "client"}},
			DocumentPurpose: tag + "fixture analysis",
		}, nil
	case domain.SectionSummary:
		return &domain.Summary{
			Overview:        tag + fmt.Sprintf("A contract of %d words between %s and %s.", len(strings.Fields(req.Document)), first, second),
			KeyPoints:       []string{tag + "Fees are payable monthly.", tag + "Either party may terminate with notice."},
			UserPerspective: perspective(tag, s.actx.UserRole),
		}, nil
	case domain.SectionRisks:
		return &domain.RiskReport{Items: []domain.Risk{
			{Title: tag + "Uncapped liability", Severity: domain.SeverityHigh, Description: tag + "Damages are not limited."},
			{Title: tag + "Automatic renewal", Severity: domain.SeverityMedium, Description: tag + "The term renews unless cancelled."},
		}}, nil
	case domain.SectionObligations:
		return &domain.ObligationReport{Items: []domain.Obligation{
			{Party: first, Description: tag + "Deliver the services.", Recurrence: tag + "monthly"},
			{Party: second, Description: tag + "Pay invoices within 30 days."},
		}}, nil
	case domain.SectionOmissions:
		return &domain.OmissionReport{
			Omissions: []domain.Omission{{Topic: tag + "Data protection", Description: tag + "No data processing terms.", Importance: domain.SeverityHigh}},
			Questions: []domain.Question{{Question: tag + "Who owns the work product?"}},
		}, nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "fixture extract", fmt.Errorf("unknown section %q", req.Section))
	}
}

func (s *session) QuickTake(ctx context.Context, document, outputLanguage string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "[" + outputLanguage + "] " + headline(document), nil
}

func (s *session) Close() error { return nil }

func headline(document string) string {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(document), "\n", 2)[0])
	if runes := []rune(line); len(runes) > 80 {
		line = string(runes[:80])
	}
	return line
}

func perspective(tag, role string) string {
	if role == "" {
		return ""
	}
	return tag + "As the " + role + ", review the liability and renewal terms."
}

// Translator marks translated text with the target language. Pairs listed in
// Downloadable report as needing a download.
type Translator struct {
	Downloadable map[string]bool
}

func (t *Translator) Availability(_ context.Context, source, target string) (domain.Availability, error) {
	if _, ok := prompts.LanguageName(source); !ok {
		return domain.AvailabilityUnavailable, nil
	}
	if _, ok := prompts.LanguageName(target); !ok {
		return domain.AvailabilityUnavailable, nil
	}
	if t.Downloadable[source+"->"+target] {
		return domain.AvailabilityDownloadable, nil
	}
	return domain.AvailabilityAvailable, nil
}

func (t *Translator) Translate(ctx context.Context, text, _, target string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "[" + target + "] " + text, nil
}
