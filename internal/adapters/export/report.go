// Package export renders cached analyses for people: a YAML document for the
// CLI and an XLSX workbook for download.
package export

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

// Report is the language-specific view of one cached analysis.
type Report struct {
	ContractID   string               `yaml:"contract_id"`
	Language     string               `yaml:"language"`
	TranslatedAt time.Time            `yaml:"translated_at"`
	Metadata     *domain.Metadata     `yaml:"metadata,omitempty"`
	Summary      *domain.Summary      `yaml:"summary,omitempty"`
	Risks        []domain.Risk        `yaml:"risks,omitempty"`
	Obligations  []domain.Obligation  `yaml:"obligations,omitempty"`
	Omissions    []domain.Omission    `yaml:"omissions,omitempty"`
	Questions    []domain.Question    `yaml:"questions,omitempty"`
	Missing      []domain.SectionName `yaml:"missing_sections,omitempty"`
}

func NewReport(contractID, language string, analysis *domain.CachedAnalysis) Report {
	report := Report{
		ContractID:   contractID,
		Language:     language,
		TranslatedAt: analysis.TranslatedAt.UTC(),
		Metadata:     analysis.Metadata,
		Summary:      analysis.Summary,
		Risks:        analysis.Risks,
		Obligations:  analysis.Obligations,
		Omissions:    analysis.Omissions,
		Questions:    analysis.Questions,
	}
	for _, section := range domain.AllSections() {
		if !analysis.Has(section) {
			report.Missing = append(report.Missing, section)
		}
	}
	return report
}

func WriteYAML(w io.Writer, report Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close yaml encoder: %w", err)
	}
	return nil
}
