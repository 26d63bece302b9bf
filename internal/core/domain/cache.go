package domain

import "time"

// CachedAnalysis is the per-language record of the interim cache. Both stores
// persist it as this JSON object:
//
//	{"metadata": {...}, "summary": {...}, "risks": [...], "obligations": [...],
//	 "omissions": [...], "questions": [...], "translatedAt": "RFC 3339",
//	 "present": ["metadata", "risks", ...]}
//
// "present" lists the sections written so far. A section missing from it was
// never produced, while a listed section with an empty list is a real result.
type CachedAnalysis struct {
	Metadata     *Metadata    `json:"metadata"`
	Summary      *Summary     `json:"summary"`
	Risks        []Risk       `json:"risks"`
	Obligations  []Obligation `json:"obligations"`
	Omissions    []Omission   `json:"omissions"`
	Questions    []Question   `json:"questions"`
	TranslatedAt time.Time    `json:"translatedAt"`

	Present []SectionName `json:"present,omitempty"`
}

// Patch writes one section into the record.
func (c *CachedAnalysis) Patch(data SectionData) {
	if data == nil {
		return
	}
	switch v := data.CloneData().(type) {
	case *Metadata:
		c.Metadata = v
	case *Summary:
		c.Summary = v
	case *RiskReport:
		c.Risks = v.Items
	case *ObligationReport:
		c.Obligations = v.Items
	case *OmissionReport:
		c.Omissions = v.Omissions
		c.Questions = v.Questions
	}
	c.markPresent(data.Section())
}

func (c *CachedAnalysis) Has(section SectionName) bool {
	for _, s := range c.Present {
		if s == section {
			return true
		}
	}
	return false
}

// SectionData returns the typed payload of a section, or nil when it was never written.
func (c *CachedAnalysis) SectionData(section SectionName) SectionData {
	if !c.Has(section) {
		return nil
	}
	switch section {
	case SectionMetadata:
		if c.Metadata == nil {
			return nil
		}
		return c.Metadata.CloneData()
	case SectionSummary:
		if c.Summary == nil {
			return nil
		}
		return c.Summary.CloneData()
	case SectionRisks:
		return (&RiskReport{Items: c.Risks}).CloneData()
	case SectionObligations:
		return (&ObligationReport{Items: c.Obligations}).CloneData()
	case SectionOmissions:
		return (&OmissionReport{Omissions: c.Omissions, Questions: c.Questions}).CloneData()
	default:
		return nil
	}
}

func (c *CachedAnalysis) Clone() *CachedAnalysis {
	if c == nil {
		return nil
	}
	out := &CachedAnalysis{TranslatedAt: c.TranslatedAt}
	for _, section := range c.Present {
		out.Patch(c.SectionData(section))
	}
	return out
}

func (c *CachedAnalysis) Expired(now time.Time, retention time.Duration) bool {
	if retention <= 0 {
		return false
	}
	return now.Sub(c.TranslatedAt) > retention
}

func (c *CachedAnalysis) markPresent(section SectionName) {
	if c.Has(section) {
		return
	}
	c.Present = append(c.Present, section)
}
