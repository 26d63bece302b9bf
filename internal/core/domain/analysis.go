package domain

import (
	"errors"
	"fmt"
	"strings"
)

type Party struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type Metadata struct {
	Title           string  `json:"title"`
	ContractType    string  `json:"contract_type"`
	Parties         []Party `json:"parties"`
	EffectiveDate   string  `json:"effective_date,omitempty"`
	ExpirationDate  string  `json:"expiration_date,omitempty"`
	RenewalTerms    string  `json:"renewal_terms,omitempty"`
	GoverningLaw    string  `json:"governing_law,omitempty"`
	TotalValue      string  `json:"total_value,omitempty"`
	Currency        string  `json:"currency,omitempty"`
	DocumentPurpose string  `json:"document_purpose,omitempty"`
}

func (m *Metadata) Section() SectionName { return SectionMetadata }

func (m *Metadata) Validate() error {
	if strings.TrimSpace(m.ContractType) == "" {
		return schemaError(SectionMetadata, "contract_type is required")
	}
	if len(m.Parties) == 0 {
		return schemaError(SectionMetadata, "at least one party is required")
	}
	for i, p := range m.Parties {
		if strings.TrimSpace(p.Name) == "" {
			return schemaError(SectionMetadata, fmt.Sprintf("parties[%d].name is required", i))
		}
	}
	return nil
}

func (m *Metadata) CloneData() SectionData {
	out := *m
	out.Parties = append([]Party(nil), m.Parties...)
	return &out
}

// Party names, dates, amounts and currency codes are kept verbatim.
func (m *Metadata) TranslatableFields() []*string {
	fields := []*string{&m.Title, &m.ContractType, &m.RenewalTerms, &m.GoverningLaw, &m.DocumentPurpose}
	for i := range m.Parties {
		fields = append(fields, &m.Parties[i].Role)
	}
	return fields
}

type Summary struct {
	QuickTake       *string  `json:"quick_take"`
	Overview        string   `json:"overview"`
	KeyPoints       []string `json:"key_points"`
	UserPerspective string   `json:"user_perspective,omitempty"`
}

func (s *Summary) Section() SectionName { return SectionSummary }

func (s *Summary) Validate() error {
	if strings.TrimSpace(s.Overview) == "" {
		return schemaError(SectionSummary, "overview is required")
	}
	return nil
}

func (s *Summary) CloneData() SectionData {
	out := *s
	out.KeyPoints = append([]string(nil), s.KeyPoints...)
	if s.QuickTake != nil {
		quick := *s.QuickTake
		out.QuickTake = &quick
	}
	return &out
}

func (s *Summary) TranslatableFields() []*string {
	fields := []*string{&s.Overview, &s.UserPerspective}
	if s.QuickTake != nil {
		fields = append(fields, s.QuickTake)
	}
	for i := range s.KeyPoints {
		fields = append(fields, &s.KeyPoints[i])
	}
	return fields
}

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	default:
		return false
	}
}

type Risk struct {
	Title       string   `json:"title"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Clause      string   `json:"clause,omitempty"`
	Mitigation  string   `json:"mitigation,omitempty"`
}

type RiskReport struct {
	Items []Risk `json:"items"`
}

func (r *RiskReport) Section() SectionName { return SectionRisks }

func (r *RiskReport) Validate() error {
	for i, item := range r.Items {
		if strings.TrimSpace(item.Title) == "" {
			return schemaError(SectionRisks, fmt.Sprintf("items[%d].title is required", i))
		}
		if !item.Severity.Valid() {
			return schemaError(SectionRisks, fmt.Sprintf("items[%d].severity %q is invalid", i, item.Severity))
		}
	}
	return nil
}

func (r *RiskReport) CloneData() SectionData {
	return &RiskReport{Items: append([]Risk(nil), r.Items...)}
}

func (r *RiskReport) TranslatableFields() []*string {
	fields := make([]*string, 0, len(r.Items)*3)
	for i := range r.Items {
		fields = append(fields, &r.Items[i].Title, &r.Items[i].Description, &r.Items[i].Mitigation)
	}
	return fields
}

type Obligation struct {
	Party       string `json:"party"`
	Description string `json:"description"`
	Deadline    string `json:"deadline,omitempty"`
	Recurrence  string `json:"recurrence,omitempty"`
}

type ObligationReport struct {
	Items []Obligation `json:"items"`
}

func (o *ObligationReport) Section() SectionName { return SectionObligations }

func (o *ObligationReport) Validate() error {
	for i, item := range o.Items {
		if strings.TrimSpace(item.Description) == "" {
			return schemaError(SectionObligations, fmt.Sprintf("items[%d].description is required", i))
		}
	}
	return nil
}

func (o *ObligationReport) CloneData() SectionData {
	return &ObligationReport{Items: append([]Obligation(nil), o.Items...)}
}

func (o *ObligationReport) TranslatableFields() []*string {
	fields := make([]*string, 0, len(o.Items)*2)
	for i := range o.Items {
		fields = append(fields, &o.Items[i].Description, &o.Items[i].Recurrence)
	}
	return fields
}

type Omission struct {
	Topic       string   `json:"topic"`
	Description string   `json:"description"`
	Importance  Severity `json:"importance"`
}

type Question struct {
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
}

type OmissionReport struct {
	Omissions []Omission `json:"omissions"`
	Questions []Question `json:"questions"`
}

func (o *OmissionReport) Section() SectionName { return SectionOmissions }

func (o *OmissionReport) Validate() error {
	for i, item := range o.Omissions {
		if strings.TrimSpace(item.Topic) == "" {
			return schemaError(SectionOmissions, fmt.Sprintf("omissions[%d].topic is required", i))
		}
		if item.Importance != "" && !item.Importance.Valid() {
			return schemaError(SectionOmissions, fmt.Sprintf("omissions[%d].importance %q is invalid", i, item.Importance))
		}
	}
	for i, q := range o.Questions {
		if strings.TrimSpace(q.Question) == "" {
			return schemaError(SectionOmissions, fmt.Sprintf("questions[%d].question is required", i))
		}
	}
	return nil
}

func (o *OmissionReport) CloneData() SectionData {
	return &OmissionReport{
		Omissions: append([]Omission(nil), o.Omissions...),
		Questions: append([]Question(nil), o.Questions...),
	}
}

func (o *OmissionReport) TranslatableFields() []*string {
	fields := make([]*string, 0, len(o.Omissions)*2+len(o.Questions)*2)
	for i := range o.Omissions {
		fields = append(fields, &o.Omissions[i].Topic, &o.Omissions[i].Description)
	}
	for i := range o.Questions {
		fields = append(fields, &o.Questions[i].Question, &o.Questions[i].Context)
	}
	return fields
}

func schemaError(section SectionName, msg string) error {
	return WrapError(ErrSchemaViolation, "validate "+string(section), errors.New(msg))
}
