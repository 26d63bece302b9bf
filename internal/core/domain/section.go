package domain

import (
	"encoding/json"
	"fmt"
)

type SectionName string

const (
	SectionMetadata    SectionName = "metadata"
	SectionSummary     SectionName = "summary"
	SectionRisks       SectionName = "risks"
	SectionObligations SectionName = "obligations"
	SectionOmissions   SectionName = "omissions_questions"
)

// StreamedSections are started together once metadata is available.
var StreamedSections = []SectionName{
	SectionSummary,
	SectionRisks,
	SectionObligations,
	SectionOmissions,
}

func AllSections() []SectionName {
	return append([]SectionName{SectionMetadata}, StreamedSections...)
}

// Progress is a UI hint only; sections may complete out of numeric order.
func (s SectionName) Progress() int {
	switch s {
	case SectionMetadata:
		return 20
	case SectionSummary:
		return 40
	case SectionRisks:
		return 60
	case SectionObligations:
		return 80
	case SectionOmissions:
		return 90
	default:
		return 0
	}
}

func (s SectionName) Critical() bool {
	return s == SectionMetadata
}

func (s SectionName) Valid() bool {
	return s.Progress() > 0
}

// SectionData is implemented by the five typed section payloads.
type SectionData interface {
	Section() SectionName
	Validate() error
	CloneData() SectionData
	// TranslatableFields returns pointers to the free-text fields of the payload.
	TranslatableFields() []*string
}

// SectionEvent is one element of an analysis stream.
type SectionEvent struct {
	Section    SectionName
	Data       SectionData
	Progress   int
	IsRetrying bool
	RetryCount int
}

func (e SectionEvent) Terminal() bool {
	return !e.IsRetrying
}

func (e SectionEvent) Failed() bool {
	return e.Terminal() && e.Data == nil
}

type sectionEventJSON struct {
	Section    SectionName     `json:"section"`
	Data       json.RawMessage `json:"data"`
	Progress   int             `json:"progress"`
	IsRetrying bool            `json:"isRetrying"`
	RetryCount int             `json:"retryCount"`
}

func (e SectionEvent) MarshalJSON() ([]byte, error) {
	data := json.RawMessage("null")
	if e.Data != nil {
		raw, err := json.Marshal(e.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s data: %w", e.Section, err)
		}
		data = raw
	}
	return json.Marshal(sectionEventJSON{
		Section:    e.Section,
		Data:       data,
		Progress:   e.Progress,
		IsRetrying: e.IsRetrying,
		RetryCount: e.RetryCount,
	})
}

func (e *SectionEvent) UnmarshalJSON(raw []byte) error {
	var wire sectionEventJSON
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}
	data, err := DecodeSectionData(wire.Section, wire.Data)
	if err != nil {
		return err
	}
	*e = SectionEvent{
		Section:    wire.Section,
		Data:       data,
		Progress:   wire.Progress,
		IsRetrying: wire.IsRetrying,
		RetryCount: wire.RetryCount,
	}
	return nil
}

// NewSectionData returns an empty payload of the section's type.
func NewSectionData(section SectionName) (SectionData, error) {
	switch section {
	case SectionMetadata:
		return &Metadata{}, nil
	case SectionSummary:
		return &Summary{}, nil
	case SectionRisks:
		return &RiskReport{}, nil
	case SectionObligations:
		return &ObligationReport{}, nil
	case SectionOmissions:
		return &OmissionReport{}, nil
	default:
		return nil, WrapError(ErrInvalidInput, "section data", fmt.Errorf("unknown section %q", section))
	}
}

func DecodeSectionData(section SectionName, raw []byte) (SectionData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	data, err := NewSectionData(section)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("decode %s data: %w", section, err)
	}
	return data, nil
}
