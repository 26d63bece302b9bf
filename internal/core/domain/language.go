package domain

import "strings"

const DefaultBridgeLanguage = "en"

// LanguagePlan is the effective language pipeline for one analysis run.
type LanguagePlan struct {
	SourceLanguage       string `json:"source_language"`
	TargetLanguage       string `json:"target_language"`
	AnalysisLanguage     string `json:"analysis_language"`
	BridgeLanguage       string `json:"bridge_language"`
	NeedsPreTranslation  bool   `json:"needs_pre_translation"`
	NeedsPostTranslation bool   `json:"needs_post_translation"`
	DetectionFailed      bool   `json:"detection_failed,omitempty"`
}

type Availability string

const (
	AvailabilityAvailable    Availability = "available"
	AvailabilityDownloadable Availability = "downloadable"
	AvailabilityUnavailable  Availability = "unavailable"
)

// NormalizeLanguage reduces a BCP-47 tag to its lowercase primary subtag.
func NormalizeLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if idx := strings.IndexAny(tag, "-_"); idx >= 0 {
		tag = tag[:idx]
	}
	return tag
}
