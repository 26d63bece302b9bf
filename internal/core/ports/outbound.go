package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

// ExtractionRequest asks a generation session for one structured section.
type ExtractionRequest struct {
	Section        domain.SectionName
	Document       string
	OutputLanguage string
	Context        domain.AnalysisContext
}

// TextGenerator creates language-model sessions. It natively supports only
// the languages returned by SupportedLanguages.
type TextGenerator interface {
	SupportedLanguages() []string
	CreateSession(ctx context.Context, actx domain.AnalysisContext) (GenerationSession, error)
}

// GenerationSession produces schema-conformant section payloads.
type GenerationSession interface {
	Extract(ctx context.Context, req ExtractionRequest) (domain.SectionData, error)
	QuickTake(ctx context.Context, document, outputLanguage string) (string, error)
	Close() error
}

// Translator converts text between arbitrary language pairs.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
	Availability(ctx context.Context, source, target string) (domain.Availability, error)
}

// LanguageDetector returns a language code or domain.ErrDetectionFailed.
type LanguageDetector interface {
	Detect(ctx context.Context, text string) (string, error)
}

// AnalysisCacheStore persists per-language section results of a contract.
type AnalysisCacheStore interface {
	PutSection(ctx context.Context, contractID, language string, data domain.SectionData) error
	Put(ctx context.Context, contractID, language string, analysis domain.CachedAnalysis) error
	// Get returns domain.ErrCacheMiss for absent or expired entries.
	Get(ctx context.Context, contractID, language string) (*domain.CachedAnalysis, error)
	Languages(ctx context.Context, contractID string) ([]string, error)
}

// ObjectStorage stores uploaded contracts and their extracted text.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor extracts plain text from an uploaded document.
type TextExtractor interface {
	Extract(ctx context.Context, filename, mimeType string, data []byte) (string, error)
}

// MessageQueue carries queued analysis requests.
type MessageQueue interface {
	PublishAnalysisRequested(ctx context.Context, req domain.AnalysisRequest) error
	SubscribeAnalysisRequested(ctx context.Context, handler func(context.Context, domain.AnalysisRequest) error) error
}

// EventPublisher fans streamed section events out to remote consumers.
type EventPublisher interface {
	PublishSectionEvent(ctx context.Context, runID string, event domain.SectionEvent) error
	PublishRunFinished(ctx context.Context, finished domain.RunFinished) error
}

// AnalysisObserver receives run, section and cache outcomes for metrics.
type AnalysisObserver interface {
	RunFinished(outcome domain.RunOutcome, duration time.Duration)
	SectionFinished(section domain.SectionName, outcome string)
	SectionRetried(section domain.SectionName)
	CacheOperation(op, result string)
}
