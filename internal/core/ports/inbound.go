package ports

import (
	"context"
	"io"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

// AnalysisStream is the consumer side of one streaming analysis run.
type AnalysisStream interface {
	RunID() string
	Plan() domain.LanguagePlan
	// Events is closed once the run reaches done, failed or cancelled.
	Events() <-chan domain.SectionEvent
	// Err reports the fatal error of a failed run; valid after Events is closed.
	Err() error
	// Outcome is done, failed or cancelled once Events is closed.
	Outcome() domain.RunOutcome
	Cancel()
}

// ContractAnalyzer is the inbound contract for streaming contract analysis.
type ContractAnalyzer interface {
	AnalyzeStreaming(ctx context.Context, contract domain.Contract, actx domain.AnalysisContext) (AnalysisStream, error)
}

// ContractIngestor is the inbound contract for contract upload and lookup.
type ContractIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.ContractInfo, error)
	Load(ctx context.Context, contractID string) (domain.Contract, error)
}

// AnalysisReader serves cached analyses, deriving missing languages by translation.
type AnalysisReader interface {
	Resolve(ctx context.Context, contractID, language string) (*domain.CachedAnalysis, error)
	Languages(ctx context.Context, contractID string) ([]string, error)
}
