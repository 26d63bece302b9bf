package domain

import "time"

// ContractInfo describes an ingested contract.
type ContractInfo struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	Language   string    `json:"language,omitempty"`
	Characters int       `json:"characters"`
	CreatedAt  time.Time `json:"created_at"`
}

// AnalysisRequest is the queued form of an analysis run.
type AnalysisRequest struct {
	RunID       string          `json:"run_id"`
	SessionID   string          `json:"session_id,omitempty"`
	ContractID  string          `json:"contract_id"`
	Context     AnalysisContext `json:"context"`
	RequestedAt time.Time       `json:"requested_at"`
}

type RunOutcome string

const (
	RunOutcomeDone      RunOutcome = "done"
	RunOutcomeFailed    RunOutcome = "failed"
	RunOutcomeCancelled RunOutcome = "cancelled"
)

// RunFinished is published once per run after its last section event.
type RunFinished struct {
	RunID     string     `json:"run_id"`
	Outcome   RunOutcome `json:"outcome"`
	Error     string     `json:"error,omitempty"`
	ErrorKind ErrorKind  `json:"error_kind,omitempty"`
	Retryable bool       `json:"retryable,omitempty"`
}

func NewRunFinished(runID string, outcome RunOutcome, err error) RunFinished {
	finished := RunFinished{RunID: runID, Outcome: outcome}
	if err != nil {
		finished.Error = err.Error()
		finished.ErrorKind = KindOf(err)
		finished.Retryable = finished.ErrorKind.Retryable()
	}
	return finished
}
