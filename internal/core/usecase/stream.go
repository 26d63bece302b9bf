package usecase

import (
	"context"
	"sync"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

type runState string

const (
	stateInit            runState = "init"
	statePretranslating  runState = "pretranslating"
	stateMetadataPending runState = "metadata_pending"
	stateStreaming       runState = "streaming"
	stateDone            runState = "done"
	stateFailed          runState = "failed"
	stateCancelled       runState = "cancelled"
)

func (s runState) terminal() bool {
	return s == stateDone || s == stateFailed || s == stateCancelled
}

// Stream is one analysis run. Events are delivered in emission order on an
// unbuffered channel; nothing is delivered once Cancel returns.
type Stream struct {
	runID  string
	ctx    context.Context
	cancel context.CancelFunc
	events chan domain.SectionEvent

	sendMu sync.Mutex
	closed bool

	mu    sync.Mutex
	state runState
	plan  domain.LanguagePlan
	err   error
}

func newStream(parent context.Context, runID string) *Stream {
	ctx, cancel := context.WithCancel(parent)
	return &Stream{
		runID:  runID,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan domain.SectionEvent),
		state:  stateInit,
	}
}

func (s *Stream) RunID() string { return s.runID }

func (s *Stream) Events() <-chan domain.SectionEvent { return s.events }

func (s *Stream) Plan() domain.LanguagePlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}

func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) State() runState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Outcome maps the final state; it is empty while the run is live.
func (s *Stream) Outcome() domain.RunOutcome {
	switch s.State() {
	case stateDone:
		return domain.RunOutcomeDone
	case stateFailed:
		return domain.RunOutcomeFailed
	case stateCancelled:
		return domain.RunOutcomeCancelled
	default:
		return ""
	}
}

// Cancel stops the run. Blocked emitters observe the cancelled context before
// the closed flag is set, so Cancel never waits on a consumer.
func (s *Stream) Cancel() {
	s.cancel()
	s.sendMu.Lock()
	s.closed = true
	s.sendMu.Unlock()
}

// emit reports false when the run no longer accepts events.
func (s *Stream) emit(ev domain.SectionEvent) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed || s.ctx.Err() != nil {
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Stream) setPlan(plan domain.LanguagePlan) {
	s.mu.Lock()
	s.plan = plan
	s.mu.Unlock()
}

// transition moves the run forward; terminal states are final.
func (s *Stream) transition(next runState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.terminal() {
		return false
	}
	s.state = next
	return true
}

func (s *Stream) finish(state runState, err error) {
	s.mu.Lock()
	if !s.state.terminal() {
		s.state = state
		s.err = err
	}
	s.mu.Unlock()

	s.sendMu.Lock()
	s.closed = true
	close(s.events)
	s.sendMu.Unlock()
	s.cancel()
}
