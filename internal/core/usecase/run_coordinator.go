package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
)

// RunCoordinator keeps at most one live run per key. Starting a run cancels
// the previous one, and events of a superseded run are never delivered.
type RunCoordinator struct {
	analyzer ports.ContractAnalyzer

	mu    sync.Mutex
	slots map[string]*runSlot
}

type runSlot struct {
	mu      sync.Mutex
	current *runToken
	retired bool
}

type runToken struct {
	stream ports.AnalysisStream
}

// CoordinatedRun is the handle of a run started through a RunCoordinator.
type CoordinatedRun struct {
	stream     ports.AnalysisStream
	done       chan struct{}
	err        error
	superseded bool
}

func (r *CoordinatedRun) RunID() string             { return r.stream.RunID() }
func (r *CoordinatedRun) Plan() domain.LanguagePlan { return r.stream.Plan() }
func (r *CoordinatedRun) Cancel()                   { r.stream.Cancel() }

// Done is closed after the last event was delivered or dropped.
func (r *CoordinatedRun) Done() <-chan struct{} { return r.done }

// Err is the fatal error of the run; valid after Done.
func (r *CoordinatedRun) Err() error {
	<-r.done
	return r.err
}

// Outcome is valid after Done; a superseded run reports cancelled.
func (r *CoordinatedRun) Outcome() domain.RunOutcome {
	if r.superseded {
		return domain.RunOutcomeCancelled
	}
	return r.stream.Outcome()
}

// Wait blocks until the run ends and returns its fatal error, if any.
func (r *CoordinatedRun) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func NewRunCoordinator(analyzer ports.ContractAnalyzer) *RunCoordinator {
	return &RunCoordinator{
		analyzer: analyzer,
		slots:    make(map[string]*runSlot),
	}
}

// lockSlot returns the live slot for key, locked.
func (c *RunCoordinator) lockSlot(key string) *runSlot {
	for {
		c.mu.Lock()
		s, ok := c.slots[key]
		if !ok {
			s = &runSlot{}
			c.slots[key] = s
		}
		c.mu.Unlock()

		s.mu.Lock()
		if !s.retired {
			return s
		}
		s.mu.Unlock()
	}
}

// Start cancels the run currently registered under key and starts a new one.
// sink is called serially, only while the run is still current.
func (c *RunCoordinator) Start(
	ctx context.Context,
	key string,
	contract domain.Contract,
	actx domain.AnalysisContext,
	sink func(domain.SectionEvent),
) (*CoordinatedRun, error) {
	slot := c.lockSlot(key)
	if prev := slot.current; prev != nil {
		slog.Info("run_superseded", "key", key, "run_id", prev.stream.RunID())
		prev.stream.Cancel()
		slot.current = nil
	}
	stream, err := c.analyzer.AnalyzeStreaming(ctx, contract, actx)
	if err != nil {
		slot.mu.Unlock()
		return nil, err
	}
	token := &runToken{stream: stream}
	slot.current = token
	slot.mu.Unlock()

	run := &CoordinatedRun{stream: stream, done: make(chan struct{})}
	go func() {
		defer close(run.done)
		for ev := range stream.Events() {
			c.deliver(slot, token, ev, sink)
		}
		run.err = stream.Err()
		run.superseded = !c.release(key, slot, token)
	}()
	return run, nil
}

// Cancel stops the run registered under key, if any.
func (c *RunCoordinator) Cancel(key string) {
	c.mu.Lock()
	slot, ok := c.slots[key]
	c.mu.Unlock()
	if !ok {
		return
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.current != nil {
		slot.current.stream.Cancel()
		slot.current = nil
	}
}

func (c *RunCoordinator) deliver(slot *runSlot, token *runToken, ev domain.SectionEvent, sink func(domain.SectionEvent)) {
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.current != token || sink == nil {
		return
	}
	sink(ev)
}

// release reports whether token was still the current run of its slot.
func (c *RunCoordinator) release(key string, slot *runSlot, token *runToken) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot.mu.Lock()
	defer slot.mu.Unlock()
	current := slot.current == token
	if current {
		slot.current = nil
	}
	if slot.current == nil && !slot.retired {
		slot.retired = true
		if c.slots[key] == slot {
			delete(c.slots, key)
		}
	}
	return current
}
