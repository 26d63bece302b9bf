package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

type fakeContractLoader struct {
	contracts map[string]domain.Contract
}

func (f fakeContractLoader) Upload(context.Context, string, string, io.Reader) (*domain.ContractInfo, error) {
	return nil, errors.New("not implemented")
}

func (f fakeContractLoader) Load(_ context.Context, contractID string) (domain.Contract, error) {
	contract, ok := f.contracts[contractID]
	if !ok {
		return domain.Contract{}, domain.WrapError(domain.ErrContractNotFound, "load contract", errors.New(contractID))
	}
	return contract, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	events   map[string][]domain.SectionEvent
	finished []domain.RunFinished
}

func (p *recordingPublisher) PublishSectionEvent(_ context.Context, runID string, ev domain.SectionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[string][]domain.SectionEvent)
	}
	p.events[runID] = append(p.events[runID], ev)
	return nil
}

func (p *recordingPublisher) PublishRunFinished(_ context.Context, finished domain.RunFinished) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = append(p.finished, finished)
	return nil
}

func TestRemoteRunPublishesEventsUnderRequestRunID(t *testing.T) {
	f := newAnalyzeFixture(t)
	publisher := &recordingPublisher{}
	loader := fakeContractLoader{contracts: map[string]domain.Contract{"c1": sampleContract()}}
	uc := NewRemoteRunUseCase(loader, NewRunCoordinator(f.uc), publisher)

	outcome, err := uc.Handle(context.Background(), domain.AnalysisRequest{
		RunID:      "remote-1",
		ContractID: "c1",
		Context:    domain.AnalysisContext{ContractLanguage: "en"},
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if outcome != domain.RunOutcomeDone {
		t.Fatalf("expected done, got %q", outcome)
	}

	terminals := 0
	for _, ev := range publisher.events["remote-1"] {
		if ev.Terminal() {
			terminals++
		}
	}
	if terminals != 5 {
		t.Fatalf("expected 5 terminal events, got %d", terminals)
	}
	if len(publisher.finished) != 1 || publisher.finished[0].Outcome != domain.RunOutcomeDone {
		t.Fatalf("unexpected finished messages: %+v", publisher.finished)
	}
}

func TestRemoteRunReportsMissingContract(t *testing.T) {
	f := newAnalyzeFixture(t)
	publisher := &recordingPublisher{}
	uc := NewRemoteRunUseCase(fakeContractLoader{}, NewRunCoordinator(f.uc), publisher)

	outcome, err := uc.Handle(context.Background(), domain.AnalysisRequest{RunID: "remote-2", ContractID: "missing"})
	if !domain.IsKind(err, domain.ErrContractNotFound) {
		t.Fatalf("expected contract not found, got %v", err)
	}
	if outcome != domain.RunOutcomeFailed {
		t.Fatalf("expected failed, got %q", outcome)
	}
	if len(publisher.finished) != 1 || publisher.finished[0].Error == "" {
		t.Fatalf("expected failed finished message, got %+v", publisher.finished)
	}
	if kind := publisher.finished[0].ErrorKind; kind != domain.KindContractNotFound {
		t.Fatalf("expected contract_not_found kind, got %q", kind)
	}
}

func TestRemoteRunRequiresRunID(t *testing.T) {
	f := newAnalyzeFixture(t)
	publisher := &recordingPublisher{}
	uc := NewRemoteRunUseCase(fakeContractLoader{}, NewRunCoordinator(f.uc), publisher)

	if _, err := uc.Handle(context.Background(), domain.AnalysisRequest{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(publisher.finished) != 0 {
		t.Fatalf("nothing should be published without a run id")
	}
}
