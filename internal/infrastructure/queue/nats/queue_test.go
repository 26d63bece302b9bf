package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

func TestEventMessageRoundTrip(t *testing.T) {
	q := &Queue{eventPrefix: DefaultEventSubjectPrefix}

	event := domain.SectionEvent{
		Section:  domain.SectionRisks,
		Data:     &domain.RiskReport{Items: []domain.Risk{{Title: "Uncapped liability", Severity: domain.SeverityHigh}}},
		Progress: domain.SectionRisks.Progress(),
	}
	msg, err := q.eventMessage("run-1", eventTypeSection, event)
	if err != nil {
		t.Fatalf("eventMessage() error = %v", err)
	}
	if msg.Subject != "contracts.analysis.run-1" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}

	got, finished, err := decodeEventMessage(msg)
	if err != nil {
		t.Fatalf("decodeEventMessage() error = %v", err)
	}
	if finished != nil || got.Section != domain.SectionRisks {
		t.Fatalf("unexpected decode: event=%+v finished=%+v", got, finished)
	}
	risks, ok := got.Data.(*domain.RiskReport)
	if !ok || risks.Items[0].Severity != domain.SeverityHigh {
		t.Fatalf("unexpected payload %#v", got.Data)
	}
}

func TestFinishedMessageDecodes(t *testing.T) {
	q := &Queue{eventPrefix: "custom.prefix"}

	msg, err := q.eventMessage("run-2", eventTypeFinished, domain.NewRunFinished("run-2", domain.RunOutcomeFailed,
		domain.WrapError(domain.ErrRequiresUserAction, "prepare translation", errors.New("pack missing"))))
	if err != nil {
		t.Fatalf("eventMessage() error = %v", err)
	}
	_, finished, err := decodeEventMessage(msg)
	if err != nil {
		t.Fatalf("decodeEventMessage() error = %v", err)
	}
	if finished == nil || finished.Outcome != domain.RunOutcomeFailed {
		t.Fatalf("unexpected finished %+v", finished)
	}
	if finished.ErrorKind != domain.KindRequiresUserAction || !finished.Retryable {
		t.Fatalf("error kind lost in transit: %+v", finished)
	}
}

func TestEventMessageRequiresRunID(t *testing.T) {
	q := &Queue{eventPrefix: DefaultEventSubjectPrefix}
	if _, err := q.eventMessage(" ", eventTypeSection, domain.SectionEvent{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	if err := wrapTemporaryIfNeeded(nats.ErrTimeout); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("timeout should be temporary, got %v", err)
	}
	plain := errors.New("bad subject")
	if err := wrapTemporaryIfNeeded(plain); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("permanent error should not be temporary")
	}
	if class := classifyNATSError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("cancellation should be neither retried nor recorded: %+v", class)
	}
	if class := classifyNATSError(nats.ErrMaxPayload); class.Retryable || class.RecordFailure {
		t.Fatalf("oversized payload should not trip the breaker: %+v", class)
	}
}

func TestRequestAnalysisRequiresRunID(t *testing.T) {
	q := &Queue{eventPrefix: DefaultEventSubjectPrefix}
	_, err := q.RequestAnalysis(context.Background(), domain.AnalysisRequest{ContractID: "c1"}, func(domain.SectionEvent) {})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
