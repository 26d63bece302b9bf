package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
)

const defaultRemoteRunTimeout = 10 * time.Minute

// RemoteRunUseCase executes queued analysis requests and republishes their
// events under the requester's run id.
type RemoteRunUseCase struct {
	ingestor  ports.ContractIngestor
	runs      *RunCoordinator
	publisher ports.EventPublisher
	timeout   time.Duration
}

func NewRemoteRunUseCase(ingestor ports.ContractIngestor, runs *RunCoordinator, publisher ports.EventPublisher) *RemoteRunUseCase {
	return &RemoteRunUseCase{
		ingestor:  ingestor,
		runs:      runs,
		publisher: publisher,
		timeout:   defaultRemoteRunTimeout,
	}
}

// Handle runs one request to completion. A finished message is always
// published, so remote consumers never wait past the run.
func (uc *RemoteRunUseCase) Handle(ctx context.Context, req domain.AnalysisRequest) (domain.RunOutcome, error) {
	if req.RunID == "" {
		return domain.RunOutcomeFailed, domain.WrapError(domain.ErrInvalidInput, "remote run", fmt.Errorf("run id is required"))
	}

	runCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	outcome, runErr := uc.run(runCtx, req)
	finished := domain.NewRunFinished(req.RunID, outcome, runErr)
	// The run context may already be done; the finished message must still go out.
	publishCtx, cancelPublish := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancelPublish()
	if err := uc.publisher.PublishRunFinished(publishCtx, finished); err != nil {
		return outcome, fmt.Errorf("publish run finished: %w", err)
	}
	return outcome, runErr
}

func (uc *RemoteRunUseCase) run(ctx context.Context, req domain.AnalysisRequest) (domain.RunOutcome, error) {
	contract, err := uc.ingestor.Load(ctx, req.ContractID)
	if err != nil {
		return domain.RunOutcomeFailed, err
	}

	key := req.SessionID
	if key == "" {
		key = "run:" + req.RunID
	}
	run, err := uc.runs.Start(ctx, key, contract, req.Context, func(ev domain.SectionEvent) {
		if err := uc.publisher.PublishSectionEvent(ctx, req.RunID, ev); err != nil {
			slog.Warn("section_event_publish_failed", "run_id", req.RunID, "section", ev.Section, "error", err)
		}
	})
	if err != nil {
		return domain.RunOutcomeFailed, err
	}

	select {
	case <-run.Done():
	case <-ctx.Done():
		run.Cancel()
		<-run.Done()
	}
	if err := run.Err(); err != nil {
		return domain.RunOutcomeFailed, err
	}
	return run.Outcome(), nil
}
