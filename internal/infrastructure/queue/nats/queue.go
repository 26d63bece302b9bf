package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/resilience"
)

const (
	DefaultRequestSubject     = "contracts.analyze"
	DefaultEventSubjectPrefix = "contracts.analysis"

	headerEventType   = "Event-Type"
	eventTypeSection  = "section"
	eventTypeFinished = "finished"
)

// Queue carries analysis requests to workers and fans streamed section
// events out on a per-run subject.
type Queue struct {
	conn           *nats.Conn
	requestSubject string
	eventPrefix    string
	executor       *resilience.Executor
}

type Options struct {
	RequestSubject       string
	EventSubjectPrefix   string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url string) (*Queue, error) {
	return NewWithOptions(url, Options{})
}

func NewWithOptions(url string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("contract-analyzer"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		requestSubject: firstNonEmpty(options.RequestSubject, DefaultRequestSubject),
		eventPrefix:    strings.TrimSuffix(firstNonEmpty(options.EventSubjectPrefix, DefaultEventSubjectPrefix), "."),
		executor:       options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishAnalysisRequested(ctx context.Context, req domain.AnalysisRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode analysis request: %w", err)
	}
	return q.publish(ctx, "nats.publish_request", &nats.Msg{Subject: q.requestSubject, Data: payload})
}

func (q *Queue) SubscribeAnalysisRequested(ctx context.Context, handler func(context.Context, domain.AnalysisRequest) error) error {
	sub, err := q.conn.QueueSubscribe(q.requestSubject, "workers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var req domain.AnalysisRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			slog.Error("analysis_request_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, req); err != nil {
			slog.Error("analysis_request_failed", "run_id", req.RunID, "contract_id", req.ContractID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) PublishSectionEvent(ctx context.Context, runID string, event domain.SectionEvent) error {
	msg, err := q.eventMessage(runID, eventTypeSection, event)
	if err != nil {
		return err
	}
	return q.publish(ctx, "nats.publish_event", msg)
}

func (q *Queue) PublishRunFinished(ctx context.Context, finished domain.RunFinished) error {
	msg, err := q.eventMessage(finished.RunID, eventTypeFinished, finished)
	if err != nil {
		return err
	}
	return q.publish(ctx, "nats.publish_event", msg)
}

// SubscribeRun delivers the events of one run until its finished message
// arrives or ctx is done.
func (q *Queue) SubscribeRun(
	ctx context.Context,
	runID string,
	onEvent func(domain.SectionEvent),
) (domain.RunFinished, error) {
	return q.watchRun(ctx, runID, nil, onEvent)
}

// RequestAnalysis publishes req once its event subject is subscribed and
// then follows the run like SubscribeRun.
func (q *Queue) RequestAnalysis(
	ctx context.Context,
	req domain.AnalysisRequest,
	onEvent func(domain.SectionEvent),
) (domain.RunFinished, error) {
	if req.RunID == "" {
		return domain.RunFinished{}, domain.WrapError(domain.ErrInvalidInput, "nats.request_analysis", errors.New("run id is required"))
	}
	return q.watchRun(ctx, req.RunID, func() error {
		return q.PublishAnalysisRequested(ctx, req)
	}, onEvent)
}

func (q *Queue) watchRun(
	ctx context.Context,
	runID string,
	subscribed func() error,
	onEvent func(domain.SectionEvent),
) (domain.RunFinished, error) {
	msgs := make(chan *nats.Msg, 64)
	sub, err := q.conn.ChanSubscribe(q.EventSubject(runID), msgs)
	if err != nil {
		return domain.RunFinished{}, fmt.Errorf("nats subscribe run: %w", err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()
	if err := q.conn.Flush(); err != nil {
		return domain.RunFinished{}, fmt.Errorf("nats flush: %w", err)
	}
	if subscribed != nil {
		if err := subscribed(); err != nil {
			return domain.RunFinished{}, err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return domain.RunFinished{}, ctx.Err()
		case msg := <-msgs:
			event, finished, err := decodeEventMessage(msg)
			if err != nil {
				slog.Warn("run_event_decode_failed", "run_id", runID, "error", err)
				continue
			}
			if finished != nil {
				return *finished, nil
			}
			onEvent(*event)
		}
	}
}

func (q *Queue) EventSubject(runID string) string {
	return q.eventPrefix + "." + runID
}

func (q *Queue) eventMessage(runID, eventType string, payload any) (*nats.Msg, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "publish run event", errors.New("run id is required"))
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", eventType, err)
	}
	msg := nats.NewMsg(q.EventSubject(runID))
	msg.Header.Set(headerEventType, eventType)
	msg.Data = data
	return msg, nil
}

func decodeEventMessage(msg *nats.Msg) (*domain.SectionEvent, *domain.RunFinished, error) {
	switch msg.Header.Get(headerEventType) {
	case eventTypeFinished:
		var finished domain.RunFinished
		if err := json.Unmarshal(msg.Data, &finished); err != nil {
			return nil, nil, fmt.Errorf("decode run finished: %w", err)
		}
		return nil, &finished, nil
	case eventTypeSection:
		var event domain.SectionEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return nil, nil, fmt.Errorf("decode section event: %w", err)
		}
		return &event, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown event type %q", msg.Header.Get(headerEventType))
	}
}

func (q *Queue) publish(ctx context.Context, operation string, msg *nats.Msg) error {
	call := func(_ context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if err := q.executor.Execute(ctx, operation, call, classifyNATSError); err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
