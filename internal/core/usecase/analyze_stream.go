package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
)

type AnalyzeStreamingConfig struct {
	Retry           RetryPolicy
	ProviderTimeout time.Duration
	BridgeLanguage  string
}

// AnalyzeStreamingUseCase runs the section pipeline for one contract:
// metadata first, then the remaining sections concurrently.
type AnalyzeStreamingUseCase struct {
	generator ports.TextGenerator
	gate      *TranslationGate
	detector  ports.LanguageDetector
	cache     cacheWriter
	observer  ports.AnalysisObserver
	bridge    *LanguageBridge
	retrier   *Retrier
	timeout   time.Duration
	now       func() time.Time
}

func NewAnalyzeStreamingUseCase(
	generator ports.TextGenerator,
	gate *TranslationGate,
	detector ports.LanguageDetector,
	store ports.AnalysisCacheStore,
	observer ports.AnalysisObserver,
	cfg AnalyzeStreamingConfig,
) *AnalyzeStreamingUseCase {
	if observer == nil {
		observer = noopObserver{}
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaultProviderTimeout
	}
	if gate == nil {
		gate = NewTranslationGate(nil, cfg.ProviderTimeout)
	}
	return &AnalyzeStreamingUseCase{
		generator: generator,
		gate:      gate,
		detector:  detector,
		cache:     cacheWriter{store: store, observer: observer},
		observer:  observer,
		bridge:    NewLanguageBridge(generator.SupportedLanguages(), cfg.BridgeLanguage),
		retrier:   NewRetrier(cfg.Retry, observer),
		timeout:   cfg.ProviderTimeout,
		now:       time.Now,
	}
}

func (uc *AnalyzeStreamingUseCase) Bridge() *LanguageBridge {
	return uc.bridge
}

func (uc *AnalyzeStreamingUseCase) AnalyzeStreaming(
	ctx context.Context,
	contract domain.Contract,
	actx domain.AnalysisContext,
) (ports.AnalysisStream, error) {
	if strings.TrimSpace(contract.Text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze contract", errors.New("contract text is empty"))
	}
	stream := newStream(ctx, uuid.NewString())
	go uc.run(stream, contract, actx)
	return stream, nil
}

func (uc *AnalyzeStreamingUseCase) run(s *Stream, contract domain.Contract, actx domain.AnalysisContext) {
	ctx := s.ctx
	started := uc.now()
	contractID := contract.Identity()
	logger := slog.With("run_id", s.runID, "contract_id", contractID)
	logger.Info("run_state", "state", string(stateInit))

	fail := func(state runState, err error) {
		outcome := domain.RunOutcomeFailed
		if state == stateCancelled {
			outcome = domain.RunOutcomeCancelled
			err = nil
		}
		if err != nil {
			logger.Error("run_failed", "state", string(s.State()), "error", err)
		}
		logger.Info("run_state", "state", string(state))
		uc.observer.RunFinished(outcome, uc.now().Sub(started))
		s.finish(state, err)
	}
	abort := func(err error) {
		if ctx.Err() != nil {
			fail(stateCancelled, nil)
			return
		}
		fail(stateFailed, err)
	}

	actx, plan, err := uc.planLanguages(ctx, contract.Text, actx, logger)
	if err != nil {
		abort(err)
		return
	}
	s.setPlan(plan)
	logger.Info("language_plan",
		"source", plan.SourceLanguage,
		"target", plan.TargetLanguage,
		"analysis", plan.AnalysisLanguage,
		"pre_translation", plan.NeedsPreTranslation,
		"post_translation", plan.NeedsPostTranslation,
	)

	document := contract.Text
	if plan.NeedsPreTranslation {
		s.transition(statePretranslating)
		logger.Info("run_state", "state", string(statePretranslating))
		document, err = uc.gate.Translate(ctx, contract.Text, plan.SourceLanguage, plan.BridgeLanguage)
		if err != nil {
			abort(fmt.Errorf("pre-translate contract: %w", err))
			return
		}
	}

	session, err := boundedCall(ctx, uc.timeout, "create generation session", func(callCtx context.Context) (ports.GenerationSession, error) {
		return uc.generator.CreateSession(callCtx, actx)
	})
	if err != nil {
		abort(fmt.Errorf("create generation session: %w", err))
		return
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("session_close_failed", "error", err)
		}
	}()

	r := &analysisRun{
		uc:         uc,
		stream:     s,
		session:    session,
		contractID: contractID,
		document:   document,
		actx:       actx,
		plan:       plan,
		logger:     logger,
		results:    &domain.CachedAnalysis{},
	}

	s.transition(stateMetadataPending)
	logger.Info("run_state", "state", string(stateMetadataPending))
	if _, err := r.runSection(ctx, domain.SectionMetadata); err != nil {
		abort(domain.WrapError(domain.ErrMetadataUnavailable, "analyze contract", err))
		return
	}

	if !s.transition(stateStreaming) || ctx.Err() != nil {
		fail(stateCancelled, nil)
		return
	}
	logger.Info("run_state", "state", string(stateStreaming))

	var wg sync.WaitGroup
	for _, section := range domain.StreamedSections {
		wg.Add(1)
		go func(section domain.SectionName) {
			defer wg.Done()
			_, _ = r.runSection(ctx, section)
		}(section)
	}
	wg.Wait()

	if ctx.Err() != nil {
		fail(stateCancelled, nil)
		return
	}

	if plan.NeedsPostTranslation {
		r.storeTranslated(ctx)
	}

	logger.Info("run_state", "state", string(stateDone), "duration_ms", uc.now().Sub(started).Milliseconds())
	uc.observer.RunFinished(domain.RunOutcomeDone, uc.now().Sub(started))
	s.finish(stateDone, nil)
}

// planLanguages fills in a missing contract language by detection, falling
// back to the bridge language when detection fails.
func (uc *AnalyzeStreamingUseCase) planLanguages(
	ctx context.Context,
	text string,
	actx domain.AnalysisContext,
	logger *slog.Logger,
) (domain.AnalysisContext, domain.LanguagePlan, error) {
	if err := uc.bridge.Validate(); err != nil {
		return actx, domain.LanguagePlan{}, err
	}

	detectionFailed := false
	if domain.NormalizeLanguage(actx.ContractLanguage) == "" {
		lang, err := uc.detect(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return actx, domain.LanguagePlan{}, ctx.Err()
			}
			logger.Warn("language_detection_failed", "fallback", uc.bridge.BridgeLanguage(), "error", err)
			lang = uc.bridge.BridgeLanguage()
			detectionFailed = true
		}
		actx = actx.WithContractLanguage(lang)
	}

	plan, err := uc.bridge.Plan(actx.ContractLanguage, actx.DesiredOutput())
	if err != nil {
		return actx, domain.LanguagePlan{}, err
	}
	plan.DetectionFailed = detectionFailed
	return actx, plan, nil
}

func (uc *AnalyzeStreamingUseCase) detect(ctx context.Context, text string) (string, error) {
	if uc.detector == nil {
		return "", domain.WrapError(domain.ErrDetectionFailed, "detect language", errors.New("no detector configured"))
	}
	lang, err := uc.detector.Detect(ctx, text)
	if err != nil {
		return "", err
	}
	if lang = domain.NormalizeLanguage(lang); lang == "" {
		return "", domain.WrapError(domain.ErrDetectionFailed, "detect language", errors.New("empty result"))
	}
	return lang, nil
}
