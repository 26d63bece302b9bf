package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
)

type fakeGenerator struct {
	languages []string
	session   *fakeSession
	createErr error
}

func (g *fakeGenerator) SupportedLanguages() []string {
	return g.languages
}

func (g *fakeGenerator) CreateSession(_ context.Context, actx domain.AnalysisContext) (ports.GenerationSession, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.session.mu.Lock()
	g.session.actx = actx
	g.session.mu.Unlock()
	return g.session, nil
}

type fakeSession struct {
	mu        sync.Mutex
	failures  map[domain.SectionName]int
	calls     map[domain.SectionName]int
	block     map[domain.SectionName]chan struct{}
	documents []string
	outputs   []string
	actx      domain.AnalysisContext
	quickTake  string
	quickErr   error
	quickBlock chan struct{}
	closed     bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		failures:  make(map[domain.SectionName]int),
		calls:     make(map[domain.SectionName]int),
		block:     make(map[domain.SectionName]chan struct{}),
		quickTake: "Standard services deal.",
	}
}

// failAlways makes every attempt of the section fail.
func (s *fakeSession) failAlways(section domain.SectionName) {
	s.failures[section] = -1
}

func (s *fakeSession) Extract(ctx context.Context, req ports.ExtractionRequest) (domain.SectionData, error) {
	s.mu.Lock()
	s.calls[req.Section]++
	n := s.calls[req.Section]
	fail := s.failures[req.Section]
	block := s.block[req.Section]
	s.documents = append(s.documents, req.Document)
	s.outputs = append(s.outputs, req.OutputLanguage)
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail < 0 || n <= fail {
		return nil, domain.WrapError(domain.ErrTemporary, "fake extract", errors.New("provider unavailable"))
	}
	return samplePayload(req.Section), nil
}

func (s *fakeSession) QuickTake(ctx context.Context, _, _ string) (string, error) {
	if s.quickBlock != nil {
		select {
		case <-s.quickBlock:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.quickTake, s.quickErr
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) callCount(section domain.SectionName) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[section]
}

func samplePayload(section domain.SectionName) domain.SectionData {
	switch section {
	case domain.SectionMetadata:
		return &domain.Metadata{
			Title:        "Service Agreement",
			ContractType: "services",
			Parties:      []domain.Party{{Name: "Acme", Role: "provider"}, {Name: "Globex", Role: "client"}},
		}
	case domain.SectionSummary:
		return &domain.Summary{Overview: "Acme provides support to Globex.", KeyPoints: []string{"Monthly fee"}}
	case domain.SectionRisks:
		return &domain.RiskReport{Items: []domain.Risk{{Title: "Uncapped liability", Severity: domain.SeverityHigh, Description: "No cap on damages."}}}
	case domain.SectionObligations:
		return &domain.ObligationReport{Items: []domain.Obligation{{Party: "Acme", Description: "Deliver monthly reports"}}}
	case domain.SectionOmissions:
		return &domain.OmissionReport{
			Omissions: []domain.Omission{{Topic: "Termination", Description: "No exit clause.", Importance: domain.SeverityMedium}},
			Questions: []domain.Question{{Question: "Who owns the deliverables?"}},
		}
	default:
		return nil
	}
}

// fakeTranslator prefixes text with the target language.
type fakeTranslator struct {
	mu           sync.Mutex
	calls        []string
	availability map[string]domain.Availability
	probeErr     error
	probes       int
	failWhen     func(text, source, target string) bool
	delay        time.Duration
}

func (f *fakeTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, source+"->"+target)
	failWhen, delay := f.failWhen, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if failWhen != nil && failWhen(text, source, target) {
		return "", errors.New("translation backend error")
	}
	return "[" + target + "] " + text, nil
}

func (f *fakeTranslator) Availability(_ context.Context, source, target string) (domain.Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	if f.probeErr != nil {
		return "", f.probeErr
	}
	if a, ok := f.availability[source+"->"+target]; ok {
		return a, nil
	}
	return domain.AvailabilityAvailable, nil
}

func (f *fakeTranslator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeDetector struct {
	lang string
	err  error
}

func (d fakeDetector) Detect(context.Context, string) (string, error) {
	return d.lang, d.err
}

// eventLog records cache writes and consumer receipts in one order.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(entry string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

func (l *eventLog) index(entry string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e == entry {
			return i
		}
	}
	return -1
}

type fakeCacheStore struct {
	mu      sync.Mutex
	entries map[string]map[string]*domain.CachedAnalysis
	puts    int
	putErr  error
	log     *eventLog
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{entries: make(map[string]map[string]*domain.CachedAnalysis)}
}

func (s *fakeCacheStore) PutSection(_ context.Context, contractID, language string, data domain.SectionData) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entryLocked(contractID, language)
	entry.Patch(data)
	s.log.add(fmt.Sprintf("cache %s %s", language, data.Section()))
	return nil
}

func (s *fakeCacheStore) Put(_ context.Context, contractID, language string, analysis domain.CachedAnalysis) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.entries[contractID] == nil {
		s.entries[contractID] = make(map[string]*domain.CachedAnalysis)
	}
	s.entries[contractID][language] = analysis.Clone()
	return nil
}

func (s *fakeCacheStore) Get(_ context.Context, contractID, language string) (*domain.CachedAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[contractID][language]
	if !ok {
		return nil, domain.WrapError(domain.ErrCacheMiss, "get", errors.New("absent"))
	}
	return entry.Clone(), nil
}

func (s *fakeCacheStore) Languages(_ context.Context, contractID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries[contractID]))
	for lang := range s.entries[contractID] {
		out = append(out, lang)
	}
	return out, nil
}

func (s *fakeCacheStore) entryLocked(contractID, language string) *domain.CachedAnalysis {
	if s.entries[contractID] == nil {
		s.entries[contractID] = make(map[string]*domain.CachedAnalysis)
	}
	entry, ok := s.entries[contractID][language]
	if !ok {
		entry = &domain.CachedAnalysis{}
		s.entries[contractID][language] = entry
	}
	return entry
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []domain.RunOutcome
	sections map[string]int
	retries  map[domain.SectionName]int
	cache    map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		sections: make(map[string]int),
		retries:  make(map[domain.SectionName]int),
		cache:    make(map[string]int),
	}
}

func (o *recordingObserver) RunFinished(outcome domain.RunOutcome, _ time.Duration) {
	o.mu.Lock()
	o.outcomes = append(o.outcomes, outcome)
	o.mu.Unlock()
}

func (o *recordingObserver) SectionFinished(section domain.SectionName, outcome string) {
	o.mu.Lock()
	o.sections[string(section)+":"+outcome]++
	o.mu.Unlock()
}

func (o *recordingObserver) SectionRetried(section domain.SectionName) {
	o.mu.Lock()
	o.retries[section]++
	o.mu.Unlock()
}

func (o *recordingObserver) CacheOperation(op, result string) {
	o.mu.Lock()
	o.cache[op+":"+result]++
	o.mu.Unlock()
}

type analyzeFixture struct {
	uc         *AnalyzeStreamingUseCase
	session    *fakeSession
	translator *fakeTranslator
	store      *fakeCacheStore
	observer   *recordingObserver
	log        *eventLog

	sleepMu sync.Mutex
	sleeps  []time.Duration
}

func newAnalyzeFixture(t *testing.T) *analyzeFixture {
	t.Helper()
	log := &eventLog{}
	f := &analyzeFixture{
		session:    newFakeSession(),
		translator: &fakeTranslator{},
		store:      newFakeCacheStore(),
		observer:   newRecordingObserver(),
		log:        log,
	}
	f.store.log = log
	f.uc = f.build([]string{"en", "es", "ja"}, "en")
	return f
}

func (f *analyzeFixture) build(languages []string, bridge string) *AnalyzeStreamingUseCase {
	generator := &fakeGenerator{languages: languages, session: f.session}
	gate := NewTranslationGate(f.translator, time.Second)
	uc := NewAnalyzeStreamingUseCase(generator, gate, fakeDetector{lang: "en"}, f.store, f.observer, AnalyzeStreamingConfig{
		Retry:           DefaultRetryPolicy(),
		ProviderTimeout: time.Second,
		BridgeLanguage:  bridge,
	})
	uc.retrier.sleep = func(ctx context.Context, d time.Duration) error {
		f.sleepMu.Lock()
		f.sleeps = append(f.sleeps, d)
		f.sleepMu.Unlock()
		return ctx.Err()
	}
	return uc
}

func (f *analyzeFixture) recordedSleeps() []time.Duration {
	f.sleepMu.Lock()
	defer f.sleepMu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

const sampleContractText = "This Service Agreement is made between Acme and Globex."

func sampleContract() domain.Contract {
	return domain.Contract{Text: sampleContractText}
}

// drain collects every event until the stream closes.
func drain(t *testing.T, stream ports.AnalysisStream, log *eventLog) []domain.SectionEvent {
	t.Helper()
	var events []domain.SectionEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				return events
			}
			if ev.Terminal() {
				log.add(fmt.Sprintf("emit %s", ev.Section))
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("stream did not finish, got %d events", len(events))
		}
	}
}

func terminalFor(events []domain.SectionEvent, section domain.SectionName) (domain.SectionEvent, bool) {
	for _, ev := range events {
		if ev.Section == section && ev.Terminal() {
			return ev, true
		}
	}
	return domain.SectionEvent{}, false
}

func retryEvents(events []domain.SectionEvent, section domain.SectionName) []domain.SectionEvent {
	var out []domain.SectionEvent
	for _, ev := range events {
		if ev.Section == section && ev.IsRetrying {
			out = append(out, ev)
		}
	}
	return out
}

func hasPrefix(s, prefix string) bool {
	return strings.HasPrefix(s, prefix)
}
