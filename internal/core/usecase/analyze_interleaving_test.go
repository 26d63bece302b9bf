package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

func permutations(sections []domain.SectionName) [][]domain.SectionName {
	if len(sections) <= 1 {
		return [][]domain.SectionName{append([]domain.SectionName(nil), sections...)}
	}
	var out [][]domain.SectionName
	for i, head := range sections {
		rest := make([]domain.SectionName, 0, len(sections)-1)
		rest = append(rest, sections[:i]...)
		rest = append(rest, sections[i+1:]...)
		for _, tail := range permutations(rest) {
			out = append(out, append([]domain.SectionName{head}, tail...))
		}
	}
	return out
}

// nextTerminal reads events until a terminal one arrives.
func nextTerminal(t *testing.T, stream interface {
	Events() <-chan domain.SectionEvent
}) domain.SectionEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				t.Fatalf("stream closed before a terminal event")
			}
			if ev.Terminal() {
				return ev
			}
		case <-timeout:
			t.Fatalf("no terminal event delivered")
		}
	}
}

func TestAnalyzeStreamingEveryCompletionOrder(t *testing.T) {
	orders := permutations(domain.StreamedSections)
	if len(orders) != 24 {
		t.Fatalf("expected 24 orders, got %d", len(orders))
	}
	for _, order := range orders {
		t.Run(fmt.Sprint(order), func(t *testing.T) {
			f := newAnalyzeFixture(t)
			release := make(map[domain.SectionName]chan struct{}, len(order))
			for _, section := range domain.StreamedSections {
				release[section] = make(chan struct{})
				f.session.block[section] = release[section]
			}

			stream, err := f.uc.AnalyzeStreaming(context.Background(), sampleContract(), domain.AnalysisContext{ContractLanguage: "en"})
			if err != nil {
				t.Fatalf("AnalyzeStreaming() error = %v", err)
			}

			if ev := nextTerminal(t, stream); ev.Section != domain.SectionMetadata || ev.Data == nil {
				t.Fatalf("expected metadata first, got %+v", ev)
			}
			for _, section := range order {
				close(release[section])
				ev := nextTerminal(t, stream)
				if ev.Section != section {
					t.Fatalf("released %s but got terminal %s", section, ev.Section)
				}
				if ev.Data == nil || ev.Progress != section.Progress() {
					t.Fatalf("unexpected terminal for %s: %+v", section, ev)
				}
			}

			if rest := drain(t, stream, f.log); len(rest) != 0 {
				t.Fatalf("unexpected events after the last section: %+v", rest)
			}
			if err := stream.Err(); err != nil {
				t.Fatalf("Err() = %v", err)
			}
			if got := stream.Outcome(); got != domain.RunOutcomeDone {
				t.Fatalf("expected done, got %q", got)
			}
		})
	}
}

func TestAnalyzeStreamingSummaryWaitsForQuickTake(t *testing.T) {
	f := newAnalyzeFixture(t)
	f.session.quickBlock = make(chan struct{})
	others := make(chan struct{})
	for _, section := range domain.StreamedSections {
		if section != domain.SectionSummary {
			f.session.block[section] = others
		}
	}

	stream, err := f.uc.AnalyzeStreaming(context.Background(), sampleContract(), domain.AnalysisContext{ContractLanguage: "en"})
	if err != nil {
		t.Fatalf("AnalyzeStreaming() error = %v", err)
	}
	if ev := nextTerminal(t, stream); ev.Section != domain.SectionMetadata {
		t.Fatalf("expected metadata first, got %+v", ev)
	}

	deadline := time.Now().Add(5 * time.Second)
	for f.session.callCount(domain.SectionSummary) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("summary extraction never started")
		}
		time.Sleep(time.Millisecond)
	}
	select {
	case ev := <-stream.Events():
		t.Fatalf("no event expected while the quick take is pending, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	close(f.session.quickBlock)
	ev := nextTerminal(t, stream)
	if ev.Section != domain.SectionSummary {
		t.Fatalf("expected summary after the quick take, got %+v", ev)
	}
	summary, ok := ev.Data.(*domain.Summary)
	if !ok || summary.QuickTake == nil || *summary.QuickTake != "Standard services deal." {
		t.Fatalf("expected merged quick take, got %+v", ev.Data)
	}

	close(others)
	rest := drain(t, stream, f.log)
	terminals := 0
	for _, ev := range rest {
		if ev.Terminal() {
			terminals++
		}
	}
	if terminals != 3 || stream.Err() != nil {
		t.Fatalf("terminals=%d err=%v", terminals, stream.Err())
	}
}
