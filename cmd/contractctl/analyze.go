package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kirillkom/contract-analyzer/internal/bootstrap"
	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

type analyzeOptions struct {
	contractLanguage string
	outputLanguage   string
	role             string
	jsonLines        bool
	remote           bool
}

func (c *cli) analyzeCommand() *cobra.Command {
	opts := analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Upload a contract and stream its section analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return c.analyze(ctx, cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.contractLanguage, "contract-language", "", "language of the contract; detected when empty")
	cmd.Flags().StringVar(&opts.outputLanguage, "lang", "", "language to read the results in")
	cmd.Flags().StringVar(&opts.role, "role", "", "party the reader represents")
	cmd.Flags().BoolVar(&opts.jsonLines, "json", false, "print events as JSON lines")
	cmd.Flags().BoolVar(&opts.remote, "remote", false, "queue the run for a worker over NATS")
	return cmd
}

func (c *cli) analyze(ctx context.Context, out io.Writer, path string, opts analyzeOptions) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := c.app.IngestUC.Upload(ctx, filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), file)
	if err != nil {
		return fmt.Errorf("upload contract: %w", err)
	}
	fmt.Fprintf(out, "contract %s (%s, %d characters)\n", info.ID, firstNonEmpty(info.Language, "language unknown"), info.Characters)

	actx := domain.AnalysisContext{
		ContractLanguage: firstNonEmpty(opts.contractLanguage, info.Language),
		OutputLanguage:   opts.outputLanguage,
		UserRole:         opts.role,
	}
	printer := eventPrinter{out: out, jsonLines: opts.jsonLines}

	if opts.remote {
		return c.analyzeRemote(ctx, info.ID, actx, printer)
	}

	contract, err := c.app.IngestUC.Load(ctx, info.ID)
	if err != nil {
		return err
	}
	stream, err := c.app.AnalyzeUC.AnalyzeStreaming(ctx, contract, actx)
	if err != nil {
		return err
	}
	for ev := range stream.Events() {
		printer.event(ev)
	}
	return printer.finished(domain.NewRunFinished(stream.RunID(), stream.Outcome(), stream.Err()))
}

func (c *cli) analyzeRemote(ctx context.Context, contractID string, actx domain.AnalysisContext, printer eventPrinter) error {
	queue, err := bootstrap.NewQueue(c.cfg, c.app.Executor)
	if err != nil {
		return err
	}
	defer queue.Close()

	finished, err := queue.RequestAnalysis(ctx, domain.AnalysisRequest{
		RunID:       uuid.NewString(),
		ContractID:  contractID,
		Context:     actx,
		RequestedAt: time.Now().UTC(),
	}, printer.event)
	if err != nil {
		return err
	}
	return printer.finished(finished)
}

type eventPrinter struct {
	out       io.Writer
	jsonLines bool
}

func (p eventPrinter) event(ev domain.SectionEvent) {
	if p.jsonLines {
		_ = json.NewEncoder(p.out).Encode(ev)
		return
	}
	switch {
	case ev.IsRetrying:
		fmt.Fprintf(p.out, "[%3d%%] %-11s retrying (attempt %d)\n", ev.Progress, ev.Section, ev.RetryCount)
	case ev.Failed():
		fmt.Fprintf(p.out, "[%3d%%] %-11s failed\n", ev.Progress, ev.Section)
	default:
		fmt.Fprintf(p.out, "[%3d%%] %-11s %s\n", ev.Progress, ev.Section, describe(ev.Data))
	}
}

func (p eventPrinter) finished(finished domain.RunFinished) error {
	if p.jsonLines {
		_ = json.NewEncoder(p.out).Encode(finished)
	} else {
		fmt.Fprintf(p.out, "run %s %s\n", finished.RunID, finished.Outcome)
	}
	if finished.Outcome == domain.RunOutcomeFailed {
		if finished.ErrorKind == domain.KindRequiresUserAction {
			return fmt.Errorf("analysis needs action before it can be retried: %s", finished.Error)
		}
		return fmt.Errorf("analysis failed: %s", firstNonEmpty(finished.Error, "unknown error"))
	}
	return nil
}

func describe(data domain.SectionData) string {
	switch v := data.(type) {
	case *domain.Metadata:
		return fmt.Sprintf("%s, %d parties", firstNonEmpty(v.ContractType, "contract"), len(v.Parties))
	case *domain.Summary:
		return truncate(v.Overview, 80)
	case *domain.RiskReport:
		return fmt.Sprintf("%d risks", len(v.Items))
	case *domain.ObligationReport:
		return fmt.Sprintf("%d obligations", len(v.Items))
	case *domain.OmissionReport:
		return fmt.Sprintf("%d omissions, %d questions", len(v.Omissions), len(v.Questions))
	default:
		return "ok"
	}
}

func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
