// Package mcp exposes contract ingestion, streaming analysis and the interim
// cache as Model Context Protocol tools.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/contract-analyzer/internal/adapters/export"
	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
)

type Tools struct {
	ingestor ports.ContractIngestor
	analyzer ports.ContractAnalyzer
	reader   ports.AnalysisReader
}

func NewTools(ingestor ports.ContractIngestor, analyzer ports.ContractAnalyzer, reader ports.AnalysisReader) *Tools {
	return &Tools{ingestor: ingestor, analyzer: analyzer, reader: reader}
}

func (t *Tools) Server(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"contract-analyzer",
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	s.AddTool(
		mcp.NewTool(
			"ingest_contract",
			mcp.WithDescription("Store contract text and return its content-derived contract id."),
			mcp.WithString("text", mcp.Required(), mcp.Description("Full contract text")),
			mcp.WithString("filename", mcp.Description("Original file name, for reference")),
		),
		t.handleIngest,
	)
	s.AddTool(
		mcp.NewTool(
			"analyze_contract",
			mcp.WithDescription("Run the full section analysis (metadata, summary, risks, obligations, omissions and questions) for an ingested contract."),
			mcp.WithString("contract_id", mcp.Required(), mcp.Description("Contract id returned by ingest_contract")),
			mcp.WithString("output_language", mcp.Description("Language code for the results, e.g. en or ar")),
			mcp.WithString("contract_language", mcp.Description("Language code of the contract; detected when empty")),
			mcp.WithString("user_role", mcp.Description("The party the reader represents")),
		),
		t.handleAnalyze,
	)
	s.AddTool(
		mcp.NewTool(
			"get_cached_analysis",
			mcp.WithDescription("Read a cached analysis, translating it from another cached language when needed."),
			mcp.WithString("contract_id", mcp.Required(), mcp.Description("Contract id")),
			mcp.WithString("language", mcp.Required(), mcp.Description("Language code")),
			mcp.WithString("format", mcp.Description("json (default) or yaml")),
		),
		t.handleCached,
	)
	return s
}

// ServeStdio blocks serving the tools on stdin/stdout.
func (t *Tools) ServeStdio(version string) error {
	slog.Info("mcp_server_starting", "transport", "stdio")
	return server.ServeStdio(t.Server(version))
}

func (t *Tools) handleIngest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filename := request.GetString("filename", "contract.txt")

	info, err := t.ingestor.Upload(ctx, filename, "text/plain", strings.NewReader(text))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ingest failed: %v", err)), nil
	}
	return jsonResult(info)
}

type analyzeResult struct {
	RunID    string                `json:"run_id"`
	Outcome  domain.RunOutcome     `json:"outcome"`
	Plan     domain.LanguagePlan   `json:"plan"`
	Sections []domain.SectionEvent `json:"sections"`
	Failed   []domain.SectionName  `json:"failed_sections,omitempty"`
	Retries  int                   `json:"retries"`

	Error     string           `json:"error,omitempty"`
	ErrorKind domain.ErrorKind `json:"error_kind,omitempty"`
	Retryable bool             `json:"retryable,omitempty"`
}

func (t *Tools) handleAnalyze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contractID, err := request.RequireString("contract_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	contract, err := t.ingestor.Load(ctx, contractID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load contract: %v", err)), nil
	}

	stream, err := t.analyzer.AnalyzeStreaming(ctx, contract, domain.AnalysisContext{
		ContractLanguage: request.GetString("contract_language", ""),
		OutputLanguage:   request.GetString("output_language", ""),
		UserRole:         request.GetString("user_role", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("start analysis: %v", err)), nil
	}

	result := analyzeResult{RunID: stream.RunID()}
	for ev := range stream.Events() {
		if ev.IsRetrying {
			result.Retries++
			continue
		}
		if ev.Failed() {
			result.Failed = append(result.Failed, ev.Section)
		}
		result.Sections = append(result.Sections, ev)
	}
	result.Outcome = stream.Outcome()
	result.Plan = stream.Plan()
	if err := stream.Err(); err != nil {
		finished := domain.NewRunFinished(result.RunID, result.Outcome, err)
		result.Error, result.ErrorKind, result.Retryable = finished.Error, finished.ErrorKind, finished.Retryable
		res, encErr := jsonResult(result)
		if encErr != nil {
			return nil, encErr
		}
		res.IsError = true
		return res, nil
	}
	return jsonResult(result)
}

func (t *Tools) handleCached(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contractID, err := request.RequireString("contract_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	language, err := request.RequireString("language")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	language = domain.NormalizeLanguage(language)

	analysis, err := t.reader.Resolve(ctx, contractID, language)
	if err != nil {
		if domain.IsKind(err, domain.ErrCacheMiss) {
			return mcp.NewToolResultError("no cached analysis for this contract; run analyze_contract first"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("read cached analysis: %v", err)), nil
	}

	if request.GetString("format", "json") == "yaml" {
		var buf bytes.Buffer
		if err := export.WriteYAML(&buf, export.NewReport(contractID, language, analysis)); err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(buf.String()), nil
	}
	return jsonResult(analysis)
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
