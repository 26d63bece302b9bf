package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/llm/prompts"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/resilience"
)

const defaultModel = "gemini-2.0-flash"

// Provider is a cloud TextGenerator and Translator backed by Gemini.
type Provider struct {
	client    *genai.Client
	model     string
	languages []string
	executor  *resilience.Executor
}

func New(ctx context.Context, apiKey, model string, languages []string, executor *resilience.Executor) (*Provider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "gemini client", errors.New("GEMINI_API_KEY is empty"))
	}
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Provider{client: client, model: model, languages: languages, executor: executor}, nil
}

func (p *Provider) Close() error {
	return p.client.Close()
}

func (p *Provider) SupportedLanguages() []string {
	return append([]string(nil), p.languages...)
}

func (p *Provider) CreateSession(_ context.Context, actx domain.AnalysisContext) (ports.GenerationSession, error) {
	return &session{provider: p, system: prompts.System(actx)}, nil
}

type session struct {
	provider *Provider
	system   string
}

func (s *session) model(schema *genai.Schema) *genai.GenerativeModel {
	m := s.provider.client.GenerativeModel(s.provider.model)
	m.SetTemperature(0.2)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(s.system)}}
	if schema != nil {
		m.ResponseMIMEType = "application/json"
		m.ResponseSchema = schema
	}
	return m
}

func (s *session) Extract(ctx context.Context, req ports.ExtractionRequest) (domain.SectionData, error) {
	schema, ok := sectionSchemas[req.Section]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "gemini extract", fmt.Errorf("unknown section %q", req.Section))
	}
	raw, err := s.provider.generate(ctx, "gemini.extract", s.model(schema), prompts.Section(req.Section, req.Document, req.OutputLanguage, ""))
	if err != nil {
		return nil, err
	}

	data, err := domain.NewSectionData(req.Section)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), data); err != nil {
		return nil, domain.WrapError(domain.ErrSchemaViolation, "decode "+string(req.Section), err)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *session) QuickTake(ctx context.Context, document, outputLanguage string) (string, error) {
	return s.provider.generate(ctx, "gemini.quick_take", s.model(nil), prompts.QuickTake(document, outputLanguage))
}

func (s *session) Close() error { return nil }

// Availability reports every known language pair as available; the cloud
// model needs no local download.
func (p *Provider) Availability(_ context.Context, source, target string) (domain.Availability, error) {
	_, okSource := prompts.LanguageName(source)
	_, okTarget := prompts.LanguageName(target)
	if !okSource || !okTarget {
		return domain.AvailabilityUnavailable, nil
	}
	return domain.AvailabilityAvailable, nil
}

func (p *Provider) Translate(ctx context.Context, text, source, target string) (string, error) {
	m := p.client.GenerativeModel(p.model)
	m.SetTemperature(0)
	return p.generate(ctx, "gemini.translate", m, prompts.Translate(text, source, target))
}

func (p *Provider) generate(ctx context.Context, operation string, model *genai.GenerativeModel, prompt string) (string, error) {
	resp, err := resilience.Do(ctx, p.executor, operation, func(callCtx context.Context) (*genai.GenerateContentResponse, error) {
		return model.GenerateContent(callCtx, genai.Text(prompt))
	}, classifyGeminiError)
	if err != nil {
		return "", wrapGeminiError(operation, err)
	}

	text := responseText(resp)
	if text == "" {
		return "", domain.WrapError(domain.ErrSchemaViolation, operation, errors.New("empty candidate"))
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

func classifyGeminiError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		retryable := apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.Aborted:
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case codes.InvalidArgument, codes.PermissionDenied, codes.Unauthenticated, codes.NotFound:
		return resilience.ErrorClassification{}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

func wrapGeminiError(operation string, err error) error {
	if code := status.Code(err); code == codes.Unauthenticated || code == codes.PermissionDenied {
		return domain.WrapError(domain.ErrUnauthorized, operation, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
		return domain.WrapError(domain.ErrUnauthorized, operation, err)
	}
	if classifyGeminiError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
