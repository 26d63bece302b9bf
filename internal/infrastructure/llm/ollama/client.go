package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/llm/prompts"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/resilience"
)

// Client talks to a local Ollama server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 180 * time.Second},
		executor:   executor,
	}
}

// Generator is an on-device TextGenerator backed by a single Ollama model.
type Generator struct {
	client    *Client
	model     string
	languages []string
}

func NewGenerator(client *Client, model string, languages []string) *Generator {
	return &Generator{client: client, model: model, languages: languages}
}

func (g *Generator) SupportedLanguages() []string {
	return append([]string(nil), g.languages...)
}

// CreateSession checks that the model is installed; a missing model needs an
// explicit pull and is reported as requiring user action.
func (g *Generator) CreateSession(ctx context.Context, actx domain.AnalysisContext) (ports.GenerationSession, error) {
	installed, err := g.client.hasModel(ctx, g.model)
	if err != nil {
		return nil, err
	}
	if !installed {
		return nil, domain.WrapError(domain.ErrRequiresUserAction, "ollama create session",
			fmt.Errorf("model %s is not installed", g.model))
	}
	return &session{client: g.client, model: g.model, system: prompts.System(actx)}, nil
}

type session struct {
	client *Client
	model  string
	system string
}

func (s *session) Extract(ctx context.Context, req ports.ExtractionRequest) (domain.SectionData, error) {
	shape, ok := prompts.SectionShapes[req.Section]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ollama extract", fmt.Errorf("unknown section %q", req.Section))
	}
	raw, err := s.client.generate(ctx, generateRequest{
		Model:  s.model,
		System: s.system,
		Prompt: prompts.Section(req.Section, req.Document, req.OutputLanguage, shape),
		Format: "json",
	})
	if err != nil {
		return nil, err
	}
	return decodeSection(req.Section, raw)
}

func (s *session) QuickTake(ctx context.Context, document, outputLanguage string) (string, error) {
	return s.client.generate(ctx, generateRequest{
		Model:  s.model,
		System: s.system,
		Prompt: prompts.QuickTake(document, outputLanguage),
	})
}

func (s *session) Close() error { return nil }

// decodeSection validates a model response against the section schema.
func decodeSection(section domain.SectionName, raw string) (domain.SectionData, error) {
	data, err := domain.NewSectionData(section)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), data); err != nil {
		return nil, domain.WrapError(domain.ErrSchemaViolation, "decode "+string(section), err)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Format string `json:"format,omitempty"`
	Stream bool   `json:"stream"`
}

func (c *Client) generate(ctx context.Context, req generateRequest) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	err := c.executor.Execute(ctx, "ollama.generate", func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", req, &response, "generate")
	}, classifyOllamaError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	out := strings.TrimSpace(response.Response)
	if out == "" {
		return "", domain.WrapError(domain.ErrSchemaViolation, "ollama generate", errors.New("empty response"))
	}
	return out, nil
}

func (c *Client) hasModel(ctx context.Context, model string) (bool, error) {
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	err := c.executor.Execute(ctx, "ollama.tags", func(callCtx context.Context) error {
		return c.getJSON(callCtx, "/api/tags", &tags, "tags")
	}, classifyOllamaError)
	if err != nil {
		return false, wrapTemporaryIfNeeded("ollama tags", err)
	}
	for _, m := range tags.Models {
		if m.Name == model || strings.TrimSuffix(m.Name, ":latest") == model {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) pull(ctx context.Context, model string) error {
	var status struct {
		Status string `json:"status"`
	}
	req := map[string]any{"model": model, "stream": false}
	if err := c.postJSON(ctx, "/api/pull", req, &status, "pull"); err != nil {
		return wrapTemporaryIfNeeded("ollama pull", err)
	}
	if status.Status != "success" {
		return fmt.Errorf("ollama pull %s: status %q", model, status.Status)
	}
	return nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
