package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/llm/prompts"
)

// Translator translates with a dedicated local model. Pulling that model is
// the language-pack download of the on-device setup.
type Translator struct {
	client *Client
	model  string

	mu        sync.Mutex
	installed bool
}

func NewTranslator(client *Client, model string) *Translator {
	return &Translator{client: client, model: model}
}

func (t *Translator) Availability(ctx context.Context, source, target string) (domain.Availability, error) {
	if !knownPair(source, target) {
		return domain.AvailabilityUnavailable, nil
	}
	if t.isInstalled() {
		return domain.AvailabilityAvailable, nil
	}
	installed, err := t.client.hasModel(ctx, t.model)
	if err != nil {
		return "", err
	}
	if !installed {
		return domain.AvailabilityDownloadable, nil
	}
	t.markInstalled()
	return domain.AvailabilityAvailable, nil
}

func (t *Translator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if !knownPair(source, target) {
		return "", domain.WrapError(domain.ErrTranslationUnavailable, "ollama translate",
			fmt.Errorf("unknown language pair %s->%s", source, target))
	}
	if err := t.ensureModel(ctx); err != nil {
		return "", err
	}
	return t.client.generate(ctx, generateRequest{
		Model:  t.model,
		Prompt: prompts.Translate(text, source, target),
	})
}

func (t *Translator) ensureModel(ctx context.Context) error {
	if t.isInstalled() {
		return nil
	}
	installed, err := t.client.hasModel(ctx, t.model)
	if err != nil {
		return err
	}
	if !installed {
		slog.Info("translation_model_pull", "model", t.model)
		if err := t.client.pull(ctx, t.model); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return domain.WrapError(domain.ErrRequiresUserAction, "ollama pull "+t.model, err)
			}
			return err
		}
	}
	t.markInstalled()
	return nil
}

func (t *Translator) isInstalled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.installed
}

func (t *Translator) markInstalled() {
	t.mu.Lock()
	t.installed = true
	t.mu.Unlock()
}

func knownPair(source, target string) bool {
	_, okSource := prompts.LanguageName(source)
	_, okTarget := prompts.LanguageName(target)
	return okSource && okTarget
}
