package usecase

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

// LanguageBridge decides when a run needs translation around the generator.
type LanguageBridge struct {
	supported map[string]struct{}
	ordered   []string
	bridge    string
}

func NewLanguageBridge(supported []string, bridge string) *LanguageBridge {
	b := &LanguageBridge{
		supported: make(map[string]struct{}, len(supported)),
		bridge:    domain.NormalizeLanguage(bridge),
	}
	if b.bridge == "" {
		b.bridge = domain.DefaultBridgeLanguage
	}
	for _, lang := range supported {
		lang = domain.NormalizeLanguage(lang)
		if lang == "" {
			continue
		}
		if _, ok := b.supported[lang]; ok {
			continue
		}
		b.supported[lang] = struct{}{}
		b.ordered = append(b.ordered, lang)
	}
	sort.Strings(b.ordered)
	return b
}

func (b *LanguageBridge) Supports(lang string) bool {
	_, ok := b.supported[domain.NormalizeLanguage(lang)]
	return ok
}

func (b *LanguageBridge) Supported() []string {
	return append([]string(nil), b.ordered...)
}

func (b *LanguageBridge) BridgeLanguage() string {
	return b.bridge
}

// Validate fails when the bridge language is not natively supported.
func (b *LanguageBridge) Validate() error {
	if len(b.supported) == 0 {
		return domain.WrapError(domain.ErrBridgeMisconfigured, "language bridge", errors.New("generator reports no supported languages"))
	}
	if !b.Supports(b.bridge) {
		return domain.WrapError(domain.ErrBridgeMisconfigured, "language bridge",
			fmt.Errorf("bridge language %q is not supported by the generator", b.bridge))
	}
	return nil
}

// Plan derives the language pipeline for a contract and a desired output language.
// An empty output language means "same as the contract".
func (b *LanguageBridge) Plan(contractLanguage, outputLanguage string) (domain.LanguagePlan, error) {
	if err := b.Validate(); err != nil {
		return domain.LanguagePlan{}, err
	}
	source := domain.NormalizeLanguage(contractLanguage)
	if source == "" {
		return domain.LanguagePlan{}, domain.WrapError(domain.ErrBridgeMisconfigured, "language plan", errors.New("contract language is unknown"))
	}
	target := domain.NormalizeLanguage(outputLanguage)
	if target == "" {
		target = source
	}

	plan := domain.LanguagePlan{
		SourceLanguage:      source,
		TargetLanguage:      target,
		BridgeLanguage:      b.bridge,
		AnalysisLanguage:    target,
		NeedsPreTranslation: !b.Supports(source),
	}
	if !b.Supports(target) {
		plan.AnalysisLanguage = b.bridge
		plan.NeedsPostTranslation = true
	}
	return plan, nil
}
