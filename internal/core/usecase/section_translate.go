package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

// translateSection returns a translated copy of data; the input is not modified.
func translateSection(ctx context.Context, gate *TranslationGate, data domain.SectionData, source, target string) (domain.SectionData, error) {
	out := data.CloneData()
	if domain.NormalizeLanguage(source) == domain.NormalizeLanguage(target) {
		return out, nil
	}

	seen := make(map[string]string)
	for _, field := range out.TranslatableFields() {
		text := *field
		if strings.TrimSpace(text) == "" {
			continue
		}
		if translated, ok := seen[text]; ok {
			*field = translated
			continue
		}
		translated, err := gate.Translate(ctx, text, source, target)
		if err != nil {
			return nil, fmt.Errorf("translate %s to %s: %w", data.Section(), target, err)
		}
		seen[text] = translated
		*field = translated
	}
	return out, nil
}
