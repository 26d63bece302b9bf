package langdetect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

const (
	minSampleRunes = 20
	maxSampleRunes = 4000
	minConfidence  = 0.25
)

// Detector identifies the language of contract text with lingua.
type Detector struct {
	detector lingua.LanguageDetector
}

func New() *Detector {
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			WithLowAccuracyMode().
			Build(),
	}
}

func (d *Detector) Detect(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sample := sampleOf(text)
	if utf8.RuneCountInString(sample) < minSampleRunes {
		return "", domain.WrapError(domain.ErrDetectionFailed, "detect language", errors.New("text too short"))
	}

	lang, ok := d.detector.DetectLanguageOf(sample)
	if !ok {
		return "", domain.WrapError(domain.ErrDetectionFailed, "detect language", errors.New("no reliable language"))
	}
	if confidence := d.detector.ComputeLanguageConfidence(sample, lang); confidence < minConfidence {
		return "", domain.WrapError(domain.ErrDetectionFailed, "detect language",
			fmt.Errorf("%s confidence %.2f below %.2f", lang, confidence, minConfidence))
	}
	return strings.ToLower(lang.IsoCode639_1().String()), nil
}

func sampleOf(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > maxSampleRunes {
		runes = runes[:maxSampleRunes]
	}
	return string(runes)
}
