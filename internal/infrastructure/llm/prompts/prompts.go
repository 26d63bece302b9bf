// Package prompts holds the instructions shared by the language-model providers.
package prompts

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

const maxDocumentRunes = 60000

// LanguageName returns the English name of a language code, or false when the
// code is not a known language.
func LanguageName(code string) (string, bool) {
	tag, err := language.Parse(domain.NormalizeLanguage(code))
	if err != nil {
		return "", false
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return "", false
	}
	name := display.English.Languages().Name(base)
	if name == "" {
		return "", false
	}
	return name, true
}

func languageLabel(code string) string {
	if name, ok := LanguageName(code); ok {
		return name
	}
	return code
}

var sectionInstructions = map[domain.SectionName]string{
	domain.SectionMetadata: `Extract the contract metadata: title, contract type, every party with its role,
effective and expiration dates, renewal terms, governing law, total value with currency,
and the purpose of the document. Leave a field empty when the contract does not state it.`,
	domain.SectionSummary: `Summarize the contract: an overview paragraph, the key points as short bullet
sentences, and what the contract means for the reader given their role.`,
	domain.SectionRisks: `List the clauses that create risk for the reader. For each give a short title,
a severity of high, medium or low, a description, the clause reference if any, and a mitigation.`,
	domain.SectionObligations: `List the obligations the contract places on each party: the party, what it
must do, the deadline and whether it recurs.`,
	domain.SectionOmissions: `List the protections or terms a contract of this type usually contains but this
one omits, with their importance (high, medium or low), and the questions the reader should
ask the other party before signing.`,
}

// SectionShapes describe the expected JSON for providers without native schemas.
var SectionShapes = map[domain.SectionName]string{
	domain.SectionMetadata:    `{"title":"","contract_type":"","parties":[{"name":"","role":""}],"effective_date":"","expiration_date":"","renewal_terms":"","governing_law":"","total_value":"","currency":"","document_purpose":""}`,
	domain.SectionSummary:     `{"overview":"","key_points":[""],"user_perspective":""}`,
	domain.SectionRisks:       `{"items":[{"title":"","severity":"high|medium|low","description":"","clause":"","mitigation":""}]}`,
	domain.SectionObligations: `{"items":[{"party":"","description":"","deadline":"","recurrence":""}]}`,
	domain.SectionOmissions:   `{"omissions":[{"topic":"","description":"","importance":"high|medium|low"}],"questions":[{"question":"","context":""}]}`,
}

// System describes the reader of the analysis.
func System(actx domain.AnalysisContext) string {
	var b strings.Builder
	b.WriteString("You are a careful contract analyst. Be factual and cite only what the contract says.")
	if role := strings.TrimSpace(actx.UserRole); role != "" {
		fmt.Fprintf(&b, " The reader is the %s.", role)
	}
	if p := actx.Parties; p != nil && (p.First != "" || p.Second != "") {
		fmt.Fprintf(&b, " The parties are %q and %q.", p.First, p.Second)
	}
	return b.String()
}

// Section builds the extraction prompt. shape is appended when non-empty.
func Section(section domain.SectionName, document, outputLanguage, shape string) string {
	var b strings.Builder
	b.WriteString(sectionInstructions[section])
	fmt.Fprintf(&b, "\nWrite every free-text value in %s.", languageLabel(outputLanguage))
	if shape != "" {
		b.WriteString("\nReturn one JSON object with exactly this shape and no markdown:\n")
		b.WriteString(shape)
	}
	b.WriteString("\n\nContract:\n")
	b.WriteString(truncate(document))
	return b.String()
}

func QuickTake(document, outputLanguage string) string {
	return fmt.Sprintf(`In one sentence of at most 25 words, written in %s, say what this contract is and
the single most important thing the reader should know. Return only the sentence.

Contract:
%s`, languageLabel(outputLanguage), truncate(document))
}

func Translate(text, source, target string) string {
	return fmt.Sprintf(`Translate the text below from %s to %s. Keep names, numbers, dates and
currency codes unchanged. Return only the translation.

%s`, languageLabel(source), languageLabel(target), text)
}

func truncate(document string) string {
	runes := []rune(document)
	if len(runes) <= maxDocumentRunes {
		return document
	}
	return string(runes[:maxDocumentRunes])
}
