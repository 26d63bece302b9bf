package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

type Contract struct {
	ID       string `json:"id"`
	Filename string `json:"filename,omitempty"`
	Text     string `json:"-"`
}

// Identity returns the contract ID, deriving it from the text when unset.
func (c Contract) Identity() string {
	if id := strings.TrimSpace(c.ID); id != "" {
		return id
	}
	return ContractIDFromText(c.Text)
}

func ContractIDFromText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

type PartyPair struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

// AnalysisContext is built once per run and passed by value.
type AnalysisContext struct {
	ContractLanguage  string     `json:"contract_language"`
	PreferredLanguage string     `json:"preferred_language"`
	OutputLanguage    string     `json:"output_language"`
	UserRole          string     `json:"user_role,omitempty"`
	Parties           *PartyPair `json:"parties,omitempty"`
}

// DesiredOutput resolves the language the user should read results in.
func (c AnalysisContext) DesiredOutput() string {
	for _, candidate := range []string{c.OutputLanguage, c.PreferredLanguage, c.ContractLanguage} {
		if lang := NormalizeLanguage(candidate); lang != "" {
			return lang
		}
	}
	return ""
}

func (c AnalysisContext) WithContractLanguage(lang string) AnalysisContext {
	out := c
	out.ContractLanguage = NormalizeLanguage(lang)
	if c.Parties != nil {
		parties := *c.Parties
		out.Parties = &parties
	}
	return out
}
