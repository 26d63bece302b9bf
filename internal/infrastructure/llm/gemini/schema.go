package gemini

import (
	"github.com/google/generative-ai-go/genai"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

func str(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: desc}
}

func severity(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: desc, Enum: []string{"high", "medium", "low"}}
}

func array(items *genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: items}
}

func object(required []string, props map[string]*genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
}

// sectionSchemas constrain generation to the JSON shape of each section.
var sectionSchemas = map[domain.SectionName]*genai.Schema{
	domain.SectionMetadata: object([]string{"contract_type", "parties"}, map[string]*genai.Schema{
		"title":         str("Contract title"),
		"contract_type": str("Kind of contract, e.g. lease or services agreement"),
		"parties": array(object([]string{"name"}, map[string]*genai.Schema{
			"name": str("Party name as written"),
			"role": str("Role of the party in the contract"),
		})),
		"effective_date":   str("Effective date as written"),
		"expiration_date":  str("Expiration date as written"),
		"renewal_terms":    str("Renewal terms"),
		"governing_law":    str("Governing law or jurisdiction"),
		"total_value":      str("Total monetary value"),
		"currency":         str("ISO 4217 currency code"),
		"document_purpose": str("Purpose of the document"),
	}),
	domain.SectionSummary: object([]string{"overview", "key_points"}, map[string]*genai.Schema{
		"overview":         str("One paragraph overview"),
		"key_points":       array(str("Key point")),
		"user_perspective": str("What the contract means for the reader"),
	}),
	domain.SectionRisks: object([]string{"items"}, map[string]*genai.Schema{
		"items": array(object([]string{"title", "severity", "description"}, map[string]*genai.Schema{
			"title":       str("Short risk title"),
			"severity":    severity("Risk severity"),
			"description": str("Why this is a risk"),
			"clause":      str("Clause reference"),
			"mitigation":  str("Suggested mitigation"),
		})),
	}),
	domain.SectionObligations: object([]string{"items"}, map[string]*genai.Schema{
		"items": array(object([]string{"party", "description"}, map[string]*genai.Schema{
			"party":       str("Obligated party"),
			"description": str("What must be done"),
			"deadline":    str("Deadline"),
			"recurrence":  str("Recurrence, if any"),
		})),
	}),
	domain.SectionOmissions: object([]string{"omissions", "questions"}, map[string]*genai.Schema{
		"omissions": array(object([]string{"topic", "description"}, map[string]*genai.Schema{
			"topic":       str("Missing topic"),
			"description": str("What is missing and why it matters"),
			"importance":  severity("Importance of the omission"),
		})),
		"questions": array(object([]string{"question"}, map[string]*genai.Schema{
			"question": str("Question to ask the other party"),
			"context":  str("Why to ask it"),
		})),
	}),
}
