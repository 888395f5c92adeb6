package rag

import (
	"fmt"
	"strings"

	"github.com/report-qa/cli/internal/domain"
)

// NoContext is the context text used when nothing was retrieved.
const NoContext = "No relevant context."

const baseInstruction = `You are a RAG (retrieval-augmented generation) question answering system.
Your task is to answer the given question using only the content of company annual report pages retrieved by the RAG step.

Before giving the final answer, think step by step in detail and pay close attention to the wording of the question.
- Note: the answer may be phrased differently from the question.
- The question may have been generated from a template and may not apply to this company.
`

const numberSchema = `
Your answer must be JSON and follow exactly this schema:
{
  "step_by_step_analysis": "detailed step-by-step reasoning, at least 5 steps and 150 words",
  "reasoning_summary": "short summary of the reasoning, about 50 words",
  "relevant_pages": [list of page numbers],
  "final_answer": a number or "N/A"
}

**Number extraction rules:**
- Percentages: 58.3% -> 58.3
- Negative values in parentheses: (2,124,837) -> -2124837
- Values reported in thousands: 4970.5 (thousands of USD) -> 4970500
- If the currency differs from the one asked for, return 'N/A'
- If the value has to be calculated or derived, return 'N/A'
`

const booleanSchema = `
Your answer must be JSON and follow exactly this schema:
{
  "step_by_step_analysis": "detailed step-by-step reasoning, at least 5 steps and 150 words",
  "reasoning_summary": "short summary of the reasoning, about 50 words",
  "relevant_pages": [list of page numbers],
  "final_answer": true or false
}

**Boolean rules:**
- If the question asks whether something happened and the context covers the topic but it did not happen, return false
- If the context states clearly that it happened, return true
`

const namesSchema = `
Your answer must be JSON and follow exactly this schema:
{
  "step_by_step_analysis": "detailed step-by-step reasoning, at least 5 steps and 150 words",
  "reasoning_summary": "short summary of the reasoning, about 50 words",
  "relevant_pages": [list of page numbers],
  "final_answer": ["name 1", "name 2"] or "N/A"
}

**Name extraction rules:**
- If the question asks about changes in positions, return only position titles without names
- If the question asks for names, return only full names as written in the context
- If the question asks for new products, return only product names
`

const stringSchema = `
Your answer must be JSON and follow exactly this schema:
{
  "step_by_step_analysis": "detailed step-by-step reasoning, at least 5 steps and 150 words",
  "reasoning_summary": "short summary of the reasoning, about 50 words",
  "relevant_pages": [list of page numbers],
  "final_answer": "answer text" or "N/A"
}
`

// BuildSystemPrompt returns the fixed instructions and JSON schema for kind.
func BuildSystemPrompt(kind domain.Kind) string {
	switch kind {
	case domain.KindNumber:
		return baseInstruction + numberSchema
	case domain.KindBoolean:
		return baseInstruction + booleanSchema
	case domain.KindNames:
		return baseInstruction + namesSchema
	default:
		return baseInstruction + stringSchema
	}
}

// FormatRetrievalContext renders retrieved passages as page-labelled,
// triple-quoted blocks separated by ---.
func FormatRetrievalContext(results []domain.RetrievalResult) string {
	if len(results) == 0 {
		return NoContext
	}

	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "Text retrieved from page %d:\n\"\"\"\n%s\n\"\"\"\n\n---\n\n", r.Page, r.Text)
	}
	return strings.TrimSpace(b.String())
}

// BuildUserPrompt places the context and the question into the user turn.
func BuildUserPrompt(context, question string) string {
	return fmt.Sprintf("Here is the context:\n\"\"\"\n%s\n\"\"\"\n\n---\n\nHere is the question:\n\"%s\"\n", context, question)
}
