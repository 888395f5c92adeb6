package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/report-qa/cli/internal/domain"
)

func TestParseAnswerStripsFencesAndProse(t *testing.T) {
	response := "Sure, here it is:\n```json\n{\"step_by_step_analysis\": \"steps\", \"reasoning_summary\": \"sum\", \"relevant_pages\": [12], \"final_answer\": 1234500}\n```\nHope this helps."

	answer, err := ParseAnswer(response, domain.KindNumber)
	require.NoError(t, err)
	assert.Equal(t, "steps", answer.StepByStepAnalysis)
	assert.Equal(t, "sum", answer.ReasoningSummary)
	assert.Equal(t, []int{12}, answer.RelevantPages)
	assert.Equal(t, 1234500.0, answer.FinalAnswer)
}

func TestParseAnswerCoercion(t *testing.T) {
	tests := []struct {
		name  string
		kind  domain.Kind
		final string
		want  any
	}{
		{"number", domain.KindNumber, `58.3`, 58.3},
		{"number negative", domain.KindNumber, `-2124837`, -2124837.0},
		{"number as text", domain.KindNumber, `"58.3"`, domain.NotAvailable},
		{"number N/A", domain.KindNumber, `"N/A"`, domain.NotAvailable},
		{"boolean", domain.KindBoolean, `true`, true},
		{"boolean string", domain.KindBoolean, `"true"`, true},
		{"boolean other", domain.KindBoolean, `"maybe"`, false},
		{"names", domain.KindNames, `["Alice Smith", "Bob Lee"]`, []string{"Alice Smith", "Bob Lee"}},
		{"names not a list", domain.KindNames, `"Alice"`, []string{}},
		{"names N/A", domain.KindNames, `"N/A"`, domain.NotAvailable},
		{"string", domain.KindString, `"Shanghai"`, "Shanghai"},
		{"string number", domain.KindString, `42`, "42"},
		{"null", domain.KindString, `null`, domain.NotAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := `{"step_by_step_analysis": "a", "reasoning_summary": "b", "relevant_pages": [], "final_answer": ` + tt.final + `}`
			answer, err := ParseAnswer(response, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, answer.FinalAnswer)
		})
	}
}

func TestParseAnswerMissingFinalAnswerIsNotAvailable(t *testing.T) {
	answer, err := ParseAnswer(`{"step_by_step_analysis": "a", "reasoning_summary": "b"}`, domain.KindNumber)
	require.NoError(t, err)
	assert.Equal(t, domain.NotAvailable, answer.FinalAnswer)
	assert.Empty(t, answer.RelevantPages)
}

func TestParseAnswerPagesAsStrings(t *testing.T) {
	answer, err := ParseAnswer(`{"step_by_step_analysis": "a", "reasoning_summary": "b", "relevant_pages": ["4", 5]}`, domain.KindString)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, answer.RelevantPages)
}

func TestParseAnswerErrors(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", "I cannot answer that."},
		{"truncated", `{"step_by_step_analysis": "a"`},
		{"missing analysis", `{"reasoning_summary": "b"}`},
		{"missing summary", `{"step_by_step_analysis": "a"}`},
		{"bad pages", `{"step_by_step_analysis": "a", "reasoning_summary": "b", "relevant_pages": ["x"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAnswer(tt.response, domain.KindString)
			assert.ErrorIs(t, err, domain.ErrParse)
		})
	}
}

func TestValidateCitations(t *testing.T) {
	results := []domain.RetrievalResult{
		{Page: 5}, {Page: 3}, {Page: 5}, {Page: 9}, {Page: 1}, {Page: 2},
		{Page: 4}, {Page: 6}, {Page: 7}, {Page: 8}, {Page: 10},
	}

	tests := []struct {
		name    string
		claimed []int
		want    []int
	}{
		{"fallback to first two distinct", nil, []int{5, 3}},
		{"drops unretrieved", []int{9, 42, 3}, []int{9, 3}},
		{"dedupes in claimed order", []int{3, 5, 3, 5}, []int{3, 5}},
		{"caps at eight", []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, []int{1, 2, 3, 4, 5, 6, 7, 8}},
		{"nothing valid", []int{42}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateCitations(tt.claimed, results))
		})
	}
}

func TestValidateCitationsFallbackWithSinglePage(t *testing.T) {
	got := ValidateCitations(nil, []domain.RetrievalResult{{Page: 4}, {Page: 4}})
	assert.Equal(t, []int{4}, got)
}

func TestBuildReferences(t *testing.T) {
	results := []domain.RetrievalResult{
		{Page: 12, SHA1: "aaa"},
		{Page: 3, SHA1: "bbb"},
		{Page: 12, SHA1: "ccc"},
	}
	refs := buildReferences([]int{12, 3}, results)
	assert.Equal(t, []domain.Reference{
		{PDFSHA1: "aaa", PageIndex: 11},
		{PDFSHA1: "bbb", PageIndex: 2},
	}, refs)
}
