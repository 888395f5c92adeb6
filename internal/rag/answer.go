package rag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/report-qa/cli/internal/domain"
)

const maxCitedPages = 8

// rawAnswer mirrors the JSON schema given to the model.
type rawAnswer struct {
	StepByStepAnalysis json.RawMessage `json:"step_by_step_analysis"`
	ReasoningSummary   json.RawMessage `json:"reasoning_summary"`
	RelevantPages      json.RawMessage `json:"relevant_pages"`
	FinalAnswer        json.RawMessage `json:"final_answer"`
}

// extractJSON strips markdown fences and keeps the outermost {...} span.
func extractJSON(response string) string {
	response = strings.ReplaceAll(response, "```json\n", "")
	response = strings.ReplaceAll(response, "```\n", "")
	response = strings.ReplaceAll(response, "```", "")

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		return response[start : end+1]
	}
	return response
}

// ParseAnswer decodes a model response into an Answer, coercing
// final_answer to kind. Errors wrap domain.ErrParse.
func ParseAnswer(response string, kind domain.Kind) (domain.Answer, error) {
	var raw rawAnswer
	if err := json.Unmarshal([]byte(extractJSON(response)), &raw); err != nil {
		return domain.Answer{}, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	if raw.StepByStepAnalysis == nil {
		return domain.Answer{}, fmt.Errorf("%w: missing step_by_step_analysis", domain.ErrParse)
	}
	if raw.ReasoningSummary == nil {
		return domain.Answer{}, fmt.Errorf("%w: missing reasoning_summary", domain.ErrParse)
	}

	pages, err := parsePages(raw.RelevantPages)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: relevant_pages: %v", domain.ErrParse, err)
	}

	return domain.Answer{
		StepByStepAnalysis: asText(raw.StepByStepAnalysis),
		ReasoningSummary:   asText(raw.ReasoningSummary),
		RelevantPages:      pages,
		FinalAnswer:        coerceFinalAnswer(raw.FinalAnswer, kind),
		References:         []domain.Reference{},
	}, nil
}

func parsePages(raw json.RawMessage) ([]int, error) {
	if isNull(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	pages := make([]int, 0, len(items))
	for _, item := range items {
		var n json.Number
		if err := json.Unmarshal(item, &n); err != nil {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				return nil, fmt.Errorf("not a page number: %s", item)
			}
			n = json.Number(strings.TrimSpace(s))
		}
		f, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("not a page number: %s", item)
		}
		pages = append(pages, int(f))
	}
	return pages, nil
}

// coerceFinalAnswer maps the final_answer node onto the Go type for kind.
// Missing, null and "N/A" values become domain.NotAvailable.
func coerceFinalAnswer(raw json.RawMessage, kind domain.Kind) any {
	if isNull(raw) || asText(raw) == domain.NotAvailable {
		return domain.NotAvailable
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return domain.NotAvailable
	}

	switch kind {
	case domain.KindNumber:
		n, ok := v.(json.Number)
		if !ok {
			return domain.NotAvailable
		}
		f, err := n.Float64()
		if err != nil {
			return domain.NotAvailable
		}
		return f
	case domain.KindBoolean:
		switch b := v.(type) {
		case bool:
			return b
		case string:
			return strings.TrimSpace(b) == "true"
		case json.Number:
			f, err := b.Float64()
			return err == nil && f != 0
		default:
			return false
		}
	case domain.KindNames:
		items, ok := v.([]any)
		if !ok {
			return []string{}
		}
		names := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				names = append(names, s)
			} else {
				b, _ := json.Marshal(item)
				names = append(names, string(b))
			}
		}
		return names
	default:
		return asText(raw)
	}
}

// asText renders a JSON node as text: strings unquoted, scalars verbatim,
// containers and null as "".
func asText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || isNull(trimmed) {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return ""
		}
		return s
	case '{', '[':
		return ""
	default:
		return string(trimmed)
	}
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// ValidateCitations keeps the claimed pages that were actually retrieved,
// deduplicated, in claimed order and capped at eight. When nothing is
// claimed it falls back to the first two distinct retrieved pages.
func ValidateCitations(claimed []int, results []domain.RetrievalResult) []int {
	if len(claimed) == 0 {
		pages := make([]int, 0, 2)
		seen := make(map[int]bool)
		for _, r := range results {
			if len(pages) == 2 {
				break
			}
			if !seen[r.Page] {
				seen[r.Page] = true
				pages = append(pages, r.Page)
			}
		}
		return pages
	}

	retrieved := make(map[int]bool, len(results))
	for _, r := range results {
		retrieved[r.Page] = true
	}

	pages := make([]int, 0, min(len(claimed), maxCitedPages))
	seen := make(map[int]bool)
	for _, p := range claimed {
		if len(pages) == maxCitedPages {
			break
		}
		if retrieved[p] && !seen[p] {
			seen[p] = true
			pages = append(pages, p)
		}
	}
	return pages
}

// buildReferences cites each page against the first passage retrieved from it.
func buildReferences(pages []int, results []domain.RetrievalResult) []domain.Reference {
	refs := make([]domain.Reference, 0, len(pages))
	for _, p := range pages {
		for _, r := range results {
			if r.Page == p {
				refs = append(refs, domain.Reference{PDFSHA1: r.SHA1, PageIndex: p - 1})
				break
			}
		}
	}
	return refs
}
