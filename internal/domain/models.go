package domain

import (
	"fmt"
	"strings"
)

// ChunkTypeContent is the only chunk type produced by the chunker.
const ChunkTypeContent = "content"

// NotAvailable is the sentinel final answer when no value can be given.
const NotAvailable = "N/A"

// Kind is the expected shape of a question's final answer.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindNames   Kind = "names"
)

// ParseKind maps a user supplied kind name onto a Kind.
// An empty string defaults to KindString.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindString:
		return KindString, nil
	case KindNumber:
		return KindNumber, nil
	case KindBoolean:
		return KindBoolean, nil
	case KindNames:
		return KindNames, nil
	default:
		return "", fmt.Errorf("unknown question kind %q", s)
	}
}

// MetaInfo identifies a source document.
type MetaInfo struct {
	SHA1        string
	CompanyName string
	FileName    string
}

// Page is one extracted page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Chunk is a bounded text segment taken from a single page.
type Chunk struct {
	ID           int
	Type         string
	Page         int
	Text         string
	LengthTokens int
	TableID      *int
}

// Document is an extracted report together with its chunks.
type Document struct {
	Meta   MetaInfo
	Pages  []Page
	Chunks []Chunk
}

// Metadata is the fixed schema stored next to every vector.
type Metadata struct {
	ChunkID     int    `json:"chunk_id"`
	Page        int    `json:"page"`
	CompanyName string `json:"company_name"`
	SHA1        string `json:"sha1"`
	Type        string `json:"type"`
}

// Segment is the text half of an embedding record.
type Segment struct {
	Text     string
	Metadata Metadata
}

// SegmentsFor builds the stored segments for a chunked document.
func SegmentsFor(doc *Document) []Segment {
	segments := make([]Segment, 0, len(doc.Chunks))
	for _, c := range doc.Chunks {
		segments = append(segments, Segment{
			Text: c.Text,
			Metadata: Metadata{
				ChunkID:     c.ID,
				Page:        c.Page,
				CompanyName: doc.Meta.CompanyName,
				SHA1:        doc.Meta.SHA1,
				Type:        c.Type,
			},
		})
	}
	return segments
}

// RetrievalResult is one retrieved passage.
type RetrievalResult struct {
	Score       float64  `json:"score"`
	Page        int      `json:"page"`
	Text        string   `json:"text"`
	RerankScore *float64 `json:"rerank_score,omitempty"`
	SHA1        string   `json:"sha1,omitempty"`
	CompanyName string   `json:"company_name,omitempty"`
}

// Role is the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Reference points at a cited page of a source document. PageIndex is 0-based.
type Reference struct {
	PDFSHA1   string `json:"pdf_sha1"`
	PageIndex int    `json:"page_index"`
}

// Answer is the structured reply to a question.
//
// FinalAnswer holds a float64 for number questions, a bool for boolean
// questions, a []string for names questions and a string otherwise. It is
// NotAvailable whenever no typed value could be produced.
type Answer struct {
	StepByStepAnalysis string      `json:"step_by_step_analysis"`
	ReasoningSummary   string      `json:"reasoning_summary"`
	RelevantPages      []int       `json:"relevant_pages"`
	FinalAnswer        any         `json:"final_answer"`
	References         []Reference `json:"references"`
}

// Unavailable returns an N/A answer carrying the given analysis and summary.
func Unavailable(analysis, summary string) Answer {
	return Answer{
		StepByStepAnalysis: analysis,
		ReasoningSummary:   summary,
		RelevantPages:      []int{},
		FinalAnswer:        NotAvailable,
		References:         []Reference{},
	}
}

// Question is a user question. CompanyName is filled in once extracted.
type Question struct {
	Text        string `json:"text"`
	Kind        Kind   `json:"kind"`
	CompanyName string `json:"company_name,omitempty"`
}
