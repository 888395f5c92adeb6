package documents

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/report-qa/cli/internal/domain"
	"github.com/report-qa/cli/internal/log"
)

const (
	DefaultChunkSize    = 300
	DefaultChunkOverlap = 50
	DefaultMaxChunkSize = 500
)

var paragraphBreak = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

// Chunker splits page text into token-bounded chunks. Sizes are in
// EstimateTokens units. It holds no mutable state and is safe for
// concurrent use.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	maxChunkSize int
	logger       *slog.Logger
}

// NewChunker creates a chunker. Non-positive sizes fall back to defaults,
// a negative overlap is treated as zero and maxChunkSize is raised to
// chunkSize when smaller.
func NewChunker(chunkSize, chunkOverlap, maxChunkSize int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if maxChunkSize < chunkSize {
		maxChunkSize = chunkSize
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		maxChunkSize: maxChunkSize,
		logger:       log.NewModuleLogger("documents", "chunker"),
	}
}

// Split returns a copy of doc whose Chunks are rebuilt from its pages.
// Chunk ids run from 0 across the whole document; blank pages produce no
// chunks and consume no ids.
func (c *Chunker) Split(doc *domain.Document) *domain.Document {
	out := &domain.Document{
		Meta:  doc.Meta,
		Pages: doc.Pages,
	}

	var chunks []domain.Chunk
	id := 0
	for _, page := range doc.Pages {
		for _, text := range c.SplitText(page.Text) {
			chunks = append(chunks, domain.Chunk{
				ID:           id,
				Type:         domain.ChunkTypeContent,
				Page:         page.Number,
				Text:         text,
				LengthTokens: EstimateTokens(text),
			})
			id++
		}
	}
	out.Chunks = chunks

	c.logger.Debug("document split",
		"file", doc.Meta.FileName,
		"pages", len(doc.Pages),
		"chunks", len(chunks),
	)
	return out
}

// SplitText splits a single page of text. Blank text yields nil.
func (c *Chunker) SplitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var (
		chunks []string
		cur    []unit
	)
	for _, u := range c.units(text) {
		if len(cur) > 0 && joinedCount(append(cur[:len(cur):len(cur)], u)).estimate() > c.chunkSize {
			chunks = append(chunks, joinUnits(cur))
			cur = c.overlap(cur)
			if len(cur) > 0 && joinedCount(append(cur[:len(cur):len(cur)], u)).estimate() > c.maxChunkSize {
				cur = nil
			}
		}
		cur = append(cur, u)
	}
	if len(cur) > 0 {
		chunks = append(chunks, joinUnits(cur))
	}
	return chunks
}

// SplitMarkdown windows markdown text by lines. Every chunk is attributed to
// page 1 and ids start at 0.
func (c *Chunker) SplitMarkdown(text string, linesPerChunk, overlapLines int) []domain.Chunk {
	if linesPerChunk <= 0 {
		return nil
	}
	step := linesPerChunk - overlapLines
	if step <= 0 {
		step = 1
	}

	lines := strings.Split(text, "\n")
	var chunks []domain.Chunk
	for i := 0; i < len(lines); i += step {
		end := min(i+linesPerChunk, len(lines))
		body := strings.Join(lines[i:end], "\n") + "\n"
		if strings.TrimSpace(body) != "" {
			chunks = append(chunks, domain.Chunk{
				ID:           len(chunks),
				Type:         domain.ChunkTypeContent,
				Page:         1,
				Text:         body,
				LengthTokens: EstimateTokens(body),
			})
		}
		if end == len(lines) {
			break
		}
	}
	return chunks
}

// unit is an indivisible piece of a page: a paragraph, a sentence or a
// hard-split run of characters. sep joins it to the unit before it.
type unit struct {
	text  string
	sep   string
	count tokenCount
}

func (c *Chunker) units(text string) []unit {
	var units []unit
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if EstimateTokens(para) <= c.chunkSize {
			units = append(units, unit{text: para, sep: "\n\n", count: countTokens(para)})
			continue
		}

		sep := "\n\n"
		for _, sentence := range splitSentences(para) {
			if EstimateTokens(sentence) <= c.chunkSize {
				units = append(units, unit{text: sentence, sep: sep, count: countTokens(sentence)})
			} else {
				for i, piece := range c.hardSplit(sentence) {
					s := ""
					if i == 0 {
						s = sep
					}
					units = append(units, unit{text: piece, sep: s, count: countTokens(piece)})
				}
			}
			sep = sentenceJoiner(sentence)
		}
	}
	return units
}

// hardSplit cuts text into the longest rune runs whose estimate stays within
// chunkSize.
func (c *Chunker) hardSplit(text string) []string {
	var (
		pieces []string
		b      strings.Builder
		count  tokenCount
	)
	for _, r := range text {
		next := count
		next.addRune(r)
		if b.Len() > 0 && next.estimate() > c.chunkSize {
			pieces = append(pieces, b.String())
			b.Reset()
			next = tokenCount{}
			next.addRune(r)
		}
		b.WriteRune(r)
		count = next
	}
	if b.Len() > 0 {
		pieces = append(pieces, b.String())
	}
	return pieces
}

// overlap returns the longest proper suffix of cur, in whole units, whose
// joined estimate is within chunkOverlap.
func (c *Chunker) overlap(cur []unit) []unit {
	if c.chunkOverlap == 0 {
		return nil
	}
	start := len(cur)
	for i := len(cur) - 1; i >= 1; i-- {
		if joinedCount(cur[i:]).estimate() > c.chunkOverlap {
			break
		}
		start = i
	}
	if start == len(cur) {
		return nil
	}
	out := make([]unit, len(cur)-start)
	copy(out, cur[start:])
	return out
}

func joinedCount(units []unit) tokenCount {
	var total tokenCount
	for i, u := range units {
		if i > 0 {
			total = total.plus(countTokens(u.sep))
		}
		total = total.plus(u.count)
	}
	return total
}

func joinUnits(units []unit) string {
	var b strings.Builder
	for i, u := range units {
		if i > 0 {
			b.WriteString(u.sep)
		}
		b.WriteString(u.text)
	}
	return b.String()
}

func splitSentences(text string) []string {
	var (
		out   []string
		runes = []rune(text)
		start = 0
	)
	flush := func(end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
	}
	for i, r := range runes {
		switch r {
		case '。', '！', '？', '；':
			flush(i + 1)
		case '.', '!', '?', ';':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush(i + 1)
			}
		}
	}
	if start < len(runes) {
		flush(len(runes))
	}
	return out
}

// sentenceJoiner is the separator placed after sentence when the next
// sentence of the same paragraph follows it.
func sentenceJoiner(sentence string) string {
	last, _ := lastRune(sentence)
	if last < 0x80 {
		return " "
	}
	return ""
}

func lastRune(s string) (rune, bool) {
	r := []rune(s)
	if len(r) == 0 {
		return 0, false
	}
	return r[len(r)-1], true
}
