package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/report-qa/cli/internal/domain"
)

// formatMarkdown renders headers, bullets and **bold** spans of model text.
func formatMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "### "):
			out = append(out, headerStyle.Render(strings.TrimPrefix(trimmed, "### ")))
		case strings.HasPrefix(trimmed, "## "):
			out = append(out, headerStyle.Render(strings.TrimPrefix(trimmed, "## ")))
		case strings.HasPrefix(trimmed, "# "):
			out = append(out, headerStyle.Render(strings.TrimPrefix(trimmed, "# ")))
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			item := strings.TrimPrefix(strings.TrimPrefix(trimmed, "- "), "* ")
			out = append(out, "  "+mutedStyle.Render("•")+" "+processBold(item))
		default:
			out = append(out, processBold(line))
		}
	}
	return strings.Join(out, "\n")
}

// processBold styles text between ** pairs. An unclosed pair styles to the
// end of the line.
func processBold(text string) string {
	parts := strings.Split(text, "**")
	if len(parts) == 1 {
		return text
	}
	var b strings.Builder
	for i, p := range parts {
		if i%2 == 1 {
			b.WriteString(boldStyle.Render(p))
		} else {
			b.WriteString(p)
		}
	}
	return b.String()
}

// formatFinalAnswer renders a typed final answer for display.
func formatFinalAnswer(v any) string {
	switch a := v.(type) {
	case nil:
		return domain.NotAvailable
	case float64:
		return strconv.FormatFloat(a, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(a)
	case []string:
		if len(a) == 0 {
			return "(none)"
		}
		return strings.Join(a, ", ")
	case string:
		return a
	default:
		return fmt.Sprint(a)
	}
}

func formatPages(pages []int) string {
	if len(pages) == 0 {
		return "-"
	}
	s := make([]string, len(pages))
	for i, p := range pages {
		s[i] = strconv.Itoa(p)
	}
	return strings.Join(s, ", ")
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
