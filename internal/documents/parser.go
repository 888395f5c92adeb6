package documents

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/report-qa/cli/internal/domain"
)

// Parser extracts the pages of a report.
type Parser interface {
	Parse(filePath, companyName string) (*domain.Document, error)
}

// SupportedExtensions lists the file types ParserFor accepts.
var SupportedExtensions = []string{".pdf", ".epub", ".txt", ".md"}

// ParserFor returns the parser for filePath's extension.
func ParserFor(filePath string) (Parser, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf", ".epub":
		return &FitzParser{}, nil
	case ".txt", ".md":
		return &TextParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(filePath))
	}
}

// IsSupported reports whether ParserFor accepts filePath.
func IsSupported(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// FitzParser parses PDF and EPUB files with MuPDF, one page per page.
type FitzParser struct{}

// Parse extracts per-page text. Pages that fail to extract are kept empty
// so page numbers stay aligned with the source.
func (p *FitzParser) Parse(filePath, companyName string) (*domain.Document, error) {
	sum, err := FileSHA1(filePath)
	if err != nil {
		return nil, err
	}

	doc, err := fitz.New(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filepath.Base(filePath), err)
	}
	defer doc.Close()

	pages := make([]domain.Page, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			text = ""
		}
		pages = append(pages, domain.Page{Number: i + 1, Text: text})
	}

	return newDocument(filePath, companyName, sum, pages), nil
}

// TextParser reads plain text and markdown. Form feeds separate pages.
type TextParser struct{}

// Parse splits the file on form feed characters into pages.
func (p *TextParser) Parse(filePath, companyName string) (*domain.Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(filePath), err)
	}
	doc := ParseText(filepath.Base(filePath), companyName, string(data))
	return doc, nil
}

// ParseText builds a document from in-memory text, hashing its bytes.
func ParseText(fileName, companyName, text string) *domain.Document {
	h := sha1.Sum([]byte(text))

	var pages []domain.Page
	for i, body := range strings.Split(text, "\f") {
		pages = append(pages, domain.Page{Number: i + 1, Text: body})
	}
	return newDocument(fileName, companyName, hex.EncodeToString(h[:]), pages)
}

func newDocument(filePath, companyName, sum string, pages []domain.Page) *domain.Document {
	fileName := filepath.Base(filePath)
	if companyName == "" {
		companyName = CompanyFromFileName(fileName)
	}
	return &domain.Document{
		Meta: domain.MetaInfo{
			SHA1:        sum,
			CompanyName: companyName,
			FileName:    fileName,
		},
		Pages: pages,
	}
}

// FileSHA1 computes the hex SHA-1 of a file's contents.
func FileSHA1(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", filepath.Base(filePath), err)
	}
	defer file.Close()

	hash := sha1.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", filepath.Base(filePath), err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
