// Package parser converts uploaded documents into plain text and a page count.
package parser

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/meridian/internal/config"
)

// Error kinds returned by Parse. Match with errors.Is.
var (
	ErrFileNotFound      = errors.New("file not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrDependencyMissing = errors.New("dependency missing")
)

// PageSeparator is placed between PDF pages in the extracted text.
const PageSeparator = "\n\n---PAGE BREAK---\n\n"

// charsPerPage drives the page estimate for formats without pagination.
const charsPerPage = 3000

// Result is the text content of a document.
type Result struct {
	Text      string `json:"text"`
	PageCount int    `json:"page_count"`
}

// Parser dispatches on the declared file type.
type Parser struct {
	pdf *pdfToText
}

// New creates a Parser from config.
func New(cfg config.ParserConfig) *Parser {
	return &Parser{pdf: newPdfToText(cfg.PdfToTextPath)}
}

// NormalizeType lowercases a declared type and strips a leading dot, so
// ".PDF", "pdf" and "Pdf" are equivalent.
func NormalizeType(fileType string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(fileType)), ".")
}

// Supported reports whether the declared type has a parsing backend.
func Supported(fileType string) bool {
	switch NormalizeType(fileType) {
	case "pdf", "docx", "doc", "xlsx", "xls", "txt", "csv":
		return true
	}
	return false
}

// Parse reads the file at path as fileType. An empty fileType is taken from
// the path's extension.
func (p *Parser) Parse(ctx context.Context, path, fileType string) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrapf(ErrFileNotFound, "parser: %s", path)
		}
		return nil, eris.Wrapf(err, "parser: stat %s", path)
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "parser: cancelled")
	}

	if fileType == "" {
		fileType = filepath.Ext(path)
	}
	switch t := NormalizeType(fileType); t {
	case "pdf":
		return p.pdf.parse(ctx, path)
	case "docx", "doc":
		return parseDOCX(path, t)
	case "xlsx", "xls":
		return parseXLSX(path, t)
	case "txt", "csv":
		return parseText(path)
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "parser: file type %q", t)
	}
}

// ParseBytes parses an in-memory document by spilling it to a temp file.
func (p *Parser) ParseBytes(ctx context.Context, data []byte, fileType string) (*Result, error) {
	t := NormalizeType(fileType)
	if !Supported(t) {
		return nil, eris.Wrapf(ErrUnsupportedFormat, "parser: file type %q", t)
	}

	f, err := os.CreateTemp("", "meridian-*."+t)
	if err != nil {
		return nil, eris.Wrap(err, "parser: create temp file")
	}
	defer os.Remove(f.Name()) //nolint:errcheck

	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "parser: write temp file")
	}
	if err := f.Close(); err != nil {
		return nil, eris.Wrap(err, "parser: close temp file")
	}
	return p.Parse(ctx, f.Name(), t)
}

// estimatePages is a heuristic for formats that carry no page information.
func estimatePages(text string) int {
	n := utf8.RuneCountInString(text) / charsPerPage
	if n < 1 {
		return 1
	}
	return n
}
