package parser

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// parseText reads plain text or CSV. A UTF-8 or UTF-16 byte order mark
// selects the decoding, otherwise UTF-8 is assumed and invalid bytes become
// U+FFFD. Output is NFC normalized.
func parseText(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "parser: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	raw, err := io.ReadAll(transform.NewReader(f, dec))
	if err != nil {
		return nil, eris.Wrapf(err, "parser: decode %s", path)
	}

	text := norm.NFC.String(string(raw))
	return &Result{Text: text, PageCount: estimatePages(text)}, nil
}
