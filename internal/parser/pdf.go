package parser

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// pdfToText extracts PDF text with the poppler pdftotext CLI.
type pdfToText struct {
	binPath string
}

func newPdfToText(binPath string) *pdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &pdfToText{binPath: binPath}
}

// parse runs pdftotext -layout and splits the output on the form feeds it
// writes after every page.
func (p *pdfToText) parse(ctx context.Context, path string) (*Result, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", path, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrapf(ErrDependencyMissing,
				"parser: PDF support needs the pdftotext binary (poppler-utils), %q not found", p.binPath)
		}
		return nil, eris.Wrapf(err, "parser: pdftotext failed for %s: %s", path, strings.TrimSpace(stderr.String()))
	}

	pages := strings.Split(stdout.String(), "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return &Result{
		Text:      strings.Join(pages, PageSeparator),
		PageCount: len(pages),
	}, nil
}
