package parser

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// parseDOCX reads paragraph text from word/document.xml. Legacy binary .doc
// files are not zip archives and are reported as a missing dependency.
func parseDOCX(path, fileType string) (*Result, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if fileType == "doc" && errors.Is(err, zip.ErrFormat) {
			return nil, eris.Wrap(ErrDependencyMissing,
				"parser: legacy .doc files need conversion to .docx (e.g. libreoffice --convert-to docx)")
		}
		return nil, eris.Wrapf(err, "parser: open docx %s", path)
	}
	defer zr.Close() //nolint:errcheck

	var body io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body, err = f.Open()
			if err != nil {
				return nil, eris.Wrap(err, "parser: open word/document.xml")
			}
			break
		}
	}
	if body == nil {
		return nil, eris.Errorf("parser: %s has no word/document.xml", path)
	}
	defer body.Close() //nolint:errcheck

	paragraphs, err := docxParagraphs(body)
	if err != nil {
		return nil, err
	}
	text := strings.Join(paragraphs, "\n")
	return &Result{Text: text, PageCount: estimatePages(text)}, nil
}

// docxParagraphs streams the document XML and returns non-blank paragraphs.
// Paragraphs nested in text boxes are emitted on their own when they close,
// without disturbing the enclosing paragraph.
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		open       []*strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "parser: decode document.xml")
		}

		var cur *strings.Builder
		if len(open) > 0 {
			cur = open[len(open)-1]
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				open = append(open, &strings.Builder{})
			case "t":
				inText = true
			case "tab":
				if cur != nil {
					cur.WriteByte('\t')
				}
			case "br", "cr":
				if cur != nil {
					cur.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if cur == nil {
					continue
				}
				open = open[:len(open)-1]
				if s := cur.String(); strings.TrimSpace(s) != "" {
					paragraphs = append(paragraphs, s)
				}
			}
		case xml.CharData:
			if inText && cur != nil {
				cur.Write(t)
			}
		}
	}
	return paragraphs, nil
}
