package parser

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/meridian/internal/config"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, "pdf", NormalizeType(".PDF"))
	assert.Equal(t, "docx", NormalizeType(" Docx "))
	assert.Equal(t, "", NormalizeType(""))
}

func TestParse_FileNotFound(t *testing.T) {
	p := New(config.ParserConfig{})
	_, err := p.Parse(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), "pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFileNotFound))
}

func TestParse_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "slides.pptx", []byte("x"))
	p := New(config.ParserConfig{})

	_, err := p.Parse(context.Background(), path, "pptx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = p.ParseBytes(context.Background(), []byte("x"), "png")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestParse_TypeFromExtension(t *testing.T) {
	path := writeFile(t, "notes.TXT", []byte("Revenue: $10M"))
	res, err := New(config.ParserConfig{}).Parse(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, "Revenue: $10M", res.Text)
}

// --- Text ---

func TestParseText_PageEstimate(t *testing.T) {
	p := New(config.ParserConfig{})

	res, err := p.ParseBytes(context.Background(), []byte("short"), "txt")
	require.NoError(t, err)
	assert.Equal(t, 1, res.PageCount)

	res, err = p.ParseBytes(context.Background(), []byte(strings.Repeat("a", 9500)), "csv")
	require.NoError(t, err)
	assert.Equal(t, 3, res.PageCount)
}

func TestParseText_UTF16WithBOM(t *testing.T) {
	data := []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00}
	res, err := New(config.ParserConfig{}).ParseBytes(context.Background(), data, "txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Text)
}

func TestParseText_NFCAndInvalidBytes(t *testing.T) {
	data := append([]byte("Café "), 0xFF)
	res, err := New(config.ParserConfig{}).ParseBytes(context.Background(), data, "txt")
	require.NoError(t, err)
	assert.Equal(t, "Café �", res.Text)
}

// --- DOCX ---

func buildDOCX(t *testing.T, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memo.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestParseDOCX(t *testing.T) {
	path := buildDOCX(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Revenue: $150,000,000</w:t></w:r></w:p>
<w:p><w:r><w:t>   </w:t></w:r></w:p>
<w:p><w:r><w:t>EBITDA</w:t><w:tab/><w:t xml:space="preserve">37.5M</w:t></w:r></w:p>
</w:body>
</w:document>`)

	res, err := New(config.ParserConfig{}).Parse(context.Background(), path, "docx")
	require.NoError(t, err)
	assert.Equal(t, "Revenue: $150,000,000\nEBITDA\t37.5M", res.Text)
	assert.Equal(t, 1, res.PageCount)
}

func TestParseDOCX_TextBoxKeepsOuterParagraph(t *testing.T) {
	path := buildDOCX(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t xml:space="preserve">Net income: </w:t></w:r><w:r><w:pict><w:txbxContent><w:p><w:r><w:t>Unaudited</w:t></w:r></w:p></w:txbxContent></w:pict></w:r><w:r><w:t>$12,000,000</w:t></w:r></w:p>
<w:p><w:r><w:t>Total debt: $3,000,000</w:t></w:r></w:p>
</w:body>
</w:document>`)

	res, err := New(config.ParserConfig{}).Parse(context.Background(), path, "docx")
	require.NoError(t, err)
	assert.Equal(t, "Unaudited\nNet income: $12,000,000\nTotal debt: $3,000,000", res.Text)
}

func TestParseDOCX_LegacyDoc(t *testing.T) {
	path := writeFile(t, "old.doc", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	_, err := New(config.ParserConfig{}).Parse(context.Background(), path, "doc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDependencyMissing))
	assert.Contains(t, err.Error(), "libreoffice")
}

func TestParseDOCX_Corrupt(t *testing.T) {
	path := writeFile(t, "bad.docx", []byte("not a zip"))
	_, err := New(config.ParserConfig{}).Parse(context.Background(), path, "docx")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDependencyMissing))
}

// --- XLSX ---

func TestParseXLSX(t *testing.T) {
	f := xlsx.NewFile()
	pl, err := f.AddSheet("P&L")
	require.NoError(t, err)
	row := pl.AddRow()
	row.AddCell().SetString("Revenue")
	row.AddCell().SetString("150000000")
	blank := pl.AddRow()
	blank.AddCell().SetString("")
	row = pl.AddRow()
	row.AddCell().SetString("EBITDA")
	row.AddCell().SetString("37500000")
	_, err = f.AddSheet("Notes")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.xlsx")
	require.NoError(t, f.Save(path))

	res, err := New(config.ParserConfig{}).Parse(context.Background(), path, "xlsx")
	require.NoError(t, err)
	assert.Equal(t, "=== Sheet: P&L ===\nRevenue\t150000000\nEBITDA\t37500000", res.Text)
	assert.Equal(t, 2, res.PageCount)
}

func TestParseXLSX_LegacyXLS(t *testing.T) {
	path := writeFile(t, "old.xls", []byte{0xD0, 0xCF, 0x11, 0xE0})
	_, err := New(config.ParserConfig{}).Parse(context.Background(), path, "xls")
	assert.True(t, errors.Is(err, ErrDependencyMissing))
}

// --- PDF ---

func fakePdfToText(t *testing.T, output string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}
	script := "#!/bin/sh\nprintf '" + output + "'\n"
	path := filepath.Join(t.TempDir(), "pdftotext")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestParsePDF_SplitsPages(t *testing.T) {
	bin := fakePdfToText(t, `Revenue: $150,000,000\fEBITDA: $37,500,000\f`)
	pdf := writeFile(t, "q3.pdf", []byte("%PDF-1.4"))

	res, err := New(config.ParserConfig{PdfToTextPath: bin}).Parse(context.Background(), pdf, "pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, res.PageCount)
	assert.Equal(t, "Revenue: $150,000,000"+PageSeparator+"EBITDA: $37,500,000", res.Text)
}

func TestParsePDF_MissingBinary(t *testing.T) {
	pdf := writeFile(t, "q3.pdf", []byte("%PDF-1.4"))
	bin := filepath.Join(t.TempDir(), "no-such-pdftotext")

	_, err := New(config.ParserConfig{PdfToTextPath: bin}).Parse(context.Background(), pdf, "pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDependencyMissing))
	assert.Contains(t, err.Error(), "pdftotext")
}

func TestParsePDF_CommandFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}
	bin := filepath.Join(t.TempDir(), "pdftotext")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho 'Syntax Error: broken xref' >&2\nexit 1\n"), 0o755))
	pdf := writeFile(t, "bad.pdf", []byte("junk"))

	_, err := New(config.ParserConfig{PdfToTextPath: bin}).Parse(context.Background(), pdf, "pdf")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDependencyMissing))
	assert.Contains(t, err.Error(), "broken xref")
}
