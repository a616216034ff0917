package extract_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Rrens/rag-agent/internal/ingest/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeZip(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for n, content := range files {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestText(t *testing.T) {
	path := writeFile(t, "a.txt", "\xef\xbb\xbfhello\nworld")
	got, err := extract.Text(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", got)

	bad := writeFile(t, "b.txt", "\xff\xfe\xfd")
	_, err = extract.Text(context.Background(), bad)
	assert.Error(t, err)
}

func TestCSV(t *testing.T) {
	path := writeFile(t, "a.csv", "name,role\nAda,engineer\nLinus, maintainer\n")
	got, err := extract.CSV(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "name: Ada\nrole: engineer\n\nname: Linus\nrole: maintainer", got)
}

func TestJSON(t *testing.T) {
	path := writeFile(t, "a.json", `{"b": ["two", {"c": "three"}], "a": "one", "n": 4}`)
	got, err := extract.JSON(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree", got)

	bad := writeFile(t, "b.json", `{"a":`)
	_, err = extract.JSON(context.Background(), bad)
	assert.Error(t, err)
}

func TestHTML(t *testing.T) {
	doc := `<html><head><title>Guide</title><style>p{color:red}</style></head>
<body><h1>Install</h1><p>Run   the <b>installer</b> &amp; wait.</p>
<script>alert(1)</script><ul><li>one</li><li>two</li></ul></body></html>`
	path := writeFile(t, "a.html", doc)

	got, err := extract.HTML(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, got, "Install\n\nRun the installer & wait.")
	assert.Contains(t, got, "one\ntwo")
	assert.NotContains(t, got, "alert")
	assert.NotContains(t, got, "color:red")
}

func TestDOCX(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>First</w:t></w:r><w:r><w:t xml:space="preserve"> paragraph</w:t></w:r></w:p>
<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>tabbed</w:t></w:r></w:p>
</w:body></w:document>`
	path := writeZip(t, "a.docx", map[string]string{"word/document.xml": body})

	got, err := extract.DOCX(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "First paragraph\n\nSecond\ttabbed", got)

	missing := writeZip(t, "b.docx", map[string]string{"other.xml": "<x/>"})
	_, err = extract.DOCX(context.Background(), missing)
	assert.Error(t, err)
}

func TestEPUB_SpineOrder(t *testing.T) {
	files := map[string]string{
		"META-INF/container.xml": `<?xml version="1.0"?>
<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container" version="1.0">
<rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`,
		"OEBPS/content.opf": `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
<manifest>
<item id="c1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
<item id="c2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
</manifest>
<spine><itemref idref="c2"/><itemref idref="c1"/></spine>
</package>`,
		"OEBPS/text/ch1.xhtml": `<html><body><p>Chapter one.</p></body></html>`,
		"OEBPS/text/ch2.xhtml": `<html><body><p>Chapter two.</p></body></html>`,
	}
	path := writeZip(t, "book.epub", files)

	got, err := extract.EPUB(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Chapter two.\n\nChapter one.", got)
}

func TestEPUB_FallbackWithoutContainer(t *testing.T) {
	path := writeZip(t, "book.epub", map[string]string{
		"b.xhtml": `<p>Beta</p>`,
		"a.xhtml": `<p>Alpha</p>`,
	})

	got, err := extract.EPUB(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Alpha\n\nBeta", got)
}

func TestPDF_InvalidFile(t *testing.T) {
	path := writeFile(t, "a.pdf", "not a pdf")
	_, err := extract.PDF(context.Background(), path)
	assert.Error(t, err)
}
