package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMarkupAppendsSpacePerCharData(t *testing.T) {
	path := writeFile(t, "doc.xhtml", `<html><body><p>the</p><p>cat</p></body></html>`)

	text, err := Markup{}.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "the cat ", text)
}

func TestMarkupLenientParsing(t *testing.T) {
	path := writeFile(t, "doc.xhtml", `<!DOCTYPE html>
<html><head><title>Glossary</title></head>
<body><p>Tom &amp; Jerry&nbsp;run<br>fast</p><!-- hidden --></body></html>`)

	text, err := Markup{}.Extract(context.Background(), path)
	require.NoError(t, err)
	// &nbsp; decodes to U+00A0, which Fields treats as a separator
	assert.Equal(t, []string{"Glossary", "Tom", "&", "Jerry", "run", "fast"}, strings.Fields(text))
	assert.NotContains(t, text, "hidden")
}

func TestMarkupDeclaredCharset(t *testing.T) {
	path := writeFile(t, "latin1.xml", "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><p>caf\xe9</p>")

	text, err := Markup{}.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "café ", text)
}

func TestHTMLSkipsScriptAndStyle(t *testing.T) {
	path := writeFile(t, "page.html", `<html><head>
<style>p { color: red }</style>
<script>var secret = 1;</script>
</head><body><h1>Visible</h1><p>text here</p></body></html>`)

	text, err := HTML{}.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Visible", "text", "here"}, strings.Fields(text))
}

func TestPlain(t *testing.T) {
	path := writeFile(t, "notes.txt", "plain  words\n")
	text, err := Plain{}.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "plain  words\n", text)

	bad := writeFile(t, "bad.txt", "\xff\xfe broken")
	_, err = Plain{}.Extract(context.Background(), bad)
	assert.Error(t, err)
}

func TestSizeLimit(t *testing.T) {
	path := writeFile(t, "big.txt", strings.Repeat("x", 100))

	_, err := Plain{MaxBytes: 10}.Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = Markup{MaxBytes: 10}.Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestByExtension(t *testing.T) {
	ex := Default(0)

	upper := writeFile(t, "DOC.XHTML", `<p>upper</p>`)
	text, err := ex.Extract(context.Background(), upper)
	require.NoError(t, err)
	assert.Equal(t, "upper ", text)

	pdf := writeFile(t, "doc.pdf", "%PDF")
	_, err = ex.Extract(context.Background(), pdf)
	assert.ErrorIs(t, err, ErrUnsupported)

	assert.ElementsMatch(t, []string{".xhtml", ".xml", ".html", ".htm", ".txt"}, ex.Extensions())
}

func TestMissingFile(t *testing.T) {
	_, err := Default(0).Extract(context.Background(), filepath.Join(t.TempDir(), "gone.xhtml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := writeFile(t, "doc.xhtml", `<p>x</p>`)

	_, err := Markup{}.Extract(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}
