package extract

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// HTML extracts visible text from HTML documents with the x/net/html
// tokenizer. Script and style bodies are skipped. The character encoding is
// sniffed from the byte order mark or <meta> declaration.
type HTML struct {
	MaxBytes int64
}

func (x HTML) Extract(ctx context.Context, path string) (string, error) {
	f, err := open(path, x.MaxBytes)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r, err := charset.NewReader(bufio.NewReader(f), "text/html")
	if err != nil {
		return "", fmt.Errorf("detecting charset: %w", err)
	}
	return x.extract(ctx, r)
}

func (HTML) extract(ctx context.Context, r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var (
		b    strings.Builder
		skip int
	)
	for n := 0; ; n++ {
		if n%1024 == 0 && ctx.Err() != nil {
			return "", ctx.Err()
		}
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("parsing html: %w", err)
			}
			return b.String(), nil
		case html.StartTagToken:
			if isHidden(z) {
				skip++
			}
		case html.EndTagToken:
			if isHidden(z) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isHidden(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch atom.Lookup(name) {
	case atom.Script, atom.Style, atom.Noscript, atom.Template:
		return true
	}
	return false
}
