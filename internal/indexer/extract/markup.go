package extract

import (
	"bufio"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// Markup extracts character data from XML and XHTML. The decoder runs in
// non-strict mode with HTML entities and does not check that tags balance,
// so typical hand-written XHTML parses. Every character-data event is
// followed by a single space.
type Markup struct {
	MaxBytes int64
}

func (x Markup) Extract(ctx context.Context, path string) (string, error) {
	f, err := open(path, x.MaxBytes)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return x.extract(ctx, bufio.NewReader(f))
}

func (Markup) extract(ctx context.Context, r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	var b strings.Builder
	for n := 0; ; n++ {
		if n%1024 == 0 && ctx.Err() != nil {
			return "", ctx.Err()
		}
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("parsing markup: %w", err)
		}
		if cd, ok := tok.(xml.CharData); ok {
			b.Write(cd)
			b.WriteByte(' ')
		}
	}
}
