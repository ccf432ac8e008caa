// Package extract turns a document on disk into the plain text that the
// tokenizer consumes. No whitespace normalization is applied.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/gerdreiss/seroost/pkg/errors"
)

var (
	ErrUnsupported = apperrors.ErrUnsupported
	ErrTooLarge    = apperrors.ErrDocumentTooLarge
)

// Extractor returns the text content of the document at path.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ByExtension dispatches on the lower-cased file extension, including the
// leading dot.
type ByExtension map[string]Extractor

// Default maps the markup, HTML and plain-text extensions to their
// extractors. maxBytes <= 0 disables the size limit.
func Default(maxBytes int64) ByExtension {
	markup := Markup{MaxBytes: maxBytes}
	html := HTML{MaxBytes: maxBytes}
	return ByExtension{
		".xhtml": markup,
		".xml":   markup,
		".html":  html,
		".htm":   html,
		".txt":   Plain{MaxBytes: maxBytes},
	}
}

func (b ByExtension) Extract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	ex, ok := b[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	return ex.Extract(ctx, path)
}

// Extensions lists the registered extensions.
func (b ByExtension) Extensions() []string {
	exts := make([]string, 0, len(b))
	for ext := range b {
		exts = append(exts, ext)
	}
	return exts
}

func open(path string, maxBytes int64) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 {
		fi, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		if fi.Size() > maxBytes {
			f.Close()
			return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, fi.Size(), maxBytes)
		}
	}
	return f, nil
}
