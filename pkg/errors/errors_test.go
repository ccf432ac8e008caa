package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid input", fmt.Errorf("parsing limit: %w", ErrInvalidInput), http.StatusBadRequest},
		{"unsupported", ErrUnsupported, http.StatusBadRequest},
		{"too large", ErrDocumentTooLarge, http.StatusRequestEntityTooLarge},
		{"index unavailable", fmt.Errorf("execute: %w", ErrIndexUnavailable), http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"corrupt index", ErrCorruptIndex, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
		{"app error wins", New(ErrInternal, http.StatusTeapot, "short and stout"), http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrPersistence, http.StatusInternalServerError, "writing %s", "index.json")
	wrapped := fmt.Errorf("indexing: %w", err)

	assert.True(t, errors.Is(wrapped, ErrPersistence))
	assert.Equal(t, "index persistence failed: writing index.json", err.Error())
}
