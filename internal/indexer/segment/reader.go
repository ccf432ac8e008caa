package segment

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/gerdreiss/seroost/internal/indexer/index"
	apperrors "github.com/gerdreiss/seroost/pkg/errors"
)

// Load reads a model written by Save. Failing to open the file wraps
// ErrPersistence; undecodable content or counts that break the model
// invariants wrap ErrCorruptIndex. A file without "df_index" gets its
// document frequencies recomputed.
func Load(path string) (*index.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, persistenceError("opening", path, err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReaderSize(f, 64<<10)
	if Compressed(path) {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, corruptError(path, err)
		}
		defer zr.Close()
		r = zr
	}

	var ff fileFormat
	dec := json.NewDecoder(r)
	if err := dec.Decode(&ff); err != nil {
		return nil, corruptError(path, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, corruptError(path, errors.New("trailing data after index object"))
	}
	if ff.TF == nil {
		return nil, corruptError(path, errors.New(`missing "tf_index"`))
	}

	m, err := index.NewModel(ff.TF, ff.DF)
	if err != nil {
		return nil, corruptError(path, err)
	}
	return m, nil
}

func corruptError(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperrors.ErrCorruptIndex, path, err)
}
