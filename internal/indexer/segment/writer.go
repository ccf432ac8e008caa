package segment

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/gerdreiss/seroost/internal/indexer/index"
	apperrors "github.com/gerdreiss/seroost/pkg/errors"
)

// Save writes m to path. The data goes to path+".tmp" first, is synced, and
// is then renamed over path, so a concurrent reader sees either the old file
// or the complete new one. The temp file is removed on failure.
func Save(m *index.Model, path string) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return persistenceError("creating directory for", path, err)
		}
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return persistenceError("creating", tmpPath, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := encode(f, m, Compressed(path)); err != nil {
		return persistenceError("writing", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		return persistenceError("syncing", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return persistenceError("closing", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return persistenceError("renaming into", path, err)
	}
	return nil
}

func encode(w io.Writer, m *index.Model, compress bool) error {
	bw := bufio.NewWriterSize(w, 64<<10)
	var out io.Writer = bw
	var zw *gzip.Writer
	if compress {
		zw = gzip.NewWriter(bw)
		out = zw
	}

	tf, df := m.Tables()
	if err := json.NewEncoder(out).Encode(fileFormat{TF: tf, DF: df}); err != nil {
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func persistenceError(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", apperrors.ErrPersistence, op, path, err)
}
