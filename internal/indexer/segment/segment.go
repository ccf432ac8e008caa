// Package segment persists a frequency model as a single JSON document,
// optionally gzip-compressed, and loads it back.
//
// The file holds two objects: "tf_index" (document -> term -> count) and
// "df_index" (term -> document count). Files ending in ".gz" are compressed.
package segment

import (
	"os"
	"strings"
	"time"

	"github.com/gerdreiss/seroost/internal/indexer/index"
)

// fileFormat is the on-disk layout.
type fileFormat struct {
	TF index.CorpusIndex `json:"tf_index"`
	DF index.DocFreq     `json:"df_index"`
}

// Info describes a persisted index file.
type Info struct {
	Path       string
	Size       int64
	ModTime    time.Time
	Compressed bool
}

// Compressed reports whether path is written gzip-compressed.
func Compressed(path string) bool {
	return strings.HasSuffix(path, ".gz")
}

// Stat returns file metadata without decoding the model.
func Stat(path string) (Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Info{}, persistenceError("stat", path, err)
	}
	return Info{Path: path, Size: fi.Size(), ModTime: fi.ModTime(), Compressed: Compressed(path)}, nil
}
