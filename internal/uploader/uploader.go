// Package uploader ships rewrite case artifacts to external storage.
package uploader

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"sqlboost/internal/config"

	"github.com/pkg/errors"
)

// Uploader pushes one case directory to a storage backend and returns
// the URL prefix the artifacts landed under.
type Uploader interface {
	Enabled() bool
	UploadDir(ctx context.Context, dir string) (string, error)
}

// New picks the configured backend. With neither cloud backend enabled
// the returned uploader is a no-op.
func New(cfg config.StorageConfig) (Uploader, error) {
	if cfg.GCS.Enabled {
		return NewGCS(cfg.GCS)
	}
	if cfg.S3.Enabled {
		return NewS3(cfg.S3)
	}
	return NoopUploader{}, nil
}

// NoopUploader drops every upload. Used when no backend is configured.
type NoopUploader struct{}

func (n NoopUploader) Enabled() bool { return false }

func (n NoopUploader) UploadDir(ctx context.Context, dir string) (string, error) {
	return "", nil
}

// object is one file of a case directory plus the key it uploads under.
type object struct {
	path string
	key  string
}

// caseObjects lists the regular files of a case directory together with
// their object keys. Nested directories are skipped.
func caseObjects(dir, rawPrefix string) ([]object, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, "", errors.Wrapf(err, "list case dir %s", dir)
	}
	prefix := strings.Trim(rawPrefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	base := filepath.Base(dir)
	objects := make([]object, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		objects = append(objects, object{
			path: filepath.Join(dir, entry.Name()),
			key:  prefix + base + "/" + entry.Name(),
		})
	}
	return objects, prefix + base + "/", nil
}
