// Package checkpoint persists per-job outcomes so a later run can skip
// finished jobs and seed sessions from earlier bests.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"sqlboost/internal/session"

	"github.com/pkg/errors"
)

// File is a jobID keyed map of terminal results backed by one JSON file.
// All methods are safe for concurrent use.
type File struct {
	path string

	mu      sync.Mutex
	entries map[string]session.Result
}

// Load reads the checkpoint at path. A missing file yields an empty
// checkpoint rather than an error.
func Load(path string) (*File, error) {
	f := &File{path: path, entries: make(map[string]session.Result)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, errors.Wrapf(err, "read checkpoint %s", path)
	}
	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, &f.entries); err != nil {
		return nil, errors.Wrapf(err, "decode checkpoint %s", path)
	}
	return f, nil
}

// Get returns the recorded result for jobID, if any.
func (f *File) Get(jobID string) (session.Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.entries[jobID]
	return res, ok
}

// Put records the result for jobID, replacing any earlier entry.
func (f *File) Put(jobID string, res session.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[jobID] = res
}

// Len reports the number of recorded jobs.
func (f *File) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Save writes the checkpoint atomically via a temp file rename.
func (f *File) Save() error {
	f.mu.Lock()
	data, err := json.MarshalIndent(f.entries, "", "  ")
	f.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, "encode checkpoint")
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create checkpoint dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return errors.Wrap(err, "create checkpoint temp file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "write checkpoint")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "close checkpoint temp file")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "rename checkpoint to %s", f.path)
	}
	return nil
}
