package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/vetscan/vetscan/pkg/model"
	"github.com/vetscan/vetscan/pkg/utils/logging"
)

// localRepo persists the history as a JSON array (newest-first) in a
// single file, the CLI equivalent of the product's browser storage entry.
type localRepo struct {
	path     string
	capacity int

	loaded  bool
	results []*model.AnalysisResult
}

// NewLocal creates a file-backed history at path. capacity <= 0 falls
// back to DefaultCapacity.
func NewLocal(path string, capacity int) Repository {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &localRepo{
		path:     path,
		capacity: capacity,
	}
}

func (r *localRepo) Load(ctx context.Context) ([]*model.AnalysisResult, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.From(ctx).Warn("history file unreadable, starting empty", "path", r.path, "error", err)
		}
		r.results = nil
		r.loaded = true
		return nil, nil
	}

	var results []*model.AnalysisResult
	if err := json.Unmarshal(data, &results); err != nil {
		logging.From(ctx).Warn("history file corrupt, starting empty", "path", r.path, "error", err)
		r.results = nil
		r.loaded = true
		return nil, nil
	}

	if len(results) > r.capacity {
		results = results[:r.capacity]
	}

	r.results = results
	r.loaded = true
	return r.results, nil
}

func (r *localRepo) Append(ctx context.Context, result *model.AnalysisResult) ([]*model.AnalysisResult, error) {
	if !r.loaded {
		if _, err := r.Load(ctx); err != nil {
			return nil, err
		}
	}

	results := append([]*model.AnalysisResult{result}, r.results...)
	if len(results) > r.capacity {
		results = results[:r.capacity]
	}

	if err := r.persist(results); err != nil {
		return nil, err
	}

	r.results = results
	return r.results, nil
}

func (r *localRepo) Clear(ctx context.Context) error {
	if err := r.persist([]*model.AnalysisResult{}); err != nil {
		return err
	}

	r.results = nil
	r.loaded = true
	return nil
}

// persist writes the whole history atomically via a temp file rename so a
// crash mid-write never exposes a partial state.
func (r *localRepo) persist(results []*model.AnalysisResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal history")
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return goerr.Wrap(err, "failed to create history directory", goerr.V("dir", dir))
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return goerr.Wrap(err, "failed to create temp history file")
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return goerr.Wrap(err, "failed to write history")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return goerr.Wrap(err, "failed to close history file")
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return goerr.Wrap(err, "failed to replace history file", goerr.V("path", r.path))
	}

	return nil
}
