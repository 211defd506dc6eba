package history

import (
	"context"
	"encoding/json"
	"path"

	"github.com/m-mizutani/goerr/v2"
	"github.com/vetscan/vetscan/pkg/adapter"
	"github.com/vetscan/vetscan/pkg/model"
	"github.com/vetscan/vetscan/pkg/repository"
	"github.com/vetscan/vetscan/pkg/utils/logging"
)

// UseCase provides operations over the persisted analysis history
type UseCase struct {
	repo    repository.Repository
	storage adapter.Storage
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithStorage enables report export to an external bucket
func WithStorage(storage adapter.Storage) Option {
	return func(uc *UseCase) {
		uc.storage = storage
	}
}

// New creates a new history UseCase instance
func New(repo repository.Repository, opts ...Option) *UseCase {
	uc := &UseCase{
		repo: repo,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// List returns the history, newest first.
func (u *UseCase) List(ctx context.Context) ([]*model.AnalysisResult, error) {
	return u.repo.Load(ctx)
}

// Show returns one result by ID.
func (u *UseCase) Show(ctx context.Context, id model.ResultID) (*model.AnalysisResult, error) {
	results, err := u.repo.Load(ctx)
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		if result.ID == id {
			return result, nil
		}
	}

	return nil, goerr.New("result not found", goerr.V("id", id))
}

// Clear empties the history. Only invoked by an explicit user action.
func (u *UseCase) Clear(ctx context.Context) error {
	return u.repo.Clear(ctx)
}

// Export writes one result as a JSON rescue report to the configured
// bucket, keyed by the result ID.
func (u *UseCase) Export(ctx context.Context, id model.ResultID) (string, error) {
	if u.storage == nil {
		return "", goerr.New("no export bucket configured")
	}

	result, err := u.Show(ctx, id)
	if err != nil {
		return "", err
	}

	key := path.Join("reports", string(result.ID)+".json")
	w, err := u.storage.Put(ctx, key)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open export writer", goerr.V("key", key))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		w.Close()
		return "", goerr.Wrap(err, "failed to write report", goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize report", goerr.V("key", key))
	}

	logging.From(ctx).Info("report exported", "id", result.ID, "key", key)
	return key, nil
}
