package repository

import (
	"context"

	"github.com/vetscan/vetscan/pkg/model"
)

// DefaultCapacity is the retention bound of the analysis history.
const DefaultCapacity = 50

// Repository is the capacity-bounded, persisted analysis history.
// Entries are ordered newest-first; once the bound is exceeded the oldest
// entries are evicted. A single logical writer is assumed; concurrent
// appends resolve last-write-wins.
type Repository interface {
	// Load reads the persisted history. Absent or corrupt storage yields
	// an empty history, never an error.
	Load(ctx context.Context) ([]*model.AnalysisResult, error)

	// Append prepends the result, truncates to capacity, persists the
	// truncated history synchronously and returns it.
	Append(ctx context.Context, result *model.AnalysisResult) ([]*model.AnalysisResult, error)

	// Clear empties the history and persists the empty state.
	Clear(ctx context.Context) error
}
