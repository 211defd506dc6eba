package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/vetscan/vetscan/pkg/model"
	"github.com/vetscan/vetscan/pkg/utils/logging"
	"google.golang.org/api/iterator"
)

const defaultCollection = "analyses"

// firestoreRepo is the remote history backend used when several field
// devices report into one shared log (NGO deployments). The retention
// bound is enforced client-side: evicted documents are deleted after
// each append.
type firestoreRepo struct {
	client     *firestore.Client
	collection string
	capacity   int
}

// NewFirestore creates a Firestore-backed history.
func NewFirestore(ctx context.Context, projectID, database string, capacity int) (Repository, error) {
	if projectID == "" {
		return nil, goerr.New("project ID is required")
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client")
	}

	return &firestoreRepo{
		client:     client,
		collection: defaultCollection,
		capacity:   capacity,
	}, nil
}

func (r *firestoreRepo) Load(ctx context.Context) ([]*model.AnalysisResult, error) {
	iter := r.client.Collection(r.collection).
		OrderBy("CreatedAt", firestore.Desc).
		Limit(r.capacity).
		Documents(ctx)
	defer iter.Stop()

	var results []*model.AnalysisResult
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			// Same contract as the local backend: unreadable storage
			// yields an empty history rather than failing the caller.
			logging.From(ctx).Warn("failed to load remote history, starting empty", "error", err)
			return nil, nil
		}

		var result model.AnalysisResult
		if err := doc.DataTo(&result); err != nil {
			logging.From(ctx).Warn("skipping undecodable history entry", "doc", doc.Ref.ID, "error", err)
			continue
		}
		results = append(results, &result)
	}

	return results, nil
}

func (r *firestoreRepo) Append(ctx context.Context, result *model.AnalysisResult) ([]*model.AnalysisResult, error) {
	doc := r.client.Collection(r.collection).Doc(string(result.ID))
	if _, err := doc.Set(ctx, result); err != nil {
		return nil, goerr.Wrap(err, "failed to append history entry", goerr.V("id", result.ID))
	}

	if err := r.evict(ctx); err != nil {
		return nil, err
	}

	return r.Load(ctx)
}

func (r *firestoreRepo) Clear(ctx context.Context) error {
	iter := r.client.Collection(r.collection).Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to list history for clear")
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return goerr.Wrap(err, "failed to delete history entry", goerr.V("doc", doc.Ref.ID))
		}
	}

	return nil
}

// evict deletes entries beyond the retention bound, oldest first.
func (r *firestoreRepo) evict(ctx context.Context) error {
	iter := r.client.Collection(r.collection).
		OrderBy("CreatedAt", firestore.Desc).
		Offset(r.capacity).
		Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to list evictable history entries")
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return goerr.Wrap(err, "failed to evict history entry", goerr.V("doc", doc.Ref.ID))
		}
	}

	return nil
}
