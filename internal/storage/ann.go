package storage

import (
	"context"

	chromem "github.com/philippgille/chromem-go"

	"github.com/mnemo-run/mnemo/internal/embeddings"
)

// annIndex wraps an in-memory chromem-go collection, giving Store approximate nearest
// neighbor search once a tier has enough rows for it to pay off (spec.md §4.1). Embeddings
// are always supplied explicitly, so the collection's own embedding function is never
// invoked.
type annIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
}

func newANNIndex(dim int) *annIndex {
	db := chromem.NewDB()
	// The embedding function is required by the API but unreachable: every document is
	// added with a precomputed Embedding, and queries always go through queryEmbedding.
	stubEmbed := func(_ context.Context, _ string) ([]float32, error) {
		return make([]float32, dim), nil
	}
	collection, err := db.CreateCollection("memories", nil, stubEmbed)
	if err != nil {
		// CreateCollection only errors on a nil embedding func or db, both impossible here.
		panic(err)
	}
	return &annIndex{db: db, collection: collection}
}

func (a *annIndex) upsert(id string, embedding embeddings.Vector) {
	_ = a.collection.Delete(context.Background(), nil, nil, id)
	_ = a.collection.AddDocument(context.Background(), chromem.Document{
		ID:        id,
		Embedding: embedding,
	})
}

func (a *annIndex) remove(id string) {
	_ = a.collection.Delete(context.Background(), nil, nil, id)
}

// query returns up to n ids nearest to embedding, nearest first.
func (a *annIndex) query(embedding embeddings.Vector, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	count := a.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if n > count {
		n = count
	}
	results, err := a.collection.QueryEmbedding(context.Background(), embedding, n, nil, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids, nil
}
