package localindex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/philippgille/chromem-go"

	"kendra-chatbot/internal/domain"
)

const (
	CollectionName = "knowledge-base"
	DefaultTopK    = 3

	// metadata keys the offline index build stores with every document
	metaTitle  = "title"
	metaSource = "link"
)

// Retriever answers queries from an in-process chromem vector collection,
// usually imported from a gob export built offline.
type Retriever struct {
	collection *chromem.Collection
	topK       int
}

// Open imports a chromem export from path and binds the knowledge-base
// collection to embed, which is used to embed queries.
func Open(path string, embed chromem.EmbeddingFunc, topK int) (*Retriever, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("localindex: path must not be empty")
	}
	if embed == nil {
		return nil, errors.New("localindex: embedding func must not be nil")
	}
	db := chromem.NewDB()
	if err := db.Import(path, ""); err != nil {
		return nil, fmt.Errorf("localindex: import %s: %w", path, err)
	}
	c := db.GetCollection(CollectionName, embed)
	if c == nil {
		return nil, fmt.Errorf("localindex: collection %q not found in %s", CollectionName, path)
	}
	return newRetriever(c, topK), nil
}

func newRetriever(c *chromem.Collection, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{collection: c, topK: topK}
}

// Retrieve returns up to topK documents ordered by descending similarity.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.DocumentReference, error) {
	n := min(r.topK, r.collection.Count())
	if n == 0 {
		return []domain.DocumentReference{}, nil
	}
	res, err := r.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("localindex: query: %w", err)
	}
	docs := make([]domain.DocumentReference, 0, len(res))
	for _, hit := range res {
		attrs := make(map[string]any, len(hit.Metadata)+1)
		for k, v := range hit.Metadata {
			attrs[k] = v
		}
		attrs["similarity"] = hit.Similarity
		docs = append(docs, domain.DocumentReference{
			DocumentID:         hit.ID,
			Title:              hit.Metadata[metaTitle],
			SourceURI:          hit.Metadata[metaSource],
			Excerpt:            hit.Content,
			DocumentAttributes: attrs,
		})
	}
	return docs, nil
}
