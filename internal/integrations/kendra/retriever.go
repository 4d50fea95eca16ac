package kendra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kendra"
	"github.com/aws/aws-sdk-go-v2/service/kendra/types"

	"kendra-chatbot/internal/domain"
)

const (
	DefaultTopK = 3
	// MaxTopK is the largest page size the Retrieve API accepts.
	MaxTopK = 100
)

// kendraAPI is the minimal Kendra interface required by Retriever.
// *kendra.Client satisfies it.
type kendraAPI interface {
	Retrieve(ctx context.Context, params *kendra.RetrieveInput, optFns ...func(*kendra.Options)) (*kendra.RetrieveOutput, error)
	Query(ctx context.Context, params *kendra.QueryInput, optFns ...func(*kendra.Options)) (*kendra.QueryOutput, error)
}

// Retriever fetches passages from one Kendra index. It uses the Retrieve API
// and falls back to Query when Retrieve returns nothing.
type Retriever struct {
	api     kendraAPI
	indexID string
	topK    int32
}

func New(api kendraAPI, indexID string, topK int) (*Retriever, error) {
	if api == nil {
		return nil, errors.New("kendra: api must not be nil")
	}
	indexID = strings.TrimSpace(indexID)
	if indexID == "" {
		return nil, errors.New("kendra: index id must not be empty")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	return &Retriever{api: api, indexID: indexID, topK: int32(topK)}, nil
}

func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.DocumentReference, error) {
	out, err := r.api.Retrieve(ctx, &kendra.RetrieveInput{
		IndexId:   aws.String(r.indexID),
		QueryText: aws.String(query),
		PageSize:  aws.Int32(r.topK),
	})
	if err != nil {
		return nil, fmt.Errorf("kendra: Retrieve: %w", err)
	}

	docs := make([]domain.DocumentReference, 0, len(out.ResultItems))
	for _, item := range out.ResultItems {
		docs = append(docs, domain.DocumentReference{
			DocumentID:         aws.ToString(item.DocumentId),
			Title:              aws.ToString(item.DocumentTitle),
			SourceURI:          aws.ToString(item.DocumentURI),
			Excerpt:            aws.ToString(item.Content),
			DocumentAttributes: attributes(item.DocumentAttributes),
		})
	}
	if len(docs) > 0 {
		return docs, nil
	}
	return r.query(ctx, query)
}

func (r *Retriever) query(ctx context.Context, query string) ([]domain.DocumentReference, error) {
	out, err := r.api.Query(ctx, &kendra.QueryInput{
		IndexId:   aws.String(r.indexID),
		QueryText: aws.String(query),
		PageSize:  aws.Int32(r.topK),
	})
	if err != nil {
		return nil, fmt.Errorf("kendra: Query: %w", err)
	}

	docs := make([]domain.DocumentReference, 0, len(out.ResultItems))
	for _, item := range out.ResultItems {
		if len(docs) == int(r.topK) {
			break
		}
		docs = append(docs, domain.DocumentReference{
			DocumentID:         aws.ToString(item.DocumentId),
			Title:              highlightText(item.DocumentTitle),
			SourceURI:          aws.ToString(item.DocumentURI),
			Excerpt:            highlightText(item.DocumentExcerpt),
			DocumentAttributes: attributes(item.DocumentAttributes),
		})
	}
	return docs, nil
}

func highlightText(t *types.TextWithHighlights) string {
	if t == nil {
		return ""
	}
	return aws.ToString(t.Text)
}

// attributes flattens Kendra document attributes into plain Go values.
func attributes(in []types.DocumentAttribute) map[string]any {
	out := make(map[string]any, len(in))
	for _, a := range in {
		if a.Key == nil || a.Value == nil {
			continue
		}
		v := a.Value
		switch {
		case v.StringValue != nil:
			out[*a.Key] = *v.StringValue
		case v.LongValue != nil:
			out[*a.Key] = *v.LongValue
		case v.DateValue != nil:
			out[*a.Key] = *v.DateValue
		case v.StringListValue != nil:
			out[*a.Key] = append([]string(nil), v.StringListValue...)
		}
	}
	return out
}
