package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type titanRequest struct {
	InputText string `json:"inputText"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Embedder turns text into Titan embedding vectors. Its Embed method has the
// shape of chromem.EmbeddingFunc.
type Embedder struct {
	client  *Client
	modelID string
}

func NewEmbedder(api bedrockAPI, modelID string) (*Embedder, error) {
	c, err := New(api, modelID)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: c, modelID: c.modelID}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("bedrock: embedding input must not be empty")
	}
	body, err := json.Marshal(titanRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("bedrock: marshal embedding request: %w", err)
	}
	out, err := e.client.invoke(ctx, e.modelID, body)
	if err != nil {
		return nil, err
	}
	var resp titanResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("bedrock: decode embedding response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("bedrock: embedding response has no vector")
	}
	return resp.Embedding, nil
}
