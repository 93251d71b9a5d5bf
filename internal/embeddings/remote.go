package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mnemo-run/mnemo/internal/merrors"
)

// RemoteEmbedder posts to an OpenAI-compatible /v1/embeddings endpoint, grounded on the
// same wire shape daverage-tinyMem's semantic.EmbeddingClient uses. It is single-owner and
// mutable per spec.md §4.2 like HashEmbedder, guarded by the same mutex discipline.
type RemoteEmbedder struct {
	mu      sync.Mutex
	baseURL string
	apiKey  string
	model   string
	dim     int
	client  *http.Client
}

// NewRemoteEmbedder builds a RemoteEmbedder targeting baseURL (an OpenAI-compatible host).
func NewRemoteEmbedder(baseURL, apiKey, model string, dim int) *RemoteEmbedder {
	return &RemoteEmbedder{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (e *RemoteEmbedder) Dimension() int { return e.dim }

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *RemoteEmbedder) Embed(text string) Vector {
	out, err := e.embedBatch(context.Background(), []string{text})
	if err != nil || len(out) == 0 {
		return make(Vector, e.dim)
	}
	return out[0]
}

func (e *RemoteEmbedder) EmbedBatch(texts []string) []Vector {
	out, err := e.embedBatch(context.Background(), texts)
	if err != nil {
		zeros := make([]Vector, len(texts))
		for i := range zeros {
			zeros[i] = make(Vector, e.dim)
		}
		return zeros
	}
	return out
}

func (e *RemoteEmbedder) embedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	payload, err := json.Marshal(embeddingsRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, merrors.Wrap(merrors.Retrieval, "marshal embeddings request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, merrors.Wrap(merrors.Retrieval, "build embeddings request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, merrors.Wrap(merrors.Network, "embeddings request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, merrors.New(merrors.Upstream, fmt.Sprintf("embeddings endpoint returned %d", resp.StatusCode))
	}

	var parsed embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, merrors.Wrap(merrors.Retrieval, "decode embeddings response", err)
	}

	out := make([]Vector, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
