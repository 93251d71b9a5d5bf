package proxyserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-run/mnemo/internal/config"
	"github.com/mnemo-run/mnemo/internal/embeddings"
	"github.com/mnemo-run/mnemo/internal/ingestion"
	"github.com/mnemo-run/mnemo/internal/logging"
	"github.com/mnemo-run/mnemo/internal/memory"
	"github.com/mnemo-run/mnemo/internal/retrieval"
	"github.com/mnemo-run/mnemo/internal/router"
	"github.com/mnemo-run/mnemo/internal/storage"
)

// injectionFixture wires a real store, router, embedder and retriever so the proxy's
// fail-open injection path runs against genuine memory recall instead of a nil retriever.
func injectionFixture(t *testing.T) (*retrieval.Retriever, *ingestion.Ingestor) {
	t.Helper()
	log := logging.Nop()

	store, err := storage.Open(t.TempDir(), 8, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	rt, err := router.New()
	require.NoError(t, err)

	embedder := embeddings.NewHashEmbedder(8)
	now := func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	ingestor := ingestion.New(rt, embedder, store, now)
	_, err = ingestor.Ingest("the user's favorite programming language is Go", memory.SourceManual, "")
	require.NoError(t, err)

	weight := config.Default().Weight
	det := config.Default().Router.Deterministic
	retriever := retrieval.New(store, embedder, rt, weight, det, now)

	return retriever, ingestor
}

func TestForwardInjectsMemoriesIntoOpenAIRequest(t *testing.T) {
	var seenBody []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seenBody = b
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hi"}}]}`))
	}))
	defer upstream.Close()

	retriever, ingestor := injectionFixture(t)

	cfg := config.Default()
	cfg.Proxy.TimeoutSecs = 5
	s := New(cfg, retriever, ingestor, logging.Nop())

	reqBody := `{"messages":[{"role":"user","content":"what language do I like?"}]}`
	target := "http://" + upstream.Listener.Addr().String() + "/v1/chat/completions"
	req := httptest.NewRequest(http.MethodPost, "/p/"+target, io.NopCloser(strings.NewReader(reqBody)))
	req.Header.Set("Authorization", "Bearer sk-test")
	rec := httptest.NewRecorder()

	s.handlePassthrough(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, seenBody)
	assert.Contains(t, string(seenBody), "<mnemo-memories>")
	assert.Contains(t, string(seenBody), "role\":\"system\"")
}

func TestForwardSkipsInjectionWhenRetrieverIsNil(t *testing.T) {
	var seenBody []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seenBody = b
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hi"}}]}`))
	}))
	defer upstream.Close()

	cfg := config.Default()
	cfg.Proxy.TimeoutSecs = 5
	s := testServer(t, cfg)

	reqBody := `{"messages":[{"role":"user","content":"what language do I like?"}]}`
	target := "http://" + upstream.Listener.Addr().String() + "/v1/chat/completions"
	req := httptest.NewRequest(http.MethodPost, "/p/"+target, io.NopCloser(strings.NewReader(reqBody)))
	req.Header.Set("Authorization", "Bearer sk-test")
	rec := httptest.NewRecorder()

	s.handlePassthrough(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reqBody, string(seenBody))
}
