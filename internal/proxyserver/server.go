// Package proxyserver is Mnemo's HTTP surface: health check, dynamic passthrough, and a
// fallback forwarder, wrapping every proxied request with fail-open memory recall/injection
// and fail-silent post-response ingestion (spec.md §4.11).
package proxyserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mnemo-run/mnemo/internal/config"
	"github.com/mnemo-run/mnemo/internal/ingestion"
	"github.com/mnemo-run/mnemo/internal/inject"
	"github.com/mnemo-run/mnemo/internal/memory"
	"github.com/mnemo-run/mnemo/internal/merrors"
	"github.com/mnemo-run/mnemo/internal/provider"
	"github.com/mnemo-run/mnemo/internal/retrieval"
)

const (
	maxRequestBodyBytes = 4 << 20
	// captureBufferBytes bounds the tee'd copy fed to async ingestion. It must comfortably
	// exceed ordinary completion sizes: internal/provider's response parsers do a structural
	// JSON-path lookup (choices.0.message.content / content array) that needs the response
	// envelope intact, so this buffer keeps bytes from the front rather than the tail — a
	// response larger than this cap loses its trailing bytes (and, for non-streaming JSON,
	// likely fails to parse) instead of losing the opening object the parsers key off of.
	captureBufferBytes = 4 << 20
)

// Server is Mnemo's proxy front door. Grounded on
// daverage-tinyMem/internal/server/proxy/server.go's Server struct (collaborators as
// fields, a mux built in Start, a buffered async-ingestion path), generalized from the
// teacher's single hardcoded /v1/chat/completions route to dynamic passthrough.
type Server struct {
	cfg       *config.Config
	retriever *retrieval.Retriever
	ingestor  *ingestion.Ingestor
	log       *zap.Logger
	client    *http.Client
	server    *http.Server
}

// New builds a Server. Collaborators are constructed by the caller (cmd/mnemo) and shared
// across the CLI and the proxy.
func New(cfg *config.Config, retriever *retrieval.Retriever, ingestor *ingestion.Ingestor, log *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		retriever: retriever,
		ingestor:  ingestor,
		log:       log,
		client:    &http.Client{},
	}
}

// Start builds the route table and blocks serving HTTP until the listener fails or Stop is
// called.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("/p/", s.handlePassthrough)
	mux.HandleFunc("/", s.handleFallback)

	s.server = &http.Server{
		Addr:         s.cfg.Proxy.ListenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("proxy listening", zap.String("addr", s.cfg.Proxy.ListenAddr))
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handlePassthrough resolves /p/{url} into a validated upstream target (spec.md §4.11)
// before forwarding.
func (s *Server) handlePassthrough(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimPrefix(r.URL.Path, "/p/")
	target, err := ResolveTarget(tail, r.URL.RawQuery, s.cfg.Proxy.AllowedHosts)
	if err != nil {
		merrors.WriteJSON(w, err)
		return
	}
	s.forward(w, r, target)
}

// handleFallback forwards to the configured upstream_url when the request matches no other
// route, or responds 404 no_upstream_configured.
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Proxy.UpstreamURL == "" {
		merrors.WriteJSON(w, merrors.New(merrors.NoUpstream, "no upstream_url configured and no passthrough target given"))
		return
	}

	base, err := url.Parse(s.cfg.Proxy.UpstreamURL)
	if err != nil {
		merrors.WriteJSON(w, merrors.Wrap(merrors.Config, "invalid configured upstream_url", err))
		return
	}
	target := *base
	target.Path = joinPath(base.Path, r.URL.Path)
	if r.URL.RawQuery != "" {
		target.RawQuery = r.URL.RawQuery
	}

	if !hostAllowed(target.Hostname(), s.cfg.Proxy.AllowedHosts) {
		merrors.WriteJSON(w, merrors.New(merrors.HostBlock, "host "+target.Hostname()+" is not in the allowlist"))
		return
	}

	s.forward(w, r, &target)
}

func joinPath(base, tail string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(tail, "/") {
		tail = "/" + tail
	}
	return base + tail
}

// forward implements the ordering from spec.md §4.11 and §5: fail-open memory recall +
// injection, forward, stream the response to the client while tee'ing a bounded, head-anchored
// capture for fail-silent async ingestion.
func (s *Server) forward(w http.ResponseWriter, r *http.Request, target *url.URL) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		merrors.WriteJSON(w, merrors.Wrap(merrors.Request, "read request body", err))
		return
	}

	kind := provider.Detect(target.Hostname(), r.Header, body)
	outBody := s.injectMemories(r.Context(), kind, target.Hostname(), body)

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.cfg.Proxy.TimeoutSecs)*time.Second)
	defer cancel()

	outReq, err := http.NewRequestWithContext(ctx, r.Method, target.String(), bytes.NewReader(outBody))
	if err != nil {
		merrors.WriteJSON(w, merrors.Wrap(merrors.Request, "build upstream request", err))
		return
	}
	copyHeadersExceptHopByHop(outReq.Header, r.Header)
	outReq.ContentLength = int64(len(outBody))

	resp, err := s.client.Do(outReq)
	if err != nil {
		if ctx.Err() != nil {
			merrors.WriteJSON(w, merrors.Wrap(merrors.Timeout, "upstream request timed out", err))
			return
		}
		merrors.WriteJSON(w, merrors.Wrap(merrors.Network, "upstream request failed", err))
		return
	}
	defer resp.Body.Close()

	copyHeadersExceptHopByHop(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	capture := newCaptureBuffer(captureBufferBytes)
	tee := io.TeeReader(resp.Body, capture)
	if _, err := io.Copy(flushWriter{w}, tee); err != nil {
		s.log.Warn("streaming response to client failed", zap.Error(err))
		return
	}

	go s.ingestResponse(kind, resp.Header.Get("Content-Type"), capture.Bytes())
}

// injectMemories is the fail-open pre-forward path: any error at any stage (embed, search,
// format, splice) logs and returns the original body untouched.
func (s *Server) injectMemories(ctx context.Context, kind provider.Kind, host string, body []byte) []byte {
	if kind == provider.Unknown || s.retriever == nil {
		return body
	}

	query := provider.ExtractUserQuery(kind, body)
	if query == "" {
		return body
	}

	results, err := s.retriever.Retrieve(query, s.cfg.Router.MaxMemories)
	if err != nil {
		s.log.Warn("memory retrieval failed, forwarding unmodified", zap.Error(err), zap.String("host", host))
		return body
	}
	if len(results) == 0 {
		return body
	}

	formatted := inject.Format(results, s.cfg.Proxy.MaxInjectionTokens)
	if formatted == "" {
		return body
	}

	spliced, err := provider.InjectFormatted(kind, body, formatted)
	if err != nil {
		s.log.Warn("memory injection failed, forwarding unmodified", zap.Error(err), zap.String("host", host))
		return body
	}
	return spliced
}

// ingestResponse is the fail-silent post-response path (spec.md §7): the client has already
// seen the response, so any failure here is logged and dropped.
func (s *Server) ingestResponse(kind provider.Kind, contentType string, tail []byte) {
	if s.ingestor == nil || kind == provider.Unknown || len(tail) == 0 {
		return
	}

	var text string
	if strings.Contains(contentType, "text/event-stream") {
		text = provider.ParseSSEContent(kind, tail)
	} else {
		text = provider.ParseResponseContent(kind, tail)
	}
	if text == "" {
		return
	}

	if _, err := s.ingestor.Ingest(text, memory.SourceConversation, ""); err != nil {
		s.log.Warn("post-response ingestion failed", zap.Error(err))
	}
}
