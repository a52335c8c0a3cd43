// Package service provides the HTTP boundary of the IIIF service: route
// registration, cache lookups, error mapping and response encoding. All
// IIIF semantics live in the iiif package.
package service

import (
	"compress/gzip"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/acdh-oeaw/arche-iiif/cache"
	"github.com/acdh-oeaw/arche-iiif/config"
	"github.com/acdh-oeaw/arche-iiif/iiif"
	"github.com/acdh-oeaw/arche-iiif/repo"
)

// Server wires the repository client, the response cache and the IIIF
// core behind an http.ServeMux.
type Server struct {
	cfg     atomic.Pointer[config.Config]
	source  atomic.Pointer[repo.Client]
	cache   *cache.Store
	logger  *slog.Logger
	metrics *Metrics
}

// NewServer creates a Server. cacheStore may be nil to disable caching.
func NewServer(cfg *config.Config, cacheStore *cache.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cache:   cacheStore,
		logger:  logger,
		metrics: NewMetrics(),
	}
	s.UpdateConfig(cfg)
	return s
}

// UpdateConfig swaps the active configuration; in-flight requests keep
// the one they started with.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.cfg.Store(cfg)
	s.source.Store(repo.New(cfg.Repo.BaseURL, cfg.Repo.AllowedNamespaces, cfg.Schema, s.logger))
}

// RegisterHTTPHandlers registers all routes on the given mux.
func (s *Server) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleIIIF)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleIIIF answers GET /?id=...&mode=....
func (s *Server) handleIIIF(w http.ResponseWriter, r *http.Request) {
	applyCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := s.cfg.Load()
	started := time.Now()
	requestID := requestIDFor(r)
	logger := s.logger.With("request_id", requestID)

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}
	modeStr := r.URL.Query().Get("mode")
	if modeStr == "" {
		modeStr = cfg.IIIF.DefaultMode
	}
	mode, err := iiif.ParseMode(modeStr)
	if err != nil {
		s.writeError(w, logger, modeStr, err)
		return
	}

	if entry, err := s.cache.Get(r.Context(), id, string(mode)); err == nil {
		s.metrics.cacheHits.Inc()
		logger.Debug("cache hit", "id", id, "mode", mode)
		s.writeEntry(w, r, string(mode), entry)
		s.metrics.duration.WithLabelValues(string(mode)).Observe(time.Since(started).Seconds())
		return
	} else if !errors.Is(err, cache.ErrNotFound) {
		logger.Warn("cache lookup failed", "id", id, "error", err)
	}
	s.metrics.cacheMisses.Inc()

	out, err := s.compute(r.Context(), cfg, id, mode, r.URL.RawQuery, logger)
	if err != nil {
		s.writeError(w, logger, string(mode), err)
		s.metrics.duration.WithLabelValues(string(mode)).Observe(time.Since(started).Seconds())
		return
	}

	entry := &cache.Entry{
		Status:      out.Status,
		ContentType: out.ContentType,
		Headers:     out.Headers,
		Body:        out.Body,
	}
	if err := s.cache.Put(r.Context(), id, string(mode), entry, out.Touched); err != nil {
		logger.Warn("cache store failed", "id", id, "error", err)
	}

	logger.Info("request served",
		"id", id, "mode", mode, "status", out.Status,
		"touched", len(out.Touched), "elapsed", time.Since(started))
	s.writeEntry(w, r, string(mode), entry)
	s.metrics.duration.WithLabelValues(string(mode)).Observe(time.Since(started).Seconds())
}

// compute fetches the graph and runs the IIIF core for one request.
func (s *Server) compute(ctx context.Context, cfg *config.Config, id string, mode iiif.Mode, rawQuery string, logger *slog.Logger) (*iiif.Output, error) {
	return computeWith(ctx, s.source.Load(), cfg, id, mode, rawQuery, logger)
}

// Compute resolves one request outside the HTTP server, for the one-shot
// CLI path.
func Compute(ctx context.Context, cfg *config.Config, id string, mode iiif.Mode, logger *slog.Logger) (*iiif.Output, error) {
	q := url.Values{}
	q.Set("id", id)
	q.Set("mode", string(mode))
	client := repo.New(cfg.Repo.BaseURL, cfg.Repo.AllowedNamespaces, cfg.Schema, logger)
	return computeWith(ctx, client, cfg, id, mode, q.Encode(), logger)
}

func computeWith(ctx context.Context, client *repo.Client, cfg *config.Config, id string, mode iiif.Mode, rawQuery string, logger *slog.Logger) (*iiif.Output, error) {
	fetchCtx := ctx
	if cfg.Repo.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, cfg.Repo.Timeout)
		defer cancel()
	}

	g, node, err := client.FetchGraph(fetchCtx, id, mode)
	if err != nil {
		return nil, err
	}

	res := iiif.New(g, node, cfg.Schema, iiif.Config{
		IIIFServiceBase:       cfg.IIIF.ServiceBase,
		BaseURL:               cfg.IIIF.BaseURL,
		Profile:               cfg.IIIF.Profile,
		FetchDimensions:       cfg.IIIF.FetchDimensions,
		DefaultCustomManifest: cfg.IIIF.DefaultCustomManifest,
		HTTPClient:            &http.Client{Timeout: cfg.IIIF.FetchTimeout},
	}, logger)

	return res.Output(ctx, iiif.Request{ID: id, Mode: mode, RawQuery: rawQuery})
}

// writeEntry writes a computed or cached response, negotiating gzip.
func (s *Server) writeEntry(w http.ResponseWriter, r *http.Request, mode string, entry *cache.Entry) {
	for k, v := range entry.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", entry.ContentType)
	w.Header().Set("Vary", "Accept-Encoding")

	body := entry.Body
	if len(body) > 0 && strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(entry.Status)
		gz := gzip.NewWriter(w)
		_, _ = gz.Write(body)
		_ = gz.Close()
	} else {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(entry.Status)
		_, _ = w.Write(body)
	}
	s.metrics.requests.WithLabelValues(mode, strconv.Itoa(entry.Status)).Inc()
}

// writeError maps an error onto its HTTP status and a plain-text body.
func (s *Server) writeError(w http.ResponseWriter, logger *slog.Logger, mode string, err error) {
	status := iiif.StatusOf(err)
	switch {
	case errors.Is(err, repo.ErrNamespace):
		status = http.StatusBadRequest
	case errors.Is(err, repo.ErrNotFound):
		status = http.StatusNotFound
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "mode", mode, "status", status, "error", err)
	} else {
		logger.Info("request rejected", "mode", mode, "status", status, "error", err)
	}
	s.metrics.requests.WithLabelValues(mode, strconv.Itoa(status)).Inc()
	http.Error(w, err.Error(), status)
}

func applyCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "X-Requested-With, Content-Type")
}

// requestIDFor extracts the request ID from headers or generates one for
// log correlation.
func requestIDFor(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}
	return uuid.New().String()
}
