// Package proxy maps inbound HTTP requests onto the cache, the coalescer
// and the origin client, and shapes the outbound response including the
// cross-origin headers browsers need.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/grepotools/grepodata-proxy/pkg/cache"
	"github.com/grepotools/grepodata-proxy/pkg/coalesce"
	"github.com/grepotools/grepodata-proxy/pkg/logging"
	"github.com/grepotools/grepodata-proxy/pkg/upstream"
)

// Config wires the handler's collaborators. All of them are required
// except Clock, which defaults to the wall clock.
type Config struct {
	Store         *cache.Store
	Group         *coalesce.Group
	Client        *upstream.Client
	Endpoints     map[string]Descriptor
	AllowedOrigin string
	Clock         clock.Clock
}

// Handler is the request router/responder.
type Handler struct {
	store         *cache.Store
	group         *coalesce.Group
	client        *upstream.Client
	endpoints     map[string]Descriptor
	allowedOrigin string
	clock         clock.Clock
	logger        zerolog.Logger
}

// New creates the handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Store == nil || cfg.Group == nil || cfg.Client == nil {
		return nil, fmt.Errorf("store, group and client are required")
	}
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint descriptor is required")
	}
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	return &Handler{
		store:         cfg.Store,
		group:         cfg.Group,
		client:        cfg.Client,
		endpoints:     cfg.Endpoints,
		allowedOrigin: cfg.AllowedOrigin,
		clock:         cfg.Clock,
		logger:        logging.NewLogger("proxy"),
	}, nil
}

// Router returns the HTTP router for the proxy surface.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/{world}/{datafile}", h.handleDatafile).Methods(http.MethodGet, http.MethodOptions)
	r.NotFoundHandler = http.HandlerFunc(h.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.handleMethodNotAllowed)
	return r
}

// handleDatafile serves GET /{world}/{datafile} plus its preflight.
func (h *Handler) handleDatafile(w http.ResponseWriter, r *http.Request) {
	h.writeCORS(w)

	vars := mux.Vars(r)
	world := strings.ToLower(vars["world"])
	datafile := strings.ToLower(vars["datafile"])

	desc, known := h.endpoints[datafile]
	if !known {
		h.writeError(w, datafile, http.StatusNotFound, "unknown datafile")
		return
	}

	// Preflight needs only the CORS headers, never the origin.
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !ValidWorld(world) {
		h.writeError(w, datafile, http.StatusBadRequest, "invalid world")
		return
	}

	key := cache.Key{
		Endpoint: desc.Datafile,
		Params:   map[string]string{"world": world},
	}.String()

	if entry, ok := h.store.Get(key); ok {
		h.logger.Info().
			Str("result", "success").
			Str("reason", "cache").
			Str("world", world).
			Str("datafile", datafile).
			Msg("Served request")
		h.writeEntry(w, datafile, entry, "HIT")
		return
	}

	val, shared, err := h.group.Do(r.Context(), key, func(ctx context.Context) (interface{}, error) {
		return h.fetchAndStore(ctx, key, world, desc)
	})
	if err != nil {
		h.writeFailure(w, world, datafile, err)
		return
	}

	entry, ok := val.(cache.Entry)
	if !ok {
		h.logger.Error().
			Str("world", world).
			Str("datafile", datafile).
			Msg("Coalesced fetch published unexpected value")
		h.writeError(w, datafile, http.StatusInternalServerError, "internal error")
		return
	}

	reason := "upstream"
	if shared {
		reason = "coalesced"
	}
	h.logger.Info().
		Str("result", "success").
		Str("reason", reason).
		Str("world", world).
		Str("datafile", datafile).
		Msg("Served request")
	h.writeEntry(w, datafile, entry, "MISS")
}

// fetchAndStore is the leader path: one bounded origin fetch, cached only
// on success. Failures are returned to all waiters and never stored.
func (h *Handler) fetchAndStore(ctx context.Context, key, world string, desc Descriptor) (interface{}, error) {
	result, err := h.client.Fetch(ctx, world, desc.Datafile)
	if err != nil {
		return nil, err
	}

	now := h.clock.Now()
	entry := cache.Entry{
		Body:        result.Body,
		Status:      result.Status,
		ContentType: result.ContentType,
		StoredAt:    now,
		Expires:     now.Add(desc.TTL),
	}
	h.store.Put(key, entry)
	return entry, nil
}

// handleNotFound answers paths outside the /{world}/{datafile} shape.
// CORS headers are attached so browser callers can read the error.
func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	h.writeCORS(w)
	h.writeError(w, "", http.StatusNotFound, "unknown endpoint")
}

func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeCORS(w)
	h.writeError(w, "", http.StatusMethodNotAllowed, "method not allowed")
}

// writeCORS attaches the permissive cross-origin headers every response
// carries, success or failure.
func (h *Handler) writeCORS(w http.ResponseWriter) {
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", h.allowedOrigin)
	header.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Content-Type")
	header.Set("Access-Control-Max-Age", "86400")
	if h.allowedOrigin != "*" {
		header.Add("Vary", "Origin")
	}
}

// writeEntry sends a cached or freshly fetched body with a
// freshness-derived Cache-Control header.
func (h *Handler) writeEntry(w http.ResponseWriter, datafile string, entry cache.Entry, cacheState string) {
	now := h.clock.Now()

	w.Header().Set("Content-Type", entry.ContentType)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(entry.TTL(now).Seconds())))
	w.Header().Set("Age", fmt.Sprintf("%d", int(now.Sub(entry.StoredAt).Seconds())))
	w.Header().Set("X-Cache", cacheState)

	responsesTotal.WithLabelValues(datafile, fmt.Sprintf("%d", entry.Status)).Inc()
	w.WriteHeader(entry.Status)
	w.Write(entry.Body)
}

// writeFailure translates a fetch error into an HTTP-shaped response.
func (h *Handler) writeFailure(w http.ResponseWriter, world, datafile string, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	reason := "internal"

	var failure *upstream.Failure
	switch {
	case errors.Is(err, coalesce.ErrWaitTimeout):
		status = http.StatusGatewayTimeout
		message = "origin fetch took too long"
		reason = "wait_timeout"
	case errors.Is(err, coalesce.ErrWaitCanceled):
		// The caller is gone; the write below is best-effort.
		status = http.StatusGatewayTimeout
		message = "request canceled"
		reason = "canceled"
	case errors.As(err, &failure):
		switch failure.Kind {
		case upstream.KindTimeout:
			status = http.StatusGatewayTimeout
			message = "origin timed out"
		case upstream.KindUnreachable:
			status = http.StatusBadGateway
			message = "origin unreachable"
		case upstream.KindBadResponse:
			status = http.StatusBadGateway
			message = "origin returned a malformed body"
		case upstream.KindUpstreamStatus:
			// Pass the origin's error status through; anything below 400
			// (a redirect, say) still becomes a bad gateway.
			status = http.StatusBadGateway
			if failure.Status >= 400 {
				status = failure.Status
			}
			message = fmt.Sprintf("origin returned status %d", failure.Status)
		}
		reason = string(failure.Kind)
	}

	h.logger.Warn().
		Str("result", "fail").
		Str("reason", reason).
		Str("world", world).
		Str("datafile", datafile).
		Int("status", status).
		Msg("Served request")

	h.writeError(w, datafile, status, message)
}

// writeError sends a small JSON error body. Detail about internal
// failures never leaves the process; the log line carries it instead.
func (h *Handler) writeError(w http.ResponseWriter, datafile string, status int, message string) {
	responsesTotal.WithLabelValues(datafile, fmt.Sprintf("%d", status)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
