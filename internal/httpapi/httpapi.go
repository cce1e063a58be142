// Package httpapi exposes the timeline cache over HTTP: a feed endpoint
// backed by internal/timeline.Orchestrator, a consistency-debug endpoint
// backed by internal/cachecheck, and a static asset handler for a small
// companion UI.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/illicitonion/timetravel/internal/cachecheck"
	"github.com/illicitonion/timetravel/internal/interval"
	"github.com/illicitonion/timetravel/internal/intervalstore"
	"github.com/illicitonion/timetravel/internal/timeline"
)

// Server wires an Orchestrator, a Cache, and a set of static assets into a
// chi router.
type Server struct {
	orchestrator *timeline.Orchestrator
	cache        *timeline.Cache
	assets       map[string][]byte
	log          *slog.Logger
	router       chi.Router
}

// New builds a Server. assets maps a request path (e.g. "/index.html") to
// its bytes; see LoadAssets to populate it from a directory at startup.
func New(orchestrator *timeline.Orchestrator, cache *timeline.Cache, assets map[string][]byte, log *slog.Logger) *Server {
	s := &Server{
		orchestrator: orchestrator,
		cache:        cache,
		assets:       assets,
		log:          log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/feed/{user}/{from_seconds}/{until_seconds}", s.handleFeed)
	r.Get("/debug/consistency", s.handleConsistency)
	r.Get("/*", s.handleStatic)

	s.router = r
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// feedItem is the wire shape of a single timeline entry.
type feedItem struct {
	ID                string `json:"id"`
	SecondsSinceStart uint64 `json:"seconds_since_start"`
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")

	from, err := parseSeconds(chi.URLParam(r, "from_seconds"))
	if err != nil {
		http.Error(w, "bad from_seconds: "+err.Error(), http.StatusBadRequest)
		return
	}
	until, err := parseSeconds(chi.URLParam(r, "until_seconds"))
	if err != nil {
		http.Error(w, "bad until_seconds: "+err.Error(), http.StatusBadRequest)
		return
	}

	lo := timeline.SecondsToSnowflake(from)
	hi := timeline.SecondsToSnowflake(until)
	i := interval.New(lo, hi)

	creds := credentialsFromRequest(r)

	items, err := s.orchestrator.Lookup(r.Context(), creds, user, i)
	if err != nil {
		writeOrchestratorError(w, s.log, err)
		return
	}

	out := make([]feedItem, len(items))
	for n, item := range items {
		out[n] = feedItem{
			ID:                strconv.FormatUint(uint64(item.ID), 10),
			SecondsSinceStart: uint64(timeline.SnowflakeToSeconds(item.ID)) - uint64(from),
		}
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConsistency(w http.ResponseWriter, r *http.Request) {
	result, err := cachecheck.Run(s.cache, cachecheck.Options{Logger: s.log})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path
	body, ok := s.assets[p]
	if !ok {
		p = "/index.html"
		body, ok = s.assets[p]
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Write(body)
}

func writeOrchestratorError(w http.ResponseWriter, log *slog.Logger, err error) {
	var conflict *intervalstore.ConflictError
	var indet *timeline.IndeterminateEmpty
	var upstream *timeline.UpstreamError

	switch {
	case errors.As(err, &conflict):
		log.Warn("conflicting cache data", "error", err)
		http.Error(w, "internal inconsistency", http.StatusInternalServerError)
	case errors.As(err, &indet):
		log.Warn("indeterminate cache state", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	case errors.As(err, &upstream):
		log.Warn("upstream error", "error", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	default:
		log.Error("unhandled lookup error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseSeconds(s string) (timeline.Seconds, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return timeline.Seconds(n), nil
}

func credentialsFromRequest(r *http.Request) timeline.Credentials {
	return timeline.Credentials{
		Token:         r.Header.Get("X-Upstream-Token"),
		PrincipalName: r.Header.Get("X-Principal"),
	}
}
