// Package server exposes the memory engine over HTTP and WebSocket so
// non-Go hosts can drive it.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/engramlabs/engram-go/engine"
	"github.com/engramlabs/engram-go/insight"
	"github.com/engramlabs/engram-go/memory"
	"github.com/engramlabs/engram-go/retrieval"
)

// Server serves the memory API.
type Server struct {
	manager *engine.Manager
	mux     *http.ServeMux
}

// New creates a server around a manager.
func New(manager *engine.Manager) *Server {
	s := &Server{
		manager: manager,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/v1/memories", s.handleExtractAndStore)
	s.mux.HandleFunc("GET /api/v1/memories", s.handleList)
	s.mux.HandleFunc("GET /api/v1/memories/{key}", s.handleGet)
	s.mux.HandleFunc("DELETE /api/v1/memories/{key}", s.handleDelete)
	s.mux.HandleFunc("DELETE /api/v1/memories", s.handleClear)
	s.mux.HandleFunc("GET /api/v1/search", s.handleSearch)
	s.mux.HandleFunc("POST /api/v1/clusters", s.handleClusterAll)
	s.mux.HandleFunc("GET /api/v1/healthz", s.handleHealth)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type extractRequest struct {
	Text string `json:"text"`
}

type recordResponse struct {
	Key          string   `json:"key"`
	Insights     []string `json:"insights"`
	HasEmbedding bool     `json:"has_embedding"`
	CreatedAt    int64    `json:"created_at"`
	OriginalText string   `json:"original_text,omitempty"`
}

func toRecordResponse(rec *memory.Record) recordResponse {
	return recordResponse{
		Key:          rec.Key,
		Insights:     rec.Insights,
		HasEmbedding: rec.HasEmbedding(),
		CreatedAt:    rec.CreatedAt.UnixMilli(),
		OriginalText: rec.OriginalText,
	}
}

type matchResponse struct {
	Record recordResponse `json:"record"`
	Score  float64        `json:"score"`
}

func toMatchResponses(matches []retrieval.Match) []matchResponse {
	out := make([]matchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchResponse{Record: toRecordResponse(m.Record), Score: m.Score})
	}
	return out
}

func (s *Server) handleExtractAndStore(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, created, err := s.manager.ExtractAndStore(r.Context(), req.Text)
	if err != nil {
		writeErrorFor(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"record":  toRecordResponse(rec),
		"created": created,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := s.manager.List(r.Context())
	if err != nil {
		writeErrorFor(w, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"memories": out,
		"count":    len(out),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.manager.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		writeErrorFor(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	removed, err := s.manager.Delete(r.Context(), r.PathValue("key"))
	if err != nil {
		writeErrorFor(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "no memory under that key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Clear(r.Context()); err != nil {
		writeErrorFor(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	topK := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k < 0 {
			writeError(w, http.StatusBadRequest, "k must be a non-negative integer")
			return
		}
		topK = k
	}
	minScore := 0.0
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 {
			writeError(w, http.StatusBadRequest, "min_score must be a non-negative number")
			return
		}
		minScore = f
	}

	matches, err := s.manager.Search(r.Context(), query, topK, minScore)
	if err != nil {
		writeErrorFor(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matches": toMatchResponses(matches),
		"count":   len(matches),
	})
}

func (s *Server) handleClusterAll(w http.ResponseWriter, r *http.Request) {
	result, err := s.manager.ClusterAll(r.Context())
	if err != nil {
		writeErrorFor(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[SERVER] Encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErrorFor maps pipeline errors onto HTTP statuses.
func writeErrorFor(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, memory.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, memory.ErrEmptyText),
		errors.Is(err, memory.ErrInvalidInsights):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, insight.ErrNoInsights):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, insight.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, memory.ErrExtractorUnavailable),
		errors.Is(err, memory.ErrEmbedderUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, insight.ErrAuthentication),
		errors.Is(err, insight.ErrQuotaExceeded):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("[SERVER] Internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
