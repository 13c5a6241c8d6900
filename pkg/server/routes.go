package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/collabmd/collabmd/internal/logging"
	"github.com/collabmd/collabmd/pkg/broker"
	"github.com/collabmd/collabmd/pkg/export"
	"github.com/collabmd/collabmd/pkg/protocol"
	"github.com/collabmd/collabmd/pkg/session"
)

// Routes returns the HTTP handler serving the websocket endpoint, health,
// metrics and the session admin API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.HandleWebSocket)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Get("/{id}", s.handleGetSession)
		r.Post("/{id}/export", s.handleExport)
	})

	return r
}

// requestLogger logs one line per HTTP request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logging.Duration(time.Since(start)),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.broker.(broker.Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sessionSummary struct {
	ID            string    `json:"id"`
	Participants  int       `json:"participants"`
	Cursors       int       `json:"cursors"`
	ContentLength int       `json:"contentLength"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	EmptySince    time.Time `json:"emptySince,omitzero"`
}

type sessionDetail struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Users     []protocol.User   `json:"users"`
	Cursors   []protocol.Cursor `json:"cursors"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list := s.store.List()
	out := make([]sessionSummary, 0, len(list))
	for _, sum := range list {
		out = append(out, sessionSummary{
			ID:            sum.SessionID,
			Participants:  sum.Participants,
			Cursors:       sum.Cursors,
			ContentLength: sum.ContentLength,
			CreatedAt:     sum.CreatedAt,
			UpdatedAt:     sum.UpdatedAt,
			EmptySince:    sum.EmptySince,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrSessionNotFound)
		return
	}

	state := sessionState(snap)
	writeJSON(w, http.StatusOK, sessionDetail{
		ID:        snap.SessionID,
		Content:   snap.Content,
		Users:     state.Users,
		Cursors:   state.Cursors,
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, ErrSessionNotFound)
		return
	}

	loc, err := s.exporter.Export(r.Context(), exportDocument(snap))
	switch {
	case errors.Is(err, export.ErrDisabled):
		writeError(w, http.StatusNotImplemented, err)
		return
	case err != nil:
		s.logger.Error("export failed", logging.SessionID(id), logging.Err(err))
		writeError(w, http.StatusBadGateway, err)
		return
	}

	s.logger.Info("session exported", logging.SessionID(id), "key", loc.Key, "bytes", loc.Size)
	writeJSON(w, http.StatusCreated, loc)
}

func exportDocument(snap session.Snapshot) export.Document {
	return export.Document{
		SessionID: snap.SessionID,
		Content:   snap.Content,
		Version:   snap.Version,
		Time:      time.Now().UTC(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
