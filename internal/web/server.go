package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"star-art-studio/internal/blueprint"
	"star-art-studio/internal/generator"
	"star-art-studio/internal/session"
	"star-art-studio/internal/studio"
)

//go:embed static/*
var staticFS embed.FS

const maxBodyBytes = 64 << 10

type Options struct {
	Sessions *session.Store
	Logger   *slog.Logger
}

type Server struct {
	sessions *session.Store
	logger   *slog.Logger
	router   chi.Router
}

type apiError struct {
	Error string `json:"error"`
}

type generateRequest struct {
	Description string            `json:"description"`
	Options     generator.Options `json:"options"`
}

type sessionView struct {
	ID          string               `json:"id"`
	RunID       string               `json:"runId,omitempty"`
	Phase       studio.Phase         `json:"phase"`
	Loading     bool                 `json:"loading"`
	Message     string               `json:"message,omitempty"`
	Description string               `json:"description,omitempty"`
	Options     generator.Options    `json:"options"`
	Blueprint   *blueprint.Blueprint `json:"blueprint"`
	Images      []string             `json:"images"`
	Error       string               `json:"error,omitempty"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

func New(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Sessions == nil {
		return nil, errors.New("session store is nil")
	}

	s := &Server{
		sessions: opts.Sessions,
		logger:   logger,
	}

	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, s.withLogging)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/options", s.handleOptions)
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/generate", s.handleGenerate)
			r.Get("/blueprint", s.handleBlueprint)
			r.Get("/images/{index}", s.handleImage)
		})
	})

	r.Handle("/*", http.FileServer(http.FS(staticSub)))

	s.router = r
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"selectors":    blueprint.Catalog(),
		"aspectRatios": blueprint.AspectRatios(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	writeJSON(w, http.StatusCreated, s.view(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.view(sess))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "description is required"})
		return
	}
	if err := req.Options.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}

	// The run outlives this request; the orchestrator applies its own timeout.
	err := sess.Studio.Start(context.WithoutCancel(r.Context()), req.Description, req.Options)
	switch {
	case errors.Is(err, studio.ErrBusy):
		writeJSON(w, http.StatusConflict, apiError{Error: "a generation is already running"})
		return
	case errors.Is(err, studio.ErrEmptyDescription):
		writeJSON(w, http.StatusBadRequest, apiError{Error: "description is required"})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}

	_, _ = s.sessions.UpdateOptions(sess.ID, func(o *generator.Options) error {
		*o = req.Options
		return nil
	})
	writeJSON(w, http.StatusAccepted, s.view(sess))
}

func (s *Server) handleBlueprint(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	snap := sess.Studio.Snapshot()
	if snap.Blueprint == nil {
		writeJSON(w, http.StatusNotFound, apiError{Error: "no blueprint yet"})
		return
	}

	body, err := json.MarshalIndent(snap.Blueprint, "", "  ")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "encode blueprint"})
		return
	}
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	snap := sess.Studio.Snapshot()
	if err != nil || index < 0 || index >= len(snap.Images) {
		writeJSON(w, http.StatusNotFound, apiError{Error: "image not found"})
		return
	}

	img := snap.Images[index]
	w.Header().Set("content-type", img.MIMEType)
	w.Header().Set("content-disposition", fmt.Sprintf(`attachment; filename="concept-%d%s"`, index+1, img.Extension()))
	w.Header().Set("content-length", strconv.Itoa(len(img.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "session not found"})
		return nil, false
	}
	return sess, true
}

func (s *Server) view(sess *session.Session) sessionView {
	snap := sess.Studio.Snapshot()

	images := make([]string, 0, len(snap.Images))
	for _, img := range snap.Images {
		images = append(images, img.DataURL())
	}

	opts := snap.Options
	if snap.RunID == "" {
		opts = s.sessions.Options(sess.ID)
	}

	return sessionView{
		ID:          sess.ID,
		RunID:       snap.RunID,
		Phase:       snap.Phase,
		Loading:     snap.Phase.Loading(),
		Message:     snap.Phase.Message(),
		Description: snap.Description,
		Options:     opts.Normalized(),
		Blueprint:   snap.Blueprint,
		Images:      images,
		Error:       snap.Error,
		UpdatedAt:   snap.UpdatedAt,
	}
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"dur_ms", time.Since(start).Milliseconds(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
