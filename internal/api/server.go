// Package api exposes the services over HTTP with a websocket event stream.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"snippets/internal/domain"
	"snippets/internal/editor"
	"snippets/internal/localstore"
	"snippets/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBody bounds request bodies; documents with embedded images are the
// largest payloads.
const maxBody = 8 << 20

// UserHeader carries the acting user. Authentication happens upstream.
const UserHeader = "X-User-ID"

type Deps struct {
	Snippets    *service.SnippetService
	Workspaces  *service.WorkspaceService
	Editor      *service.EditorService
	Maintenance *service.Maintenance
	Hub         *Hub
	Logger      *slog.Logger
}

type Server struct {
	snippets    *service.SnippetService
	workspaces  *service.WorkspaceService
	editor      *service.EditorService
	maintenance *service.Maintenance
	hub         *Hub
	log         *slog.Logger
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Server{
		snippets:    d.Snippets,
		workspaces:  d.Workspaces,
		editor:      d.Editor,
		maintenance: d.Maintenance,
		hub:         d.Hub,
		log:         d.Logger,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.hub != nil {
		r.Get("/api/events", s.hub.ServeHTTP)
	}

	r.Route("/api/workspaces", func(r chi.Router) {
		r.Get("/", s.listWorkspaces)
		r.Post("/", s.createWorkspace)
		r.Route("/{workspaceID}", func(r chi.Router) {
			r.Get("/", s.getWorkspace)
			r.Patch("/", s.renameWorkspace)
			r.Delete("/", s.deleteWorkspace)
			r.Get("/members", s.listMembers)
			r.Post("/members", s.addMember)
			r.Delete("/members/{userID}", s.removeMember)
			r.Get("/projects", s.listProjects)
			r.Post("/projects", s.createProject)
		})
	})

	r.Route("/api/projects/{projectID}", func(r chi.Router) {
		r.Get("/", s.getProject)
		r.Patch("/", s.renameProject)
		r.Delete("/", s.deleteProject)
		r.Get("/folders", s.listFolders)
		r.Post("/folders", s.createFolder)
		r.Get("/snippets", s.listSnippets)
		r.Post("/snippets", s.createSnippet)
	})

	r.Route("/api/folders/{folderID}", func(r chi.Router) {
		r.Patch("/", s.renameFolder)
		r.Delete("/", s.deleteFolder)
	})

	r.Get("/api/stars", s.listStarred)
	r.Route("/api/snippets/{snippetID}", func(r chi.Router) {
		r.Get("/", s.getSnippet)
		r.Patch("/", s.patchSnippet)
		r.Delete("/", s.deleteSnippet)
		r.Put("/meta", s.updateSnippetMeta)
		r.Post("/duplicate", s.duplicateSnippet)
		r.Put("/star", s.star)
		r.Delete("/star", s.unstar)
		r.Get("/revisions", s.listRevisions)
		r.Get("/export.png", s.exportPNG)
		r.Get("/export.pdf", s.exportPDF)
	})

	if s.editor != nil {
		r.Route("/api/sessions", func(r chi.Router) {
			r.Get("/", s.listSessions)
			r.Post("/", s.openSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Delete("/", s.closeSession)
				r.Post("/flush", s.flushSession)
			})
		})
	}
	if s.maintenance != nil {
		r.Post("/api/maintenance/{job}", s.runMaintenance)
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// fail maps service errors onto HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("http: request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, code, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidDocument),
		errors.Is(err, domain.ErrUnknownElementType),
		errors.Is(err, service.ErrNameRequired),
		errors.Is(err, editor.ErrDuplicateElement),
		errors.Is(err, editor.ErrInvalidElement),
		errors.Is(err, editor.ErrVariantMismatch),
		errors.Is(err, editor.ErrInvalidAlignment),
		errors.Is(err, localstore.ErrInvalidKey),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnsavedChanges):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func decode(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

func userID(r *http.Request) string {
	return r.Header.Get(UserHeader)
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}
