package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"snippets/internal/domain"
	"snippets/internal/export"
	"snippets/internal/service"

	"github.com/go-chi/chi/v5"
)

type nameRequest struct {
	Name string `json:"name"`
}

// ─────────────────────────────────────────────────────────────
// Workspaces
// ─────────────────────────────────────────────────────────────

func (s *Server) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	list, err := s.workspaces.ListWorkspaces(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createWorkspace(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ws, err := s.workspaces.CreateWorkspace(r.Context(), req.Name, userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (s *Server) getWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspaces.GetWorkspace(r.Context(), chi.URLParam(r, "workspaceID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) renameWorkspace(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ws, err := s.workspaces.RenameWorkspace(r.Context(), chi.URLParam(r, "workspaceID"), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) deleteWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := s.workspaces.DeleteWorkspace(r.Context(), chi.URLParam(r, "workspaceID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	list, err := s.workspaces.ListMembers(r.Context(), chi.URLParam(r, "workspaceID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string            `json:"userId"`
		Role   domain.MemberRole `json:"role"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.workspaces.AddMember(r.Context(), chi.URLParam(r, "workspaceID"), req.UserID, req.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	err := s.workspaces.RemoveMember(r.Context(), chi.URLParam(r, "workspaceID"), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─────────────────────────────────────────────────────────────
// Projects & folders
// ─────────────────────────────────────────────────────────────

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	list, err := s.workspaces.ListProjects(r.Context(), chi.URLParam(r, "workspaceID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.workspaces.CreateProject(r.Context(), chi.URLParam(r, "workspaceID"), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.workspaces.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) renameProject(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.workspaces.RenameProject(r.Context(), chi.URLParam(r, "projectID"), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.workspaces.DeleteProject(r.Context(), chi.URLParam(r, "projectID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listFolders(w http.ResponseWriter, r *http.Request) {
	list, err := s.workspaces.ListFolders(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		ParentID string `json:"parentId"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := s.workspaces.CreateFolder(r.Context(), chi.URLParam(r, "projectID"), req.ParentID, req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) renameFolder(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	f, err := s.workspaces.RenameFolder(r.Context(), chi.URLParam(r, "folderID"), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) deleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := s.workspaces.DeleteFolder(r.Context(), chi.URLParam(r, "folderID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─────────────────────────────────────────────────────────────
// Snippets
// ─────────────────────────────────────────────────────────────

func (s *Server) listSnippets(w http.ResponseWriter, r *http.Request) {
	list, err := s.snippets.ListSnippets(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createSnippet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		FolderID string `json:"folderId"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	projectID := chi.URLParam(r, "projectID")
	if _, err := s.workspaces.GetProject(r.Context(), projectID); err != nil {
		s.fail(w, r, err)
		return
	}
	sn, err := s.snippets.CreateSnippet(r.Context(), projectID, req.FolderID, req.Name, userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sn)
}

func (s *Server) getSnippet(w http.ResponseWriter, r *http.Request) {
	sn, err := s.snippets.GetSnippet(r.Context(), chi.URLParam(r, "snippetID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sn)
}

// patchSnippet takes a document patch: canvas and elements are each
// optional and replace the stored value when present.
func (s *Server) patchSnippet(w http.ResponseWriter, r *http.Request) {
	var p domain.DocumentPatch
	if err := decode(r, &p); err != nil {
		s.fail(w, r, err)
		return
	}
	sn, err := s.snippets.UpdateSnippet(r.Context(), chi.URLParam(r, "snippetID"), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sn)
}

// updateSnippetMeta renames and/or moves a snippet. A null folderId leaves
// the folder unchanged; "" moves the snippet to the project root.
func (s *Server) updateSnippetMeta(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     *string `json:"name"`
		FolderID *string `json:"folderId"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "snippetID")
	sn, err := s.snippets.GetSnippet(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Name != nil {
		if sn, err = s.snippets.RenameSnippet(r.Context(), id, *req.Name); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if req.FolderID != nil {
		if sn, err = s.snippets.MoveSnippet(r.Context(), id, *req.FolderID); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, sn)
}

func (s *Server) duplicateSnippet(w http.ResponseWriter, r *http.Request) {
	sn, err := s.snippets.DuplicateSnippet(r.Context(), chi.URLParam(r, "snippetID"), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sn)
}

func (s *Server) deleteSnippet(w http.ResponseWriter, r *http.Request) {
	if err := s.snippets.DeleteSnippet(r.Context(), chi.URLParam(r, "snippetID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) star(w http.ResponseWriter, r *http.Request) {
	s.setStar(w, r, true)
}

func (s *Server) unstar(w http.ResponseWriter, r *http.Request) {
	s.setStar(w, r, false)
}

func (s *Server) setStar(w http.ResponseWriter, r *http.Request, on bool) {
	user := userID(r)
	if user == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing %s header", UserHeader))
		return
	}
	id := chi.URLParam(r, "snippetID")
	var err error
	if on {
		err = s.snippets.Star(r.Context(), user, id)
	} else {
		err = s.snippets.Unstar(r.Context(), user, id)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	n, err := s.snippets.CountStars(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"starred": on, "stars": n})
}

func (s *Server) listStarred(w http.ResponseWriter, r *http.Request) {
	list, err := s.snippets.ListStarred(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) listRevisions(w http.ResponseWriter, r *http.Request) {
	list, err := s.snippets.ListRevisions(r.Context(), chi.URLParam(r, "snippetID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ─────────────────────────────────────────────────────────────
// Export
// ─────────────────────────────────────────────────────────────

func (s *Server) exportPNG(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "image/png", "png", export.PNG)
}

func (s *Server) exportPDF(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "application/pdf", "pdf", export.PDF)
}

type exportFunc func(io.Writer, domain.Document, export.Options) error

func (s *Server) export(w http.ResponseWriter, r *http.Request, contentType, ext string, fn exportFunc) {
	sn, err := s.snippets.GetSnippet(r.Context(), chi.URLParam(r, "snippetID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	opts := export.Options{Scale: queryFloat(r, "scale", 1), Title: sn.Name}
	if err := fn(&buf, sn.Data, opts); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s.%s", url.PathEscape(sn.Name), ext))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ─────────────────────────────────────────────────────────────
// Sessions & maintenance
// ─────────────────────────────────────────────────────────────

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.editor.List())
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SnippetID string `json:"snippetId"`
		LocalKey  string `json:"localKey"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var (
		sess *service.Session
		err  error
	)
	switch {
	case req.SnippetID != "" && req.LocalKey == "":
		sess, err = s.editor.Open(r.Context(), req.SnippetID)
	case req.LocalKey != "" && req.SnippetID == "":
		sess, err = s.editor.OpenLocal(r.Context(), req.LocalKey)
	default:
		err = fmt.Errorf("%w: exactly one of snippetId and localKey is required", errBadRequest)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.Info())
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.editor.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  sess.Info(),
		"document": sess.Store.Snapshot(),
	})
}

func (s *Server) flushSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.editor.Flush(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.editor.Get(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	confirm := func(string) bool { return force }
	if err := s.editor.Close(r.Context(), chi.URLParam(r, "sessionID"), confirm); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) runMaintenance(w http.ResponseWriter, r *http.Request) {
	job := chi.URLParam(r, "job")
	if job != service.JobPruneRevisions && job != service.JobReapSessions {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown job %q", job))
		return
	}
	res, ok := s.maintenance.RunJob(r.Context(), job)
	if !ok {
		writeError(w, http.StatusConflict, fmt.Errorf("job %q is already running", res.Job))
		return
	}
	if res.Error != "" {
		writeJSON(w, http.StatusInternalServerError, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
