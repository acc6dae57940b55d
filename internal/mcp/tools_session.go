package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"snippets/internal/domain"
	"snippets/internal/export"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerSessionTools() {
	// ── list_snippets ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_snippets",
		mcp.WithDescription("List the snippets of a project"),
		mcp.WithString("projectId",
			mcp.Description("ID of the project"),
			mcp.Required(),
		),
	), s.handleListSnippets)

	// ── open_snippet ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("open_snippet",
		mcp.WithDescription("Open an editing session on a stored snippet and make it the active session. Edits are saved automatically."),
		mcp.WithString("snippetId",
			mcp.Description("ID of the snippet"),
			mcp.Required(),
		),
	), s.handleOpenSnippet)

	// ── open_local ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("open_local",
		mcp.WithDescription("Open an editing session on a document kept in the local store, creating it from the template if missing"),
		mcp.WithString("key",
			mcp.Description("Local document key (letters, digits, '-' and '_')"),
			mcp.Required(),
		),
	), s.handleOpenLocal)

	// ── list_sessions ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List open editing sessions with their save state"),
	), s.handleListSessions)

	// ── get_document ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Return the current document of a session, including unsaved edits"),
		mcp.WithString("sessionId", mcp.Description("Session ID (optional, defaults to the active session)")),
	), s.handleGetDocument)

	// ── flush_session ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("flush_session",
		mcp.WithDescription("Save pending edits of a session now instead of waiting for the autosave delay"),
		mcp.WithString("sessionId", mcp.Description("Session ID (optional, defaults to the active session)")),
	), s.handleFlushSession)

	// ── close_session ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("close_session",
		mcp.WithDescription("Save pending edits and close a session. If the save fails the session stays open unless force is set."),
		mcp.WithString("sessionId", mcp.Description("Session ID (optional, defaults to the active session)")),
		mcp.WithBoolean("force", mcp.Description("Close even if unsaved edits would be lost")),
	), s.handleCloseSession)

	// ── export_snippet ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("export_snippet",
		mcp.WithDescription("Render a snippet to PNG or PDF. Without a path, PNG output is returned inline."),
		mcp.WithString("sessionId", mcp.Description("Session to export (optional, defaults to the active session)")),
		mcp.WithString("snippetId", mcp.Description("Export the stored snippet instead of a session")),
		mcp.WithString("format",
			mcp.Description("Output format"),
			mcp.Enum("png", "pdf"),
		),
		mcp.WithNumber("scale", mcp.Description("Pixel scale, 1 to 4 (default 2)")),
		mcp.WithString("path", mcp.Description("File to write; required for pdf")),
	), s.handleExportSnippet)
}

func (s *Server) handleListSnippets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("projectId", "")
	if projectID == "" {
		return nil, fmt.Errorf("projectId is required")
	}
	list, err := s.snippets.ListSnippets(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}

	type snippetSummary struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		FolderID string `json:"folderId,omitempty"`
		Elements int    `json:"elements"`
	}
	out := make([]snippetSummary, len(list))
	for i, sn := range list {
		out[i] = snippetSummary{ID: sn.ID, Name: sn.Name, FolderID: sn.FolderID, Elements: len(sn.Data.Elements)}
	}
	return jsonResult(out)
}

func (s *Server) handleOpenSnippet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snippetID := req.GetString("snippetId", "")
	if snippetID == "" {
		return nil, fmt.Errorf("snippetId is required")
	}
	sess, err := s.editor.Open(ctx, snippetID)
	if err != nil {
		return nil, err
	}
	s.setActive(sess.ID)
	return jsonResult(map[string]any{
		"session":  sess.Info(),
		"elements": summarizeElements(sess.Store.Elements()),
	})
}

func (s *Server) handleOpenLocal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := req.GetString("key", "")
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}
	sess, err := s.editor.OpenLocal(ctx, key)
	if err != nil {
		return nil, err
	}
	s.setActive(sess.ID)
	return jsonResult(map[string]any{
		"session":  sess.Info(),
		"elements": summarizeElements(sess.Store.Elements()),
	})
}

func (s *Server) handleListSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.editor.List())
}

func (s *Server) handleGetDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	return jsonResult(sess.Store.Snapshot())
}

func (s *Server) handleFlushSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	if err := s.editor.Flush(ctx, sess.ID); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	return jsonResult(sess.Info())
}

func (s *Server) handleCloseSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	force := req.GetBool("force", false)
	if err := s.editor.Close(ctx, sess.ID, func(string) bool { return force }); err != nil {
		return nil, fmt.Errorf("%w; retry later or pass force=true to discard them", err)
	}
	s.mu.Lock()
	if s.activeSession == sess.ID {
		s.activeSession = ""
	}
	s.mu.Unlock()
	return textResult(fmt.Sprintf("Session %s closed", sess.ID)), nil
}

func (s *Server) handleExportSnippet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	format := req.GetString("format", "png")
	path := req.GetString("path", "")
	if format == "pdf" && path == "" {
		return nil, fmt.Errorf("path is required for pdf export")
	}

	var (
		doc   domain.Document
		title string
	)
	if id := req.GetString("snippetId", ""); id != "" {
		sn, err := s.snippets.GetSnippet(ctx, id)
		if err != nil {
			return nil, err
		}
		doc, title = sn.Data, sn.Name
	} else {
		sess, err := s.resolveSession(req)
		if err != nil {
			return nil, err
		}
		doc, title = sess.Store.Snapshot(), sess.SnippetID
	}

	opts := export.Options{Scale: getFloat(args, "scale", 2), Title: title}
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = export.PNG(&buf, doc, opts)
	case "pdf":
		err = export.PDF(&buf, doc, opts)
	default:
		return nil, fmt.Errorf("unknown format %q (want png or pdf)", format)
	}
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	if path == "" {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.ImageContent{
					Type:     "image",
					Data:     base64.StdEncoding.EncodeToString(buf.Bytes()),
					MIMEType: "image/png",
				},
			},
		}, nil
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return textResult(fmt.Sprintf("Wrote %s (%d bytes)", path, buf.Len())), nil
}

// elementSummary is a compact view of an element for tool results.
type elementSummary struct {
	ID       string             `json:"id"`
	Type     domain.ElementType `json:"type"`
	Name     string             `json:"name"`
	X        float64            `json:"x"`
	Y        float64            `json:"y"`
	Width    float64            `json:"width"`
	Height   float64            `json:"height"`
	Hidden   bool               `json:"hidden,omitempty"`
	Locked   bool               `json:"locked,omitempty"`
	Preview  string             `json:"preview,omitempty"`
}

func summarizeElements(els []domain.Element) []elementSummary {
	out := make([]elementSummary, len(els))
	for i, el := range els {
		out[i] = summarizeElement(el)
	}
	return out
}

func summarizeElement(el domain.Element) elementSummary {
	var preview string
	switch d := el.Data.(type) {
	case *domain.CodeEditorData:
		preview = d.Code
	case *domain.TextData:
		preview = d.Value
	}
	if r := []rune(preview); len(r) > 80 {
		preview = string(r[:80]) + "..."
	}
	t := el.Transform
	return elementSummary{
		ID:      el.ID,
		Type:    el.Type(),
		Name:    el.Name,
		X:       t.Position.X,
		Y:       t.Position.Y,
		Width:   t.Width,
		Height:  t.Height,
		Hidden:  el.Hidden,
		Locked:  el.Locked,
		Preview: preview,
	}
}
