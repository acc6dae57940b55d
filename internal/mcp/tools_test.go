package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"snippets/internal/domain"
	"snippets/internal/editor"
	"snippets/internal/localstore"
	"snippets/internal/service"
	"snippets/internal/storage"

	"github.com/mark3labs/mcp-go/mcp"
)

type fixture struct {
	srv      *Server
	snippets *service.SnippetService
	editor   *service.EditorService
	emitter  *service.MockEmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "mcp.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	emitter := &service.MockEmitter{}
	snippets := service.NewSnippetService(storage.NewSnippetStore(db), storage.NewStarStore(db), storage.NewRevisionStore(db), emitter, nil)
	local, err := localstore.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ed := service.NewEditorService(snippets, local, emitter, nil, service.EditorOptions{Delay: time.Hour})
	t.Cleanup(func() { ed.CloseAll(context.Background()) })

	return &fixture{
		srv:      New(Deps{Emitter: emitter, Editor: ed, Snippets: snippets}),
		snippets: snippets,
		editor:   ed,
		emitter:  emitter,
	}
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return tc.Text
}

// open creates a snippet and opens it as the active session.
func (f *fixture) open(t *testing.T) (*domain.Snippet, *service.Session) {
	t.Helper()
	ctx := context.Background()
	sn, err := f.snippets.CreateSnippet(ctx, "p1", "", "Demo", "agent")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.srv.handleOpenSnippet(ctx, call(map[string]any{"snippetId": sn.ID})); err != nil {
		t.Fatalf("open_snippet: %v", err)
	}
	sess, err := f.editor.Get(f.srv.activeSession)
	if err != nil {
		t.Fatal(err)
	}
	return sn, sess
}

// ─────────────────────────────────────────────────────────────
// Session tools
// ─────────────────────────────────────────────────────────────

func TestTools_NoActiveSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.srv.handleGetDocument(context.Background(), call(nil))
	if err == nil || !strings.Contains(err.Error(), "open_snippet") {
		t.Errorf("expected a hint to open a session, got %v", err)
	}
}

func TestTools_OpenMissingSnippet(t *testing.T) {
	f := newFixture(t)
	_, err := f.srv.handleOpenSnippet(context.Background(), call(map[string]any{"snippetId": "ghost"}))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTools_EditFlushAndClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sn, sess := f.open(t)

	res, err := f.srv.handleAddTextElement(ctx, call(map[string]any{"value": "Hello", "fontSize": 40.0}))
	if err != nil {
		t.Fatalf("add_text_element: %v", err)
	}
	var added elementSummary
	if err := json.Unmarshal([]byte(resultText(t, res)), &added); err != nil {
		t.Fatal(err)
	}
	if added.Type != domain.ElementTypeText || added.Preview != "Hello" {
		t.Errorf("unexpected element %+v", added)
	}
	if els := sess.Store.Elements(); els[0].ID != added.ID {
		t.Error("new element should be on top")
	}

	if _, err := f.srv.handleFlushSession(ctx, call(nil)); err != nil {
		t.Fatalf("flush_session: %v", err)
	}
	stored, _ := f.snippets.GetSnippet(ctx, sn.ID)
	if len(stored.Data.Elements) != len(sn.Data.Elements)+1 {
		t.Errorf("flushed snippet has %d elements", len(stored.Data.Elements))
	}

	if _, err := f.srv.handleCloseSession(ctx, call(nil)); err != nil {
		t.Fatalf("close_session: %v", err)
	}
	if f.srv.activeSession != "" {
		t.Error("closing the active session should clear it")
	}
	if len(f.editor.List()) != 0 {
		t.Error("session still open")
	}
	if len(f.emitter.Named("mcp:document-changed")) != 1 {
		t.Errorf("expected one document-changed event")
	}
}

// ─────────────────────────────────────────────────────────────
// Element tools
// ─────────────────────────────────────────────────────────────

func TestTools_UpdateElement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, sess := f.open(t)

	_, err := f.srv.handleUpdateElement(ctx, call(map[string]any{
		"elementId": "code-editor",
		"patch":     `{"code":{"code":"fmt.Println(1)","theme":"light"}}`,
	}))
	if err != nil {
		t.Fatalf("update_element: %v", err)
	}
	el, _ := sess.Store.Element("code-editor")
	d := el.Data.(*domain.CodeEditorData)
	if d.Code != "fmt.Println(1)" || d.Theme != "light" || d.Language != "go" {
		t.Errorf("unexpected code data %+v", d)
	}

	// Text fields on a code element are rejected.
	_, err = f.srv.handleUpdateElement(ctx, call(map[string]any{
		"elementId": "code-editor",
		"patch":     `{"text":{"value":"x"}}`,
	}))
	if err == nil {
		t.Error("expected a variant mismatch")
	}
	_, err = f.srv.handleUpdateElement(ctx, call(map[string]any{
		"elementId": "code-editor",
		"patch":     `{"colour":"red"}`,
	}))
	if err == nil {
		t.Error("expected unknown fields to be rejected")
	}
	_, err = f.srv.handleUpdateElement(ctx, call(map[string]any{"elementId": "ghost", "patch": `{}`}))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for a missing element, got %v", err)
	}
}

func TestTools_TransformAlignDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, sess := f.open(t)

	if _, err := f.srv.handleUpdateTransform(ctx, call(map[string]any{"elementId": "title", "x": 10.0})); err != nil {
		t.Fatal(err)
	}
	el, _ := sess.Store.Element("title")
	if el.Transform.Position.X != 10 || el.Transform.Position.Y != 60 {
		t.Errorf("x only should move horizontally, got %+v", el.Transform.Position)
	}

	if _, err := f.srv.handleAlignElement(ctx, call(map[string]any{"elementId": "title", "alignment": "center-horizontal"})); err != nil {
		t.Fatal(err)
	}
	el, _ = sess.Store.Element("title")
	if el.Transform.Position.X != (960-640)/2 {
		t.Errorf("expected centered x=160, got %v", el.Transform.Position.X)
	}
	if _, err := f.srv.handleAlignElement(ctx, call(map[string]any{"elementId": "title", "alignment": "diagonal"})); err == nil {
		t.Error("expected unknown alignment to fail")
	}

	res, err := f.srv.handleDuplicateElement(ctx, call(map[string]any{"elementId": "title"}))
	if err != nil {
		t.Fatal(err)
	}
	var dup elementSummary
	json.Unmarshal([]byte(resultText(t, res)), &dup)
	if dup.ID == "title" || dup.X != el.Transform.Position.X+editor.DuplicateOffset {
		t.Errorf("unexpected duplicate %+v", dup)
	}
	if n := len(sess.Store.Elements()); n != 3 {
		t.Errorf("expected 3 elements, got %d", n)
	}

	if _, err := f.srv.handleRemoveElement(ctx, call(map[string]any{"elementId": dup.ID})); err != nil {
		t.Fatal(err)
	}
	if _, ok := sess.Store.Element(dup.ID); ok {
		t.Error("element not removed")
	}
}

func TestTools_SetCanvas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, sess := f.open(t)

	if _, err := f.srv.handleSetCanvas(ctx, call(map[string]any{"width": 1200.0, "color": "#111827"})); err != nil {
		t.Fatal(err)
	}
	c := sess.Store.Snapshot().Canvas
	if c.Width != 1200 || c.Height != 540 {
		t.Errorf("unexpected size %vx%v", c.Width, c.Height)
	}
	if c.Background.Fill.Type != domain.FillSolid || c.Background.Fill.Color != "#111827" {
		t.Errorf("unexpected fill %+v", c.Background.Fill)
	}
	if _, err := f.srv.handleSetCanvas(ctx, call(map[string]any{"width": -5.0})); err == nil {
		t.Error("expected an invalid width to be rejected")
	}
}

func TestTools_ExportInline(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	res, err := f.srv.handleExportSnippet(context.Background(), call(map[string]any{"scale": 0.25}))
	if err != nil {
		t.Fatal(err)
	}
	img, ok := res.Content[0].(mcp.ImageContent)
	if !ok || img.MIMEType != "image/png" || img.Data == "" {
		t.Errorf("expected inline png, got %T", res.Content[0])
	}

	if _, err := f.srv.handleExportSnippet(context.Background(), call(map[string]any{"format": "pdf"})); err == nil {
		t.Error("pdf without a path should fail")
	}
}

func TestTools_ExportToFile(t *testing.T) {
	f := newFixture(t)
	sn, _ := f.open(t)
	path := filepath.Join(t.TempDir(), "out.pdf")

	res, err := f.srv.handleExportSnippet(context.Background(), call(map[string]any{
		"snippetId": sn.ID, "format": "pdf", "path": path, "scale": 1.0,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resultText(t, res), path) {
		t.Errorf("unexpected result %q", resultText(t, res))
	}
}
