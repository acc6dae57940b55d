package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"snippets/internal/autosave"
	"snippets/internal/domain"
	"snippets/internal/localstore"
	"snippets/internal/service"
)

func newEditor(t *testing.T, e *env, delay time.Duration) *service.EditorService {
	t.Helper()
	local, err := localstore.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	svc := service.NewEditorService(e.snippets, local, e.emitter, nil, service.EditorOptions{Delay: delay})
	t.Cleanup(func() { svc.CloseAll(context.Background()) })
	return svc
}

func textEl(id string) domain.Element {
	return domain.Element{
		ID:   id,
		Name: id,
		Transform: domain.Transform{
			Width: 200, Height: 100, MinWidth: 10, MinHeight: 10, Scale: 1,
		},
		Data: &domain.TextData{Value: "hi", Align: domain.TextAlignLeft, Color: "#fff", FontSize: 14},
	}
}

// ─────────────────────────────────────────────────────────────
// EditorService tests
// ─────────────────────────────────────────────────────────────

func TestEditorService_OpenMissingCreatesNoSession(t *testing.T) {
	e := newEnv(t)
	svc := newEditor(t, e, time.Hour)

	_, err := svc.Open(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n := len(svc.List()); n != 0 {
		t.Errorf("expected no sessions, got %d", n)
	}
}

func TestEditorService_EditsAreSaved(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sn, _ := e.snippets.CreateSnippet(ctx, "p1", "", "Demo", "alice")
	svc := newEditor(t, e, 10*time.Millisecond)

	sess, err := svc.Open(ctx, sn.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Store.AddElement(textEl("note")); err != nil {
		t.Fatal(err)
	}
	if err := svc.Flush(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}

	stored, _ := e.snippets.GetSnippet(ctx, sn.ID)
	if len(stored.Data.Elements) != 3 || stored.Data.Elements[0].ID != "note" {
		t.Fatalf("edit not saved: %d elements", len(stored.Data.Elements))
	}
	if sess.Saver.HasUnsavedChanges() {
		t.Error("expected no unsaved changes after flush")
	}

	// The reconcile must not schedule another save.
	time.Sleep(50 * time.Millisecond)
	if n := len(e.emitter.Named(autosave.EventSaved)); n != 1 {
		t.Errorf("expected exactly 1 save, got %d", n)
	}
}

func TestEditorService_SessionsAreIndependent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sn, _ := e.snippets.CreateSnippet(ctx, "p1", "", "Demo", "alice")
	svc := newEditor(t, e, time.Hour)

	a, _ := svc.Open(ctx, sn.ID)
	b, _ := svc.Open(ctx, sn.ID)
	if a.ID == b.ID {
		t.Fatal("sessions share an id")
	}
	_ = a.Store.AddElement(textEl("only-a"))
	if _, ok := b.Store.Element("only-a"); ok {
		t.Error("an edit in one session leaked into another")
	}
}

func TestEditorService_CloseFlushesPending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sn, _ := e.snippets.CreateSnippet(ctx, "p1", "", "Demo", "alice")
	svc := newEditor(t, e, time.Hour)

	sess, _ := svc.Open(ctx, sn.ID)
	sess.Store.RemoveElement(sn.Data.Elements[0].ID)

	if got := svc.UnsavedSessions(); len(got) != 1 || got[0] != sess.ID {
		t.Fatalf("expected the session to be unsaved, got %v", got)
	}
	asked := ""
	if svc.ConfirmExit(func(msg string) bool { asked = msg; return false }) {
		t.Error("exit must not be confirmed when the user declines")
	}
	if asked == "" {
		t.Error("expected a confirmation prompt")
	}

	if err := svc.Close(ctx, sess.ID, nil); err != nil {
		t.Fatal(err)
	}
	stored, _ := e.snippets.GetSnippet(ctx, sn.ID)
	if len(stored.Data.Elements) != 1 {
		t.Errorf("pending removal not saved on close: %d elements", len(stored.Data.Elements))
	}
	if _, err := svc.Get(sess.ID); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if !svc.ConfirmExit(func(string) bool { return false }) {
		t.Error("exit should be free with no sessions")
	}
}

// failingRemote reads through to the snippet service and refuses writes.
type failingRemote struct {
	*service.SnippetService
}

var errRemoteDown = errors.New("remote down")

func (failingRemote) UpdateSnippet(context.Context, string, domain.DocumentPatch) (*domain.Snippet, error) {
	return nil, errRemoteDown
}

func newFailingEditor(t *testing.T, e *env) (*service.EditorService, *localstore.Store) {
	t.Helper()
	local, err := localstore.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return service.NewEditorService(failingRemote{e.snippets}, local, e.emitter, nil, service.EditorOptions{Delay: time.Hour}), local
}

func TestEditorService_CloseKeepsSessionWhenSaveFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sn, _ := e.snippets.CreateSnippet(ctx, "p1", "", "Demo", "alice")
	svc, _ := newFailingEditor(t, e)

	sess, err := svc.Open(ctx, sn.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Store.AddElement(textEl("added")); err != nil {
		t.Fatal(err)
	}

	err = svc.Close(ctx, sess.ID, nil)
	if !errors.Is(err, service.ErrUnsavedChanges) || !errors.Is(err, errRemoteDown) {
		t.Fatalf("expected ErrUnsavedChanges wrapping the save error, got %v", err)
	}
	if got := svc.UnsavedSessions(); len(got) != 1 || got[0] != sess.ID {
		t.Fatalf("session with unsaved edits must stay open, got %v", got)
	}
	if _, ok := sess.Store.Element("added"); !ok {
		t.Fatal("edit lost after a refused close")
	}

	err = svc.Close(ctx, sess.ID, func(string) bool { return false })
	if !errors.Is(err, service.ErrUnsavedChanges) {
		t.Fatalf("declined confirmation must keep the session, got %v", err)
	}

	if err := svc.CloseAll(ctx); !errors.Is(err, service.ErrUnsavedChanges) {
		t.Fatalf("CloseAll should report the unsaved session, got %v", err)
	}
	if n := len(svc.List()); n != 1 {
		t.Fatalf("expected the session to survive CloseAll, got %d", n)
	}

	asked := ""
	if err := svc.Close(ctx, sess.ID, func(msg string) bool { asked = msg; return true }); err != nil {
		t.Fatalf("confirmed close should succeed, got %v", err)
	}
	if asked == "" {
		t.Error("expected a confirmation prompt")
	}
	if _, err := svc.Get(sess.ID); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestEditorService_ReapIdleSkipsUnsaved(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sn, _ := e.snippets.CreateSnippet(ctx, "p1", "", "Demo", "alice")
	svc, _ := newFailingEditor(t, e)

	sess, _ := svc.Open(ctx, sn.ID)
	if err := sess.Store.AddElement(textEl("added")); err != nil {
		t.Fatal(err)
	}
	_ = svc.Flush(ctx, sess.ID)

	time.Sleep(5 * time.Millisecond)
	if n := svc.ReapIdle(ctx, time.Millisecond); n != 0 {
		t.Errorf("session with unsaved edits reaped: %d", n)
	}
	if n := len(svc.List()); n != 1 {
		t.Errorf("expected the session to stay open, got %d", n)
	}
}

func TestEditorService_RecoverUnsaved(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sn, _ := e.snippets.CreateSnippet(ctx, "p1", "", "Demo", "alice")
	svc, local := newFailingEditor(t, e)

	sess, _ := svc.Open(ctx, sn.ID)
	if err := sess.Store.AddElement(textEl("added")); err != nil {
		t.Fatal(err)
	}
	if err := svc.CloseAll(ctx); err == nil {
		t.Fatal("expected CloseAll to fail")
	}

	keys, err := svc.RecoverUnsaved(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := service.RecoveryKey(sess.ID)
	if len(keys) != 1 || keys[0] != want {
		t.Fatalf("expected [%s], got %v", want, keys)
	}
	doc, err := local.Load(want)
	if err != nil || doc == nil {
		t.Fatalf("recovered document missing: %v", err)
	}
	found := false
	for _, el := range doc.Elements {
		if el.ID == "added" {
			found = true
		}
	}
	if !found {
		t.Error("recovered document lacks the unsaved edit")
	}
	if n := len(svc.List()); n != 0 {
		t.Errorf("recovered sessions should be closed, got %d", n)
	}
}

func TestEditorService_ViewStateIsNotSaved(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sn, _ := e.snippets.CreateSnippet(ctx, "p1", "", "Demo", "alice")
	svc := newEditor(t, e, time.Hour)

	sess, _ := svc.Open(ctx, sn.ID)
	sess.Store.SetZoom(2)
	sess.Store.SetSelectedElement(sn.Data.Elements[0].ID)
	if sess.Saver.HasUnsavedChanges() {
		t.Error("view-state changes must not schedule a save")
	}
}

func TestEditorService_ReapIdle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sn, _ := e.snippets.CreateSnippet(ctx, "p1", "", "Demo", "alice")
	svc := newEditor(t, e, time.Hour)

	_, _ = svc.Open(ctx, sn.ID)
	if n := svc.ReapIdle(ctx, time.Hour); n != 0 {
		t.Errorf("fresh session reaped: %d", n)
	}
	time.Sleep(5 * time.Millisecond)
	if n := svc.ReapIdle(ctx, time.Millisecond); n != 1 {
		t.Errorf("expected 1 reaped session, got %d", n)
	}
	if n := len(svc.List()); n != 0 {
		t.Errorf("expected no sessions left, got %d", n)
	}
}

func TestEditorService_LocalSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	local, err := localstore.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	svc := service.NewEditorService(e.snippets, local, e.emitter, nil, service.EditorOptions{Delay: 10 * time.Millisecond})
	defer svc.CloseAll(ctx)

	sess, err := svc.OpenLocal(ctx, "scratch")
	if err != nil {
		t.Fatal(err)
	}
	if sess.Mode != service.ModeLocal {
		t.Errorf("expected local mode, got %q", sess.Mode)
	}
	if got := sess.Store.Snapshot(); len(got.Elements) != len(domain.DefaultDocument().Elements) {
		t.Fatalf("missing local document should start from the template")
	}

	width := 500.0
	if err := sess.Store.SetCanvas(domain.CanvasPatch{Width: &width}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Flush(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}
	doc, err := local.Load("scratch")
	if err != nil || doc == nil {
		t.Fatalf("local document not written: %v", err)
	}
	if doc.Canvas.Width != 500 {
		t.Errorf("expected width 500, got %v", doc.Canvas.Width)
	}
}

func TestEditorService_OpenLocalWithoutStore(t *testing.T) {
	e := newEnv(t)
	svc := service.NewEditorService(e.snippets, nil, nil, nil, service.EditorOptions{})
	if _, err := svc.OpenLocal(context.Background(), "x"); err == nil {
		t.Fatal("expected error without a local store")
	}
}
