package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"snippets/internal/domain"
	"snippets/internal/service"
)

// ─────────────────────────────────────────────────────────────
// SnippetService tests
// ─────────────────────────────────────────────────────────────

func TestSnippetService_CreateSeedsDefaultTemplate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	sn, err := e.snippets.CreateSnippet(ctx, "p1", "", "  ", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if sn.Name != "Untitled" {
		t.Errorf("expected default name, got %q", sn.Name)
	}
	want := domain.DefaultDocument()
	if len(sn.Data.Elements) != len(want.Elements) || sn.Data.Canvas.Width != want.Canvas.Width {
		t.Errorf("snippet not seeded from template: %+v", sn.Data)
	}
	if n := len(e.emitter.Named(service.EventSnippetCreated)); n != 1 {
		t.Errorf("expected 1 created event, got %d", n)
	}
}

func TestSnippetService_UpdateMergesAndRecordsRevision(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sn, _ := e.snippets.CreateSnippet(ctx, "p1", "", "Demo", "alice")

	canvas := sn.Data.Canvas
	canvas.Width = 1200
	got, err := e.snippets.UpdateSnippet(ctx, sn.ID, domain.DocumentPatch{Canvas: &canvas})
	if err != nil {
		t.Fatal(err)
	}
	if got.Data.Canvas.Width != 1200 {
		t.Errorf("canvas not updated: %v", got.Data.Canvas.Width)
	}
	if len(got.Data.Elements) != len(sn.Data.Elements) {
		t.Errorf("absent elements field should be kept, got %d elements", len(got.Data.Elements))
	}

	revs, err := e.snippets.ListRevisions(ctx, sn.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != 1 {
		t.Fatalf("expected 1 revision, got %d", len(revs))
	}
	var ops []map[string]any
	if err := json.Unmarshal([]byte(revs[0].PatchJSON), &ops); err != nil {
		t.Fatalf("revision is not a JSON patch: %v", err)
	}
	if len(ops) != 1 || ops[0]["path"] != "/canvas/width" || ops[0]["op"] != "replace" {
		t.Errorf("unexpected patch %s", revs[0].PatchJSON)
	}
}

func TestSnippetService_UpdateRejectsInvalidDocument(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sn, _ := e.snippets.CreateSnippet(ctx, "p1", "", "Demo", "alice")

	dup := []domain.Element{sn.Data.Elements[0], sn.Data.Elements[0]}
	_, err := e.snippets.UpdateSnippet(ctx, sn.ID, domain.DocumentPatch{Elements: dup})
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
	stored, _ := e.snippets.GetSnippet(ctx, sn.ID)
	if len(stored.Data.Elements) != len(sn.Data.Elements) {
		t.Error("invalid update must not be stored")
	}
	if revs, _ := e.snippets.ListRevisions(ctx, sn.ID); len(revs) != 0 {
		t.Errorf("expected no revisions, got %d", len(revs))
	}
}

func TestSnippetService_UpdateMissing(t *testing.T) {
	e := newEnv(t)
	_, err := e.snippets.UpdateSnippet(context.Background(), "nope", domain.DocumentPatch{Elements: []domain.Element{}})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSnippetService_RenameMoveDuplicate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sn, _ := e.snippets.CreateSnippet(ctx, "p1", "", "Demo", "alice")

	if _, err := e.snippets.RenameSnippet(ctx, sn.ID, " "); err == nil {
		t.Error("expected error for blank name")
	}
	if _, err := e.snippets.RenameSnippet(ctx, sn.ID, "Renamed"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.snippets.MoveSnippet(ctx, sn.ID, "f1"); err != nil {
		t.Fatal(err)
	}
	cp, err := e.snippets.DuplicateSnippet(ctx, sn.ID, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if cp.ID == sn.ID || cp.Name != "Renamed (copy)" || cp.FolderID != "f1" || cp.CreatedBy != "bob" {
		t.Errorf("unexpected copy %+v", cp)
	}
	list, _ := e.snippets.ListSnippets(ctx, "p1")
	if len(list) != 2 {
		t.Errorf("expected 2 snippets, got %d", len(list))
	}
}

func TestSnippetService_DeleteRemovesStarsAndHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sn, _ := e.snippets.CreateSnippet(ctx, "p1", "", "Demo", "alice")

	if err := e.snippets.Star(ctx, "alice", sn.ID); err != nil {
		t.Fatal(err)
	}
	canvas := sn.Data.Canvas
	canvas.Padding = 8
	if _, err := e.snippets.UpdateSnippet(ctx, sn.ID, domain.DocumentPatch{Canvas: &canvas}); err != nil {
		t.Fatal(err)
	}

	if err := e.snippets.DeleteSnippet(ctx, sn.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.snippets.GetSnippet(ctx, sn.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if n, _ := e.snippets.CountStars(ctx, sn.ID); n != 0 {
		t.Errorf("expected stars removed, got %d", n)
	}
	if revs, _ := e.revisions.ListRevisions(ctx, sn.ID); len(revs) != 0 {
		t.Errorf("expected history removed, got %d", len(revs))
	}
	if n := len(e.emitter.Named(service.EventSnippetDeleted)); n != 1 {
		t.Errorf("expected 1 deleted event, got %d", n)
	}
}

func TestSnippetService_StarRequiresSnippet(t *testing.T) {
	e := newEnv(t)
	if err := e.snippets.Star(context.Background(), "alice", "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDiffDocuments(t *testing.T) {
	prev := domain.DefaultDocument()
	if got, err := service.DiffDocuments(prev, prev.Clone()); err != nil || got != "" {
		t.Fatalf("equal documents: got %q, %v", got, err)
	}

	next := prev.Clone()
	next.Elements = next.Elements[1:]
	got, err := service.DiffDocuments(prev, next)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, `"/elements/`) {
		t.Errorf("expected an elements operation, got %s", got)
	}
}
