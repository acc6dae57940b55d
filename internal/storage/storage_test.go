package storage_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"snippets/internal/domain"
	"snippets/internal/storage"
)

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// ─────────────────────────────────────────────────────────────
// DB / DSN
// ─────────────────────────────────────────────────────────────

func TestOpen_MigrationsAreRerunnable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	db, err := storage.OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()
	db, err = storage.OpenSQLite(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	db.Close()
}

func TestDSN(t *testing.T) {
	tests := []struct {
		opts storage.Options
		want string
	}{
		{storage.Options{Driver: "mysql", Host: "db", Username: "u", Password: "p", Database: "snip"},
			"u:p@tcp(db:3306)/snip?parseTime=true&charset=utf8mb4"},
		{storage.Options{Driver: "postgres", Host: "pg", Port: 6543, Username: "u", Password: "p", Database: "snip"},
			"host=pg port=6543 user=u password=p dbname=snip sslmode=disable"},
	}
	for _, tt := range tests {
		got, err := storage.DSN(tt.opts)
		if err != nil {
			t.Fatalf("%s: %v", tt.opts.Driver, err)
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.opts.Driver, got, tt.want)
		}
	}

	if _, err := storage.DSN(storage.Options{Driver: "oracle"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
	got, _ := storage.DSN(storage.Options{Driver: "sqlite", Path: "/tmp/x.db"})
	if !strings.HasPrefix(got, "/tmp/x.db?") {
		t.Errorf("unexpected sqlite dsn %q", got)
	}
}

// ─────────────────────────────────────────────────────────────
// Workspaces / members
// ─────────────────────────────────────────────────────────────

func TestWorkspaceStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := storage.NewWorkspaceStore(openDB(t))

	w := &domain.Workspace{ID: "w1", Name: "Team", OwnerID: "alice"}
	if err := s.CreateWorkspace(ctx, w); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.GetWorkspace(ctx, "w1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Team" || !got.CreatedAt.Equal(w.CreatedAt) {
		t.Errorf("unexpected workspace %+v", got)
	}

	w.Name = "Renamed"
	if err := s.UpdateWorkspace(ctx, w); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetWorkspace(ctx, "w1")
	if got.Name != "Renamed" {
		t.Errorf("rename not stored: %q", got.Name)
	}

	if err := s.DeleteWorkspace(ctx, "w1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetWorkspace(ctx, "w1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWorkspaceStore_MembersAndListing(t *testing.T) {
	ctx := context.Background()
	s := storage.NewWorkspaceStore(openDB(t))

	_ = s.CreateWorkspace(ctx, &domain.Workspace{ID: "mine", Name: "Mine", OwnerID: "alice"})
	_ = s.CreateWorkspace(ctx, &domain.Workspace{ID: "shared", Name: "Shared", OwnerID: "bob"})
	_ = s.CreateWorkspace(ctx, &domain.Workspace{ID: "other", Name: "Other", OwnerID: "carol"})

	if err := s.AddMember(ctx, &domain.Member{WorkspaceID: "shared", UserID: "alice", Role: domain.RoleViewer}); err != nil {
		t.Fatal(err)
	}
	// Re-adding replaces the role.
	if err := s.AddMember(ctx, &domain.Member{WorkspaceID: "shared", UserID: "alice", Role: domain.RoleEditor}); err != nil {
		t.Fatal(err)
	}
	members, err := s.ListMembers(ctx, "shared")
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].Role != domain.RoleEditor {
		t.Fatalf("unexpected members %+v", members)
	}

	list, err := s.ListWorkspaces(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 workspaces for alice, got %d", len(list))
	}
	all, _ := s.ListWorkspaces(ctx, "")
	if len(all) != 3 {
		t.Errorf("expected 3 workspaces total, got %d", len(all))
	}

	if err := s.RemoveMember(ctx, "shared", "alice"); err != nil {
		t.Fatal(err)
	}
	list, _ = s.ListWorkspaces(ctx, "alice")
	if len(list) != 1 {
		t.Errorf("expected 1 workspace after removal, got %d", len(list))
	}
}

// ─────────────────────────────────────────────────────────────
// Projects / folders
// ─────────────────────────────────────────────────────────────

func TestProjectStore_Folders(t *testing.T) {
	ctx := context.Background()
	s := storage.NewProjectStore(openDB(t))

	if err := s.CreateProject(ctx, &domain.Project{ID: "p1", WorkspaceID: "w1", Name: "Site"}); err != nil {
		t.Fatal(err)
	}
	_ = s.CreateFolder(ctx, &domain.Folder{ID: "root", ProjectID: "p1", Name: "Root"})
	_ = s.CreateFolder(ctx, &domain.Folder{ID: "child", ProjectID: "p1", ParentID: "root", Name: "Child"})

	if err := s.DeleteFolder(ctx, "root"); err != nil {
		t.Fatal(err)
	}
	child, err := s.GetFolder(ctx, "child")
	if err != nil {
		t.Fatal(err)
	}
	if child.ParentID != "" {
		t.Errorf("child should move to project root, got parent %q", child.ParentID)
	}

	folders, _ := s.ListFolders(ctx, "p1")
	if len(folders) != 1 {
		t.Errorf("expected 1 folder, got %d", len(folders))
	}

	if err := s.DeleteProject(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetProject(ctx, "p1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if folders, _ := s.ListFolders(ctx, "p1"); len(folders) != 0 {
		t.Errorf("folders should go with the project, got %d", len(folders))
	}
}

// ─────────────────────────────────────────────────────────────
// Snippets
// ─────────────────────────────────────────────────────────────

func TestSnippetStore_DocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := storage.NewSnippetStore(openDB(t))

	sn := &domain.Snippet{ID: "s1", ProjectID: "p1", Name: "Hello", Data: domain.DefaultDocument(), CreatedBy: "alice"}
	if err := s.CreateSnippet(ctx, sn); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetSnippet(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Data.Elements) != 2 || got.Data.Elements[0].Type() != domain.ElementTypeCodeEditor {
		t.Fatalf("document not restored: %+v", got.Data)
	}

	got.Data.Canvas.Width = 777
	got.FolderID = "f1"
	if err := s.UpdateSnippet(ctx, got); err != nil {
		t.Fatal(err)
	}
	list, err := s.ListSnippets(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Data.Canvas.Width != 777 || list[0].FolderID != "f1" {
		t.Errorf("update not listed: %+v", list)
	}

	if err := s.DeleteSnippet(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetSnippet(ctx, "s1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStarStore(t *testing.T) {
	ctx := context.Background()
	s := storage.NewStarStore(openDB(t))

	for i := 0; i < 2; i++ {
		if err := s.Star(ctx, "alice", "s1"); err != nil {
			t.Fatalf("star %d: %v", i, err)
		}
	}
	_ = s.Star(ctx, "bob", "s1")

	n, err := s.CountStars(ctx, "s1")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 stars, got %d (%v)", n, err)
	}
	starred, _ := s.ListStarred(ctx, "alice")
	if len(starred) != 1 || starred[0].SnippetID != "s1" {
		t.Errorf("unexpected starred %+v", starred)
	}

	_ = s.Unstar(ctx, "alice", "s1")
	if n, _ := s.CountStars(ctx, "s1"); n != 1 {
		t.Errorf("expected 1 star after unstar, got %d", n)
	}
	_ = s.DeleteStarsBySnippet(ctx, "s1")
	if n, _ := s.CountStars(ctx, "s1"); n != 0 {
		t.Errorf("expected 0 stars, got %d", n)
	}
}

// ─────────────────────────────────────────────────────────────
// Revisions
// ─────────────────────────────────────────────────────────────

func TestRevisionStore_PrunesToMax(t *testing.T) {
	ctx := context.Background()
	s := storage.NewRevisionStore(openDB(t))
	base := time.Now()

	for i := 0; i < storage.MaxRevisions+5; i++ {
		r := &domain.Revision{
			ID:        fmt.Sprintf("r%02d", i),
			SnippetID: "s1",
			PatchJSON: "[]",
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}
		if err := s.RecordRevision(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	revs, err := s.ListRevisions(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != storage.MaxRevisions {
		t.Fatalf("expected %d revisions, got %d", storage.MaxRevisions, len(revs))
	}
	if revs[0].ID != fmt.Sprintf("r%02d", storage.MaxRevisions+4) {
		t.Errorf("newest should come first, got %s", revs[0].ID)
	}
	if revs[len(revs)-1].ID != "r05" {
		t.Errorf("oldest kept should be r05, got %s", revs[len(revs)-1].ID)
	}
}

func TestRevisionStore_PruneAll(t *testing.T) {
	ctx := context.Background()
	s := storage.NewRevisionStore(openDB(t))
	for _, sid := range []string{"a", "b"} {
		for i := 0; i < 5; i++ {
			_ = s.RecordRevision(ctx, &domain.Revision{ID: fmt.Sprintf("%s%d", sid, i), SnippetID: sid, PatchJSON: "[]"})
		}
	}
	n, err := s.PruneRevisions(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 {
		t.Errorf("expected 6 deleted, got %d", n)
	}
	if revs, _ := s.ListRevisions(ctx, "a"); len(revs) != 2 {
		t.Errorf("expected 2 left for a, got %d", len(revs))
	}
	_ = s.DeleteRevisions(ctx, "b")
	if revs, _ := s.ListRevisions(ctx, "b"); len(revs) != 0 {
		t.Errorf("expected none left for b, got %d", len(revs))
	}
}
