package service_test

import (
	"context"
	"errors"
	"testing"

	"snippets/internal/domain"
	"snippets/internal/service"
)

// ─────────────────────────────────────────────────────────────
// WorkspaceService tests
// ─────────────────────────────────────────────────────────────

func TestWorkspaceService_OwnerIsMember(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.workspaces.CreateWorkspace(ctx, "", "alice"); !errors.Is(err, service.ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	w, err := e.workspaces.CreateWorkspace(ctx, "Team", "alice")
	if err != nil {
		t.Fatal(err)
	}
	members, _ := e.workspaces.ListMembers(ctx, w.ID)
	if len(members) != 1 || members[0].UserID != "alice" || members[0].Role != domain.RoleOwner {
		t.Errorf("unexpected members %+v", members)
	}

	if _, err := e.workspaces.AddMember(ctx, w.ID, "bob", "admin"); err == nil {
		t.Error("expected error for unknown role")
	}
	m, err := e.workspaces.AddMember(ctx, w.ID, "bob", "")
	if err != nil {
		t.Fatal(err)
	}
	if m.Role != domain.RoleEditor {
		t.Errorf("expected default editor role, got %q", m.Role)
	}
	list, _ := e.workspaces.ListWorkspaces(ctx, "bob")
	if len(list) != 1 {
		t.Errorf("expected bob to see 1 workspace, got %d", len(list))
	}
}

func TestWorkspaceService_CreateProjectRequiresWorkspace(t *testing.T) {
	e := newEnv(t)
	if _, err := e.workspaces.CreateProject(context.Background(), "ghost", "Site"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWorkspaceService_FolderParentMustShareProject(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w, _ := e.workspaces.CreateWorkspace(ctx, "Team", "alice")
	p1, _ := e.workspaces.CreateProject(ctx, w.ID, "One")
	p2, _ := e.workspaces.CreateProject(ctx, w.ID, "Two")

	f, err := e.workspaces.CreateFolder(ctx, p1.ID, "", "Root")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.workspaces.CreateFolder(ctx, p2.ID, f.ID, "Stray"); err == nil {
		t.Error("expected error for a parent in another project")
	}
}

func TestWorkspaceService_DeleteFolderReparentsSnippets(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w, _ := e.workspaces.CreateWorkspace(ctx, "Team", "alice")
	p, _ := e.workspaces.CreateProject(ctx, w.ID, "Site")
	outer, _ := e.workspaces.CreateFolder(ctx, p.ID, "", "Outer")
	inner, _ := e.workspaces.CreateFolder(ctx, p.ID, outer.ID, "Inner")

	sn, _ := e.snippets.CreateSnippet(ctx, p.ID, inner.ID, "Deep", "alice")
	other, _ := e.snippets.CreateSnippet(ctx, p.ID, "", "Top", "alice")

	if err := e.workspaces.DeleteFolder(ctx, inner.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := e.snippets.GetSnippet(ctx, sn.ID)
	if got.FolderID != outer.ID {
		t.Errorf("snippet should move to parent folder, got %q", got.FolderID)
	}
	got, _ = e.snippets.GetSnippet(ctx, other.ID)
	if got.FolderID != "" {
		t.Errorf("unrelated snippet moved to %q", got.FolderID)
	}
}

func TestWorkspaceService_DeleteWorkspaceCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w, _ := e.workspaces.CreateWorkspace(ctx, "Team", "alice")
	p, _ := e.workspaces.CreateProject(ctx, w.ID, "Site")
	sn, _ := e.snippets.CreateSnippet(ctx, p.ID, "", "Demo", "alice")
	_ = e.snippets.Star(ctx, "alice", sn.ID)

	if err := e.workspaces.DeleteWorkspace(ctx, w.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.workspaces.GetProject(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("project should be gone, got %v", err)
	}
	if _, err := e.snippets.GetSnippet(ctx, sn.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("snippet should be gone, got %v", err)
	}
	if n, _ := e.snippets.CountStars(ctx, sn.ID); n != 0 {
		t.Errorf("stars should be gone, got %d", n)
	}
}

func TestWorkspaceService_Rename(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w, _ := e.workspaces.CreateWorkspace(ctx, "Team", "alice")
	p, _ := e.workspaces.CreateProject(ctx, w.ID, "Site")
	f, _ := e.workspaces.CreateFolder(ctx, p.ID, "", "Old")

	if _, err := e.workspaces.RenameWorkspace(ctx, w.ID, "Crew"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.workspaces.RenameProject(ctx, p.ID, "App"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.workspaces.RenameFolder(ctx, f.ID, "New"); err != nil {
		t.Fatal(err)
	}
	got, _ := e.workspaces.GetWorkspace(ctx, w.ID)
	if got.Name != "Crew" {
		t.Errorf("workspace rename lost: %q", got.Name)
	}
	folders, _ := e.workspaces.ListFolders(ctx, p.ID)
	if len(folders) != 1 || folders[0].Name != "New" {
		t.Errorf("folder rename lost: %+v", folders)
	}
}
