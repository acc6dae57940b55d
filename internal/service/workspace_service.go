package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"snippets/internal/domain"

	"github.com/google/uuid"
)

// ─────────────────────────────────────────────────────────────
// Workspace Service — workspaces, members, projects, folders
// ─────────────────────────────────────────────────────────────

var ErrNameRequired = errors.New("name is required")

// WorkspaceService manages the hierarchy above snippets. Deletes cascade
// downwards through SnippetService so stars and history go too.
type WorkspaceService struct {
	workspaces domain.WorkspaceStore
	projects   domain.ProjectStore
	snippets   *SnippetService
}

func NewWorkspaceService(workspaces domain.WorkspaceStore, projects domain.ProjectStore, snippets *SnippetService) *WorkspaceService {
	return &WorkspaceService{workspaces: workspaces, projects: projects, snippets: snippets}
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}
	return name, nil
}

// ── Workspaces ──────────────────────────────────────────────

// CreateWorkspace creates a workspace owned by ownerID, who is also added
// as its first member.
func (s *WorkspaceService) CreateWorkspace(ctx context.Context, name, ownerID string) (*domain.Workspace, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	w := &domain.Workspace{ID: uuid.NewString(), Name: name, OwnerID: ownerID}
	if err := s.workspaces.CreateWorkspace(ctx, w); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	if ownerID != "" {
		m := &domain.Member{WorkspaceID: w.ID, UserID: ownerID, Role: domain.RoleOwner}
		if err := s.workspaces.AddMember(ctx, m); err != nil {
			return nil, fmt.Errorf("add owner: %w", err)
		}
	}
	return w, nil
}

func (s *WorkspaceService) GetWorkspace(ctx context.Context, id string) (*domain.Workspace, error) {
	return s.workspaces.GetWorkspace(ctx, id)
}

// ListWorkspaces returns the workspaces userID owns or belongs to; an
// empty userID lists all.
func (s *WorkspaceService) ListWorkspaces(ctx context.Context, userID string) ([]domain.Workspace, error) {
	return s.workspaces.ListWorkspaces(ctx, userID)
}

func (s *WorkspaceService) RenameWorkspace(ctx context.Context, id, name string) (*domain.Workspace, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	w, err := s.workspaces.GetWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}
	w.Name = name
	if err := s.workspaces.UpdateWorkspace(ctx, w); err != nil {
		return nil, fmt.Errorf("rename workspace: %w", err)
	}
	return w, nil
}

// DeleteWorkspace removes the workspace and everything below it.
func (s *WorkspaceService) DeleteWorkspace(ctx context.Context, id string) error {
	projects, err := s.projects.ListProjects(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range projects {
		if err := s.DeleteProject(ctx, p.ID); err != nil {
			return err
		}
	}
	return s.workspaces.DeleteWorkspace(ctx, id)
}

// ── Members ─────────────────────────────────────────────────

func (s *WorkspaceService) AddMember(ctx context.Context, workspaceID, userID string, role domain.MemberRole) (*domain.Member, error) {
	switch role {
	case domain.RoleOwner, domain.RoleEditor, domain.RoleViewer:
	case "":
		role = domain.RoleEditor
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if _, err := s.workspaces.GetWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}
	m := &domain.Member{WorkspaceID: workspaceID, UserID: userID, Role: role}
	if err := s.workspaces.AddMember(ctx, m); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return m, nil
}

func (s *WorkspaceService) ListMembers(ctx context.Context, workspaceID string) ([]domain.Member, error) {
	return s.workspaces.ListMembers(ctx, workspaceID)
}

func (s *WorkspaceService) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	return s.workspaces.RemoveMember(ctx, workspaceID, userID)
}

// ── Projects ────────────────────────────────────────────────

func (s *WorkspaceService) CreateProject(ctx context.Context, workspaceID, name string) (*domain.Project, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if _, err := s.workspaces.GetWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}
	p := &domain.Project{ID: uuid.NewString(), WorkspaceID: workspaceID, Name: name}
	if err := s.projects.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

func (s *WorkspaceService) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return s.projects.GetProject(ctx, id)
}

func (s *WorkspaceService) ListProjects(ctx context.Context, workspaceID string) ([]domain.Project, error) {
	return s.projects.ListProjects(ctx, workspaceID)
}

func (s *WorkspaceService) RenameProject(ctx context.Context, id, name string) (*domain.Project, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	p, err := s.projects.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = name
	if err := s.projects.UpdateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("rename project: %w", err)
	}
	return p, nil
}

// DeleteProject removes the project, its folders and its snippets.
func (s *WorkspaceService) DeleteProject(ctx context.Context, id string) error {
	snippets, err := s.snippets.ListSnippets(ctx, id)
	if err != nil {
		return err
	}
	for _, sn := range snippets {
		if err := s.snippets.DeleteSnippet(ctx, sn.ID); err != nil {
			return fmt.Errorf("delete snippet %s: %w", sn.ID, err)
		}
	}
	return s.projects.DeleteProject(ctx, id)
}

// ── Folders ─────────────────────────────────────────────────

// CreateFolder creates a folder under parentID, or at the project root
// when parentID is empty. The parent must belong to the same project.
func (s *WorkspaceService) CreateFolder(ctx context.Context, projectID, parentID, name string) (*domain.Folder, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if parentID != "" {
		parent, err := s.projects.GetFolder(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if parent.ProjectID != projectID {
			return nil, fmt.Errorf("folder %s is in another project", parentID)
		}
	}
	f := &domain.Folder{ID: uuid.NewString(), ProjectID: projectID, ParentID: parentID, Name: name}
	if err := s.projects.CreateFolder(ctx, f); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	return f, nil
}

func (s *WorkspaceService) ListFolders(ctx context.Context, projectID string) ([]domain.Folder, error) {
	return s.projects.ListFolders(ctx, projectID)
}

func (s *WorkspaceService) RenameFolder(ctx context.Context, id, name string) (*domain.Folder, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	f, err := s.projects.GetFolder(ctx, id)
	if err != nil {
		return nil, err
	}
	f.Name = name
	if err := s.projects.UpdateFolder(ctx, f); err != nil {
		return nil, fmt.Errorf("rename folder: %w", err)
	}
	return f, nil
}

// DeleteFolder removes a folder. Its subfolders and snippets move up to
// the folder's parent.
func (s *WorkspaceService) DeleteFolder(ctx context.Context, id string) error {
	f, err := s.projects.GetFolder(ctx, id)
	if err != nil {
		return err
	}
	snippets, err := s.snippets.ListSnippets(ctx, f.ProjectID)
	if err != nil {
		return err
	}
	for _, sn := range snippets {
		if sn.FolderID != id {
			continue
		}
		if _, err := s.snippets.MoveSnippet(ctx, sn.ID, f.ParentID); err != nil {
			return fmt.Errorf("move snippet %s: %w", sn.ID, err)
		}
	}
	return s.projects.DeleteFolder(ctx, id)
}
