package storage

import (
	"context"
	"fmt"

	"snippets/internal/domain"
)

// ProjectStore implements domain.ProjectStore for projects and their folders.
type ProjectStore struct {
	db *DB
}

func NewProjectStore(db *DB) *ProjectStore {
	return &ProjectStore{db: db}
}

func (s *ProjectStore) CreateProject(ctx context.Context, p *domain.Project) error {
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	_, err := s.db.exec(ctx,
		`INSERT INTO projects (id, workspace_id, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.WorkspaceID, p.Name, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *ProjectStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	p := &domain.Project{}
	err := s.db.queryRow(ctx,
		`SELECT id, workspace_id, name, created_at, updated_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return p, nil
}

func (s *ProjectStore) ListProjects(ctx context.Context, workspaceID string) ([]domain.Project, error) {
	rows, err := s.db.query(ctx,
		`SELECT id, workspace_id, name, created_at, updated_at FROM projects WHERE workspace_id = ? ORDER BY name ASC`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *ProjectStore) UpdateProject(ctx context.Context, p *domain.Project) error {
	p.UpdatedAt = now()
	_, err := s.db.exec(ctx,
		`UPDATE projects SET name = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

func (s *ProjectStore) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.db.exec(ctx, `DELETE FROM folders WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("delete folders: %w", err)
	}
	if _, err := s.db.exec(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// ── Folders ─────────────────────────────────────────────────

func (s *ProjectStore) CreateFolder(ctx context.Context, f *domain.Folder) error {
	f.CreatedAt = now()
	f.UpdatedAt = f.CreatedAt
	_, err := s.db.exec(ctx,
		`INSERT INTO folders (id, project_id, parent_id, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.ProjectID, f.ParentID, f.Name, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert folder: %w", err)
	}
	return nil
}

func (s *ProjectStore) GetFolder(ctx context.Context, id string) (*domain.Folder, error) {
	f := &domain.Folder{}
	err := s.db.queryRow(ctx,
		`SELECT id, project_id, parent_id, name, created_at, updated_at FROM folders WHERE id = ?`, id,
	).Scan(&f.ID, &f.ProjectID, &f.ParentID, &f.Name, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "folder", id)
	}
	return f, nil
}

func (s *ProjectStore) ListFolders(ctx context.Context, projectID string) ([]domain.Folder, error) {
	rows, err := s.db.query(ctx,
		`SELECT id, project_id, parent_id, name, created_at, updated_at FROM folders WHERE project_id = ? ORDER BY name ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var out []domain.Folder
	for rows.Next() {
		var f domain.Folder
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.ParentID, &f.Name, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *ProjectStore) UpdateFolder(ctx context.Context, f *domain.Folder) error {
	f.UpdatedAt = now()
	_, err := s.db.exec(ctx,
		`UPDATE folders SET parent_id = ?, name = ?, updated_at = ? WHERE id = ?`,
		f.ParentID, f.Name, f.UpdatedAt, f.ID,
	)
	if err != nil {
		return fmt.Errorf("update folder: %w", err)
	}
	return nil
}

// DeleteFolder removes the folder and moves its subfolders to its parent.
// Snippets are reparented by the caller, since they may live in another
// backend.
func (s *ProjectStore) DeleteFolder(ctx context.Context, id string) error {
	f, err := s.GetFolder(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.exec(ctx, `UPDATE folders SET parent_id = ? WHERE parent_id = ?`, f.ParentID, id); err != nil {
		return fmt.Errorf("reparent folders: %w", err)
	}
	if _, err := s.db.exec(ctx, `DELETE FROM folders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	return nil
}
