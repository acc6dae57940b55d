package storage

import (
	"context"
	"fmt"
	"time"

	"snippets/internal/domain"
)

// now returns the current time at the precision every supported dialect
// stores, so values read back compare equal to the ones written.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// WorkspaceStore implements domain.WorkspaceStore.
type WorkspaceStore struct {
	db *DB
}

func NewWorkspaceStore(db *DB) *WorkspaceStore {
	return &WorkspaceStore{db: db}
}

func (s *WorkspaceStore) CreateWorkspace(ctx context.Context, w *domain.Workspace) error {
	w.CreatedAt = now()
	w.UpdatedAt = w.CreatedAt
	_, err := s.db.exec(ctx,
		`INSERT INTO workspaces (id, name, owner_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		w.ID, w.Name, w.OwnerID, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) GetWorkspace(ctx context.Context, id string) (*domain.Workspace, error) {
	w := &domain.Workspace{}
	err := s.db.queryRow(ctx,
		`SELECT id, name, owner_id, created_at, updated_at FROM workspaces WHERE id = ?`, id,
	).Scan(&w.ID, &w.Name, &w.OwnerID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "workspace", id)
	}
	return w, nil
}

// ListWorkspaces returns the workspaces userID owns or is a member of. An
// empty userID lists every workspace.
func (s *WorkspaceStore) ListWorkspaces(ctx context.Context, userID string) ([]domain.Workspace, error) {
	q := `SELECT id, name, owner_id, created_at, updated_at FROM workspaces ORDER BY created_at DESC`
	args := []any{}
	if userID != "" {
		q = `SELECT id, name, owner_id, created_at, updated_at FROM workspaces
			 WHERE owner_id = ? OR id IN (SELECT workspace_id FROM members WHERE user_id = ?)
			 ORDER BY created_at DESC`
		args = append(args, userID, userID)
	}
	rows, err := s.db.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var out []domain.Workspace
	for rows.Next() {
		var w domain.Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.OwnerID, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *WorkspaceStore) UpdateWorkspace(ctx context.Context, w *domain.Workspace) error {
	w.UpdatedAt = now()
	_, err := s.db.exec(ctx,
		`UPDATE workspaces SET name = ?, owner_id = ?, updated_at = ? WHERE id = ?`,
		w.Name, w.OwnerID, w.UpdatedAt, w.ID,
	)
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) DeleteWorkspace(ctx context.Context, id string) error {
	if _, err := s.db.exec(ctx, `DELETE FROM members WHERE workspace_id = ?`, id); err != nil {
		return fmt.Errorf("delete members: %w", err)
	}
	if _, err := s.db.exec(ctx, `DELETE FROM workspaces WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return nil
}

// ── Members ─────────────────────────────────────────────────

// AddMember inserts or replaces the membership of m.UserID.
func (s *WorkspaceStore) AddMember(ctx context.Context, m *domain.Member) error {
	m.CreatedAt = now()
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.db.rebind(`DELETE FROM members WHERE workspace_id = ? AND user_id = ?`),
		m.WorkspaceID, m.UserID); err != nil {
		return fmt.Errorf("replace member: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.db.rebind(`INSERT INTO members (workspace_id, user_id, role, created_at) VALUES (?, ?, ?, ?)`),
		m.WorkspaceID, m.UserID, m.Role, m.CreatedAt); err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return tx.Commit()
}

func (s *WorkspaceStore) ListMembers(ctx context.Context, workspaceID string) ([]domain.Member, error) {
	rows, err := s.db.query(ctx,
		`SELECT workspace_id, user_id, role, created_at FROM members WHERE workspace_id = ? ORDER BY created_at ASC`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *WorkspaceStore) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	_, err := s.db.exec(ctx, `DELETE FROM members WHERE workspace_id = ? AND user_id = ?`, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}
