package storage

import (
	"context"
	"fmt"
	"time"

	"snippets/internal/domain"
)

// MaxRevisions is how many revisions are kept per snippet.
const MaxRevisions = 40

// RevisionStore keeps the save history of snippets as JSON patches.
type RevisionStore struct {
	db *DB
}

func NewRevisionStore(db *DB) *RevisionStore {
	return &RevisionStore{db: db}
}

// RecordRevision inserts r and prunes the snippet's history to
// MaxRevisions entries.
func (s *RevisionStore) RecordRevision(ctx context.Context, r *domain.Revision) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.exec(ctx,
		`INSERT INTO snippet_revisions (id, snippet_id, patch_json, created_ns) VALUES (?, ?, ?, ?)`,
		r.ID, r.SnippetID, r.PatchJSON, r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	if _, err := s.prune(ctx, r.SnippetID, MaxRevisions); err != nil {
		return err
	}
	return nil
}

// ListRevisions returns the history newest first.
func (s *RevisionStore) ListRevisions(ctx context.Context, snippetID string) ([]domain.Revision, error) {
	rows, err := s.db.query(ctx,
		`SELECT id, snippet_id, patch_json, created_ns FROM snippet_revisions
		 WHERE snippet_id = ? ORDER BY created_ns DESC, id DESC`, snippetID,
	)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var out []domain.Revision
	for rows.Next() {
		var r domain.Revision
		var ns int64
		if err := rows.Scan(&r.ID, &r.SnippetID, &r.PatchJSON, &ns); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		r.CreatedAt = time.Unix(0, ns).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneRevisions trims every snippet's history to keep entries and returns
// the number of deleted rows.
func (s *RevisionStore) PruneRevisions(ctx context.Context, keep int) (int64, error) {
	rows, err := s.db.query(ctx,
		`SELECT snippet_id FROM snippet_revisions GROUP BY snippet_id HAVING COUNT(*) > ?`, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("find revisions to prune: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan snippet id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var total int64
	for _, id := range ids {
		n, err := s.prune(ctx, id, keep)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (s *RevisionStore) DeleteRevisions(ctx context.Context, snippetID string) error {
	if _, err := s.db.exec(ctx, `DELETE FROM snippet_revisions WHERE snippet_id = ?`, snippetID); err != nil {
		return fmt.Errorf("delete revisions: %w", err)
	}
	return nil
}

func (s *RevisionStore) prune(ctx context.Context, snippetID string, keep int) (int64, error) {
	var count int
	if err := s.db.queryRow(ctx,
		`SELECT COUNT(*) FROM snippet_revisions WHERE snippet_id = ?`, snippetID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count revisions: %w", err)
	}
	if count <= keep {
		return 0, nil
	}

	// Collect ids first; the rows cursor must be closed before deleting.
	rows, err := s.db.query(ctx,
		`SELECT id FROM snippet_revisions WHERE snippet_id = ?
		 ORDER BY created_ns ASC, id ASC LIMIT ?`, snippetID, count-keep,
	)
	if err != nil {
		return 0, fmt.Errorf("select revisions to prune: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	rows.Close()

	var deleted int64
	for _, id := range ids {
		res, err := s.db.exec(ctx, `DELETE FROM snippet_revisions WHERE id = ?`, id)
		if err != nil {
			return deleted, fmt.Errorf("prune revision: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted += n
	}
	return deleted, nil
}
