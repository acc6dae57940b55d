package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"snippets/internal/domain"
)

// SnippetStore implements domain.SnippetStore with the document kept as a
// JSON column.
type SnippetStore struct {
	db *DB
}

func NewSnippetStore(db *DB) *SnippetStore {
	return &SnippetStore{db: db}
}

const snippetColumns = `id, project_id, folder_id, name, data, created_by, created_at, updated_at`

func (s *SnippetStore) CreateSnippet(ctx context.Context, sn *domain.Snippet) error {
	data, err := json.Marshal(sn.Data)
	if err != nil {
		return fmt.Errorf("encode snippet data: %w", err)
	}
	sn.CreatedAt = now()
	sn.UpdatedAt = sn.CreatedAt
	_, err = s.db.exec(ctx,
		`INSERT INTO snippets (`+snippetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sn.ID, sn.ProjectID, sn.FolderID, sn.Name, string(data), sn.CreatedBy, sn.CreatedAt, sn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert snippet: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row scanner) (*domain.Snippet, error) {
	var sn domain.Snippet
	var data string
	if err := row.Scan(&sn.ID, &sn.ProjectID, &sn.FolderID, &sn.Name, &data, &sn.CreatedBy, &sn.CreatedAt, &sn.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &sn.Data); err != nil {
		return nil, fmt.Errorf("decode snippet %s data: %w", sn.ID, err)
	}
	return &sn, nil
}

func (s *SnippetStore) GetSnippet(ctx context.Context, id string) (*domain.Snippet, error) {
	sn, err := scanSnippet(s.db.queryRow(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE id = ?`, id,
	))
	if err != nil {
		return nil, notFound(err, "snippet", id)
	}
	return sn, nil
}

func (s *SnippetStore) ListSnippets(ctx context.Context, projectID string) ([]domain.Snippet, error) {
	rows, err := s.db.query(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE project_id = ? ORDER BY updated_at DESC`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	defer rows.Close()

	var out []domain.Snippet
	for rows.Next() {
		sn, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		out = append(out, *sn)
	}
	return out, rows.Err()
}

func (s *SnippetStore) UpdateSnippet(ctx context.Context, sn *domain.Snippet) error {
	data, err := json.Marshal(sn.Data)
	if err != nil {
		return fmt.Errorf("encode snippet data: %w", err)
	}
	sn.UpdatedAt = now()
	_, err = s.db.exec(ctx,
		`UPDATE snippets SET folder_id = ?, name = ?, data = ?, updated_at = ? WHERE id = ?`,
		sn.FolderID, sn.Name, string(data), sn.UpdatedAt, sn.ID,
	)
	if err != nil {
		return fmt.Errorf("update snippet: %w", err)
	}
	return nil
}

func (s *SnippetStore) DeleteSnippet(ctx context.Context, id string) error {
	if _, err := s.db.exec(ctx, `DELETE FROM snippets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete snippet: %w", err)
	}
	return nil
}
