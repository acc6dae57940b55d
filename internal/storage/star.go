package storage

import (
	"context"
	"fmt"

	"snippets/internal/domain"
)

// StarStore implements domain.StarStore.
type StarStore struct {
	db *DB
}

func NewStarStore(db *DB) *StarStore {
	return &StarStore{db: db}
}

// Star is idempotent; starring twice keeps the first timestamp.
func (s *StarStore) Star(ctx context.Context, userID, snippetID string) error {
	var n int
	if err := s.db.queryRow(ctx,
		`SELECT COUNT(*) FROM stars WHERE user_id = ? AND snippet_id = ?`, userID, snippetID,
	).Scan(&n); err != nil {
		return fmt.Errorf("check star: %w", err)
	}
	if n > 0 {
		return nil
	}
	_, err := s.db.exec(ctx,
		`INSERT INTO stars (user_id, snippet_id, created_at) VALUES (?, ?, ?)`,
		userID, snippetID, now(),
	)
	if err != nil && !isDuplicate(err) {
		return fmt.Errorf("insert star: %w", err)
	}
	return nil
}

func (s *StarStore) Unstar(ctx context.Context, userID, snippetID string) error {
	_, err := s.db.exec(ctx, `DELETE FROM stars WHERE user_id = ? AND snippet_id = ?`, userID, snippetID)
	if err != nil {
		return fmt.Errorf("delete star: %w", err)
	}
	return nil
}

func (s *StarStore) ListStarred(ctx context.Context, userID string) ([]domain.Star, error) {
	rows, err := s.db.query(ctx,
		`SELECT user_id, snippet_id, created_at FROM stars WHERE user_id = ? ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stars: %w", err)
	}
	defer rows.Close()

	var out []domain.Star
	for rows.Next() {
		var st domain.Star
		if err := rows.Scan(&st.UserID, &st.SnippetID, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan star: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *StarStore) CountStars(ctx context.Context, snippetID string) (int, error) {
	var n int
	if err := s.db.queryRow(ctx, `SELECT COUNT(*) FROM stars WHERE snippet_id = ?`, snippetID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count stars: %w", err)
	}
	return n, nil
}

// DeleteStarsBySnippet removes every star of a deleted snippet.
func (s *StarStore) DeleteStarsBySnippet(ctx context.Context, snippetID string) error {
	if _, err := s.db.exec(ctx, `DELETE FROM stars WHERE snippet_id = ?`, snippetID); err != nil {
		return fmt.Errorf("delete stars: %w", err)
	}
	return nil
}
