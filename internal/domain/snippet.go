package domain

import (
	"context"
	"time"
)

// Snippet is a persisted document with its place in the hierarchy.
// FolderID is empty for snippets at the project root.
type Snippet struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	FolderID  string    `json:"folderId"`
	Name      string    `json:"name"`
	Data      Document  `json:"data"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SnippetStore persists snippets. Implemented over SQL and MongoDB.
type SnippetStore interface {
	CreateSnippet(ctx context.Context, s *Snippet) error
	GetSnippet(ctx context.Context, id string) (*Snippet, error)
	ListSnippets(ctx context.Context, projectID string) ([]Snippet, error)
	UpdateSnippet(ctx context.Context, s *Snippet) error
	DeleteSnippet(ctx context.Context, id string) error
}

type Star struct {
	UserID    string    `json:"userId"`
	SnippetID string    `json:"snippetId"`
	CreatedAt time.Time `json:"createdAt"`
}

type StarStore interface {
	Star(ctx context.Context, userID, snippetID string) error
	Unstar(ctx context.Context, userID, snippetID string) error
	ListStarred(ctx context.Context, userID string) ([]Star, error)
	CountStars(ctx context.Context, snippetID string) (int, error)
}

// Revision is one recorded save: a JSON patch (RFC 6902) taking the
// previous document to the saved one.
type Revision struct {
	ID        string    `json:"id"`
	SnippetID string    `json:"snippetId"`
	PatchJSON string    `json:"patchJson"`
	CreatedAt time.Time `json:"createdAt"`
}

type RevisionStore interface {
	RecordRevision(ctx context.Context, r *Revision) error
	ListRevisions(ctx context.Context, snippetID string) ([]Revision, error)
	PruneRevisions(ctx context.Context, keep int) (int64, error)
	DeleteRevisions(ctx context.Context, snippetID string) error
}
