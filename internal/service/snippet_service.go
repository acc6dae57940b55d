package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"snippets/internal/domain"

	"github.com/google/uuid"
	"github.com/snorwin/jsonpatch"
)

// ─────────────────────────────────────────────────────────────
// Snippet Service — persisted snippets, stars and history
// ─────────────────────────────────────────────────────────────

// StarStore is domain.StarStore plus the cleanup used on delete.
type StarStore interface {
	domain.StarStore
	DeleteStarsBySnippet(ctx context.Context, snippetID string) error
}

// SnippetService owns snippet persistence. It is the authoritative side
// of the autosave protocol: UpdateSnippet merges a patch, validates the
// result and returns the stored snippet.
type SnippetService struct {
	snippets  domain.SnippetStore
	stars     StarStore
	revisions domain.RevisionStore
	emitter   EventEmitter
	log       *slog.Logger
	newID     func() string

	// Serializes read-modify-write on the same snippet.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewSnippetService(snippets domain.SnippetStore, stars StarStore, revisions domain.RevisionStore, emitter EventEmitter, logger *slog.Logger) *SnippetService {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnippetService{
		snippets:  snippets,
		stars:     stars,
		revisions: revisions,
		emitter:   emitter,
		log:       logger,
		newID:     uuid.NewString,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *SnippetService) lock(id string) func() {
	s.locksMu.Lock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	s.locksMu.Unlock()
	m.Lock()
	return m.Unlock
}

// CreateSnippet stores a new snippet seeded with the default template.
func (s *SnippetService) CreateSnippet(ctx context.Context, projectID, folderID, name, createdBy string) (*domain.Snippet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled"
	}
	sn := &domain.Snippet{
		ID:        s.newID(),
		ProjectID: projectID,
		FolderID:  folderID,
		Name:      name,
		Data:      domain.DefaultDocument(),
		CreatedBy: createdBy,
	}
	if err := s.snippets.CreateSnippet(ctx, sn); err != nil {
		return nil, fmt.Errorf("create snippet: %w", err)
	}
	s.emitter.Emit(ctx, EventSnippetCreated, sn)
	return sn, nil
}

func (s *SnippetService) GetSnippet(ctx context.Context, id string) (*domain.Snippet, error) {
	return s.snippets.GetSnippet(ctx, id)
}

func (s *SnippetService) ListSnippets(ctx context.Context, projectID string) ([]domain.Snippet, error) {
	return s.snippets.ListSnippets(ctx, projectID)
}

// UpdateSnippet applies p to the stored document. An invalid result is
// rejected with domain.ErrInvalidDocument and nothing is stored.
func (s *SnippetService) UpdateSnippet(ctx context.Context, id string, p domain.DocumentPatch) (*domain.Snippet, error) {
	unlock := s.lock(id)
	defer unlock()

	sn, err := s.snippets.GetSnippet(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Empty() {
		return sn, nil
	}
	prev := sn.Data
	sn.Data = p.Apply(sn.Data)
	if err := sn.Data.Validate(); err != nil {
		return nil, err
	}
	if err := s.snippets.UpdateSnippet(ctx, sn); err != nil {
		return nil, fmt.Errorf("update snippet: %w", err)
	}
	s.recordRevision(ctx, id, prev, sn.Data)
	s.emitter.Emit(ctx, EventSnippetUpdated, sn)
	return sn, nil
}

// RenameSnippet changes the display name.
func (s *SnippetService) RenameSnippet(ctx context.Context, id, name string) (*domain.Snippet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("rename snippet: name is required: %w", domain.ErrInvalidDocument)
	}
	return s.modify(ctx, id, func(sn *domain.Snippet) { sn.Name = name })
}

// MoveSnippet puts the snippet in folderID; "" is the project root.
func (s *SnippetService) MoveSnippet(ctx context.Context, id, folderID string) (*domain.Snippet, error) {
	return s.modify(ctx, id, func(sn *domain.Snippet) { sn.FolderID = folderID })
}

func (s *SnippetService) modify(ctx context.Context, id string, fn func(*domain.Snippet)) (*domain.Snippet, error) {
	unlock := s.lock(id)
	defer unlock()

	sn, err := s.snippets.GetSnippet(ctx, id)
	if err != nil {
		return nil, err
	}
	fn(sn)
	if err := s.snippets.UpdateSnippet(ctx, sn); err != nil {
		return nil, fmt.Errorf("update snippet: %w", err)
	}
	s.emitter.Emit(ctx, EventSnippetUpdated, sn)
	return sn, nil
}

// DuplicateSnippet copies a snippet's document under a new id.
func (s *SnippetService) DuplicateSnippet(ctx context.Context, id, createdBy string) (*domain.Snippet, error) {
	src, err := s.snippets.GetSnippet(ctx, id)
	if err != nil {
		return nil, err
	}
	sn := &domain.Snippet{
		ID:        s.newID(),
		ProjectID: src.ProjectID,
		FolderID:  src.FolderID,
		Name:      src.Name + " (copy)",
		Data:      src.Data.Clone(),
		CreatedBy: createdBy,
	}
	if err := s.snippets.CreateSnippet(ctx, sn); err != nil {
		return nil, fmt.Errorf("duplicate snippet: %w", err)
	}
	s.emitter.Emit(ctx, EventSnippetCreated, sn)
	return sn, nil
}

// DeleteSnippet removes the snippet with its stars and history.
func (s *SnippetService) DeleteSnippet(ctx context.Context, id string) error {
	if s.stars != nil {
		if err := s.stars.DeleteStarsBySnippet(ctx, id); err != nil {
			return err
		}
	}
	if s.revisions != nil {
		if err := s.revisions.DeleteRevisions(ctx, id); err != nil {
			return err
		}
	}
	if err := s.snippets.DeleteSnippet(ctx, id); err != nil {
		return err
	}
	s.locksMu.Lock()
	delete(s.locks, id)
	s.locksMu.Unlock()
	s.emitter.Emit(ctx, EventSnippetDeleted, map[string]string{"id": id})
	return nil
}

// ── Stars ───────────────────────────────────────────────────

func (s *SnippetService) Star(ctx context.Context, userID, snippetID string) error {
	if _, err := s.snippets.GetSnippet(ctx, snippetID); err != nil {
		return err
	}
	return s.stars.Star(ctx, userID, snippetID)
}

func (s *SnippetService) Unstar(ctx context.Context, userID, snippetID string) error {
	return s.stars.Unstar(ctx, userID, snippetID)
}

func (s *SnippetService) ListStarred(ctx context.Context, userID string) ([]domain.Star, error) {
	return s.stars.ListStarred(ctx, userID)
}

func (s *SnippetService) CountStars(ctx context.Context, snippetID string) (int, error) {
	return s.stars.CountStars(ctx, snippetID)
}

// ── Revisions ───────────────────────────────────────────────

func (s *SnippetService) ListRevisions(ctx context.Context, snippetID string) ([]domain.Revision, error) {
	if s.revisions == nil {
		return nil, nil
	}
	return s.revisions.ListRevisions(ctx, snippetID)
}

// recordRevision stores the JSON patch from prev to next. History is best
// effort: a failure is logged and the save still succeeds.
func (s *SnippetService) recordRevision(ctx context.Context, snippetID string, prev, next domain.Document) {
	if s.revisions == nil {
		return
	}
	patchJSON, err := DiffDocuments(prev, next)
	if err != nil {
		s.log.Warn("revision: diff failed", "snippet", snippetID, "error", err)
		return
	}
	if patchJSON == "" {
		return
	}
	r := &domain.Revision{ID: s.newID(), SnippetID: snippetID, PatchJSON: patchJSON}
	if err := s.revisions.RecordRevision(ctx, r); err != nil {
		s.log.Warn("revision: record failed", "snippet", snippetID, "error", err)
	}
}

// DiffDocuments returns the RFC 6902 patch taking prev to next as JSON,
// or "" when they are equal.
func DiffDocuments(prev, next domain.Document) (string, error) {
	current, err := toMap(prev)
	if err != nil {
		return "", err
	}
	modified, err := toMap(next)
	if err != nil {
		return "", err
	}
	patch, err := jsonpatch.CreateJSONPatch(modified, current)
	if err != nil {
		return "", fmt.Errorf("create json patch: %w", err)
	}
	ops := patch.List()
	if len(ops) == 0 {
		return "", nil
	}
	b, err := json.Marshal(ops)
	if err != nil {
		return "", fmt.Errorf("encode json patch: %w", err)
	}
	return string(b), nil
}

// toMap goes through JSON so the element union is diffed in its wire shape.
func toMap(doc domain.Document) (map[string]any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return m, nil
}
