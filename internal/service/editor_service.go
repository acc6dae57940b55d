package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"snippets/internal/autosave"
	"snippets/internal/domain"
	"snippets/internal/editor"
	"snippets/internal/localstore"

	"github.com/google/uuid"
)

// ─────────────────────────────────────────────────────────────
// Editor Service — one store and one autosave controller per session
// ─────────────────────────────────────────────────────────────

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnsavedChanges  = errors.New("session has unsaved changes")
)

type SessionMode string

const (
	// ModeRemote saves through the persistence collaborator.
	ModeRemote SessionMode = "remote"
	// ModeLocal saves to the local file store.
	ModeLocal SessionMode = "local"
)

// Session is an open editing session. Edits go through Store; every local
// persistent change is scheduled on Saver.
type Session struct {
	ID        string
	SnippetID string
	Mode      SessionMode
	Store     *editor.Store
	Saver     *autosave.Controller
	OpenedAt  time.Time

	mu          sync.Mutex
	lastActive  time.Time
	unsubscribe func()
	stopWatch   context.CancelFunc
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// LastActive is the time of the last change seen on the session.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// SessionInfo is the JSON summary of a session.
type SessionInfo struct {
	ID         string      `json:"id"`
	SnippetID  string      `json:"snippetId"`
	Mode       SessionMode `json:"mode"`
	State      string      `json:"state"`
	Unsaved    bool        `json:"unsaved"`
	OpenedAt   time.Time   `json:"openedAt"`
	LastActive time.Time   `json:"lastActive"`
	LastSaved  time.Time   `json:"lastSaved"`
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:         s.ID,
		SnippetID:  s.SnippetID,
		Mode:       s.Mode,
		State:      s.Saver.State().String(),
		Unsaved:    s.Saver.HasUnsavedChanges(),
		OpenedAt:   s.OpenedAt,
		LastActive: s.LastActive(),
		LastSaved:  s.Saver.LastSaved(),
	}
}

type EditorOptions struct {
	Delay   time.Duration
	Timeout time.Duration
}

// EditorService keeps the open sessions. Sessions never share a store.
type EditorService struct {
	remote  autosave.Remote
	local   *localstore.Store
	emitter EventEmitter
	log     *slog.Logger
	opts    EditorOptions

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewEditorService creates the service. local may be nil, which disables
// OpenLocal.
func NewEditorService(remote autosave.Remote, local *localstore.Store, emitter EventEmitter, logger *slog.Logger, opts EditorOptions) *EditorService {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EditorService{
		remote:   remote,
		local:    local,
		emitter:  emitter,
		log:      logger,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Open loads snippetID from the persistence collaborator and starts a
// session on it. A missing snippet is domain.ErrNotFound and no session
// is created.
func (s *EditorService) Open(ctx context.Context, snippetID string) (*Session, error) {
	sn, err := s.remote.GetSnippet(ctx, snippetID)
	if err != nil {
		return nil, fmt.Errorf("open snippet %s: %w", snippetID, err)
	}
	sess := s.start(snippetID, ModeRemote, sn.Data, s.remote)
	s.log.Info("editor: session opened", "session", sess.ID, "snippet", snippetID)
	s.emitter.Emit(ctx, EventSessionOpened, sess.Info())
	return sess, nil
}

// OpenLocal starts a session on a document in the local file store. A
// missing or invalid document starts from the default template. Changes
// made to the file by another process are merged in as remote changes.
func (s *EditorService) OpenLocal(ctx context.Context, key string) (*Session, error) {
	if s.local == nil {
		return nil, errors.New("local store is not configured")
	}
	doc, err := s.local.LoadOrDefault(key)
	if err != nil {
		return nil, fmt.Errorf("open local %s: %w", key, err)
	}
	sess := s.start(key, ModeLocal, doc, s.local)

	watchCtx, cancel := context.WithCancel(context.Background())
	err = s.local.Watch(watchCtx, key, func(doc domain.Document) {
		if err := sess.Store.ReplaceDocument(domain.PatchFrom(doc), editor.OriginRemote); err != nil {
			s.log.Warn("editor: reload rejected", "session", sess.ID, "error", err)
			return
		}
		s.emitter.Emit(context.Background(), EventDocumentReload, sess.Info())
	})
	if err != nil {
		// Editing still works without the watcher.
		cancel()
		s.log.Warn("editor: watch failed", "key", key, "error", err)
	} else {
		sess.mu.Lock()
		sess.stopWatch = cancel
		sess.mu.Unlock()
	}

	s.log.Info("editor: local session opened", "session", sess.ID, "key", key)
	s.emitter.Emit(ctx, EventSessionOpened, sess.Info())
	return sess, nil
}

func (s *EditorService) start(snippetID string, mode SessionMode, doc domain.Document, remote autosave.Remote) *Session {
	store := editor.New(doc)
	saver := autosave.New(snippetID, remote, autosave.Options{
		Delay:     s.opts.Delay,
		Timeout:   s.opts.Timeout,
		Reconcile: store.Reconcile,
		Emitter:   s.emitter,
		Logger:    s.log,
	})
	now := time.Now()
	sess := &Session{
		ID:         uuid.NewString(),
		SnippetID:  snippetID,
		Mode:       mode,
		Store:      store,
		Saver:      saver,
		OpenedAt:   now,
		lastActive: now,
	}
	sess.unsubscribe = store.Subscribe(func(ch editor.Change) {
		sess.touch()
		if ch.Origin == editor.OriginLocal && ch.Persistent() {
			saver.Schedule(ch.Patch, ch.Seq)
		}
	})

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

func (s *EditorService) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// List returns the open sessions, oldest first.
func (s *EditorService) List() []SessionInfo {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// Flush saves a session's pending changes now.
func (s *EditorService) Flush(ctx context.Context, id string) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	return sess.Saver.Flush(ctx)
}

// Close flushes the session and drops it. When the final save fails the
// session stays open and the error wraps ErrUnsavedChanges, unless confirm
// agrees to discard the changes. A nil confirm never discards.
func (s *EditorService) Close(ctx context.Context, id string, confirm func(msg string) bool) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	flushErr := sess.Saver.Flush(ctx)
	if flushErr != nil && (confirm == nil || !sess.Saver.ConfirmExit(confirm)) {
		s.log.Warn("editor: close refused, unsaved changes", "session", id, "error", flushErr)
		return fmt.Errorf("close session %s: %w: %w", id, ErrUnsavedChanges, flushErr)
	}

	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	sess.mu.Lock()
	unsubscribe, stopWatch := sess.unsubscribe, sess.stopWatch
	sess.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	if stopWatch != nil {
		stopWatch()
	}
	sess.Saver.Close()
	if flushErr != nil {
		s.log.Warn("editor: session closed, unsaved changes discarded", "session", id, "error", flushErr)
	} else {
		s.log.Info("editor: session closed", "session", id)
	}
	s.emitter.Emit(ctx, EventSessionClosed, map[string]string{"id": id, "snippetId": sess.SnippetID})
	return nil
}

// CloseAll closes every session it can save. Sessions whose final save
// fails stay open; their errors are joined.
func (s *EditorService) CloseAll(ctx context.Context) error {
	var errs []error
	for _, id := range s.ids() {
		if err := s.Close(ctx, id, nil); err != nil && !errors.Is(err, ErrSessionNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecoveryKey is the local store key a session's document is written to
// when it cannot be saved on shutdown.
func RecoveryKey(sessionID string) string {
	return "recovered-" + sessionID
}

// RecoverUnsaved writes the document of every session that still has
// unsaved changes to the local store under RecoveryKey, then closes it.
// It returns the keys written. Sessions that cannot be written stay open.
func (s *EditorService) RecoverUnsaved(ctx context.Context) ([]string, error) {
	unsaved := s.UnsavedSessions()
	if len(unsaved) == 0 {
		return nil, nil
	}
	if s.local == nil {
		return nil, fmt.Errorf("recover %d session(s): local store is not configured", len(unsaved))
	}
	var (
		keys []string
		errs []error
	)
	for _, id := range unsaved {
		sess, err := s.Get(id)
		if err != nil {
			continue
		}
		key := RecoveryKey(id)
		if err := s.local.Save(key, sess.Store.Snapshot()); err != nil {
			errs = append(errs, fmt.Errorf("recover session %s: %w", id, err))
			continue
		}
		if err := s.Close(ctx, id, func(string) bool { return true }); err != nil && !errors.Is(err, ErrSessionNotFound) {
			errs = append(errs, err)
			continue
		}
		s.log.Warn("editor: unsaved session written to local store", "session", id, "snippet", sess.SnippetID, "key", key)
		keys = append(keys, key)
	}
	return keys, errors.Join(errs...)
}

// UnsavedSessions lists the sessions with pending or failed saves, for an
// exit guard.
func (s *EditorService) UnsavedSessions() []string {
	var out []string
	for _, id := range s.ids() {
		if sess, err := s.Get(id); err == nil && sess.Saver.HasUnsavedChanges() {
			out = append(out, id)
		}
	}
	return out
}

// ConfirmExit returns true when no session has unsaved changes, otherwise
// asks confirm.
func (s *EditorService) ConfirmExit(confirm func(msg string) bool) bool {
	unsaved := s.UnsavedSessions()
	if len(unsaved) == 0 {
		return true
	}
	return confirm(fmt.Sprintf("%d session(s) have unsaved changes. Leave anyway?", len(unsaved)))
}

// ReapIdle closes sessions with no change for longer than maxIdle and
// returns how many were closed. Sessions with unsaved changes are kept.
func (s *EditorService) ReapIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	n := 0
	for _, id := range s.ids() {
		sess, err := s.Get(id)
		if err != nil || sess.LastActive().After(cutoff) || sess.Saver.HasUnsavedChanges() {
			continue
		}
		if err := s.Close(ctx, id, nil); err != nil {
			continue
		}
		n++
	}
	return n
}

func (s *EditorService) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
