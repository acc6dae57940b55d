// Package localstore is the local-only persistence fallback: one JSON file
// per document key under a directory. It implements the same contract as
// the remote collaborator so an editor session can autosave into it.
package localstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"snippets/internal/domain"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ErrInvalidKey is returned for keys that cannot be used as file names.
var ErrInvalidKey = errors.New("invalid local key")

const watchDebounce = 100 * time.Millisecond

type Store struct {
	dir string
	log *slog.Logger

	mu      sync.Mutex
	written map[string][]byte // last bytes Save wrote per key
}

func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create local store directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, log: logger, written: make(map[string][]byte)}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Load returns the stored document for key, or nil when nothing usable is
// stored. An invalid document is logged and treated as absent.
func (s *Store) Load(key string) (*domain.Document, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read local document: %w", err)
	}
	return s.decode(key, b), nil
}

// LoadOrDefault returns the stored document, or the default template when
// it is missing or invalid.
func (s *Store) LoadOrDefault(key string) (domain.Document, error) {
	doc, err := s.Load(key)
	if err != nil {
		return domain.Document{}, err
	}
	if doc == nil {
		return domain.DefaultDocument(), nil
	}
	return *doc, nil
}

func (s *Store) decode(key string, b []byte) *domain.Document {
	var doc domain.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		s.log.Warn("localstore: discarding unreadable document", "key", key, "error", err)
		return nil
	}
	if err := doc.Validate(); err != nil {
		s.log.Warn("localstore: discarding invalid document", "key", key, "error", err)
		return nil
	}
	return &doc
}

// Save writes doc atomically via a temp file and rename.
func (s *Store) Save(key string, doc domain.Document) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode local document: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write local document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close local document: %w", err)
	}

	s.mu.Lock()
	s.written[key] = b
	s.mu.Unlock()

	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace local document: %w", err)
	}
	return nil
}

// Delete removes the stored document. Missing keys are not an error.
func (s *Store) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete local document: %w", err)
	}
	s.mu.Lock()
	delete(s.written, key)
	s.mu.Unlock()
	return nil
}

// ── Collaborator contract ───────────────────────────────────

// GetSnippet serves key as a snippet id. Missing documents are ErrNotFound.
func (s *Store) GetSnippet(_ context.Context, key string) (*domain.Snippet, error) {
	doc, err := s.Load(key)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("local snippet %s: %w", key, domain.ErrNotFound)
	}
	return s.snippet(key, *doc), nil
}

// UpdateSnippet merges p into the stored document (or the default template)
// and returns the saved result.
func (s *Store) UpdateSnippet(_ context.Context, key string, p domain.DocumentPatch) (*domain.Snippet, error) {
	doc, err := s.LoadOrDefault(key)
	if err != nil {
		return nil, err
	}
	doc = p.Apply(doc)
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("update local snippet %s: %w", key, err)
	}
	if err := s.Save(key, doc); err != nil {
		return nil, err
	}
	return s.snippet(key, doc), nil
}

func (s *Store) snippet(key string, doc domain.Document) *domain.Snippet {
	sn := &domain.Snippet{ID: key, Name: key, Data: doc}
	if p, err := s.path(key); err == nil {
		if fi, err := os.Stat(p); err == nil {
			sn.UpdatedAt = fi.ModTime()
			sn.CreatedAt = fi.ModTime()
		}
	}
	return sn
}

// ── Watch ───────────────────────────────────────────────────

// Watch calls fn whenever the file for key is changed by someone other than
// this store and the new content is a valid document. It returns after the
// watcher is set up; watching stops when ctx is done.
func (s *Store) Watch(ctx context.Context, key string, fn func(domain.Document)) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory; atomic saves replace the file inode.
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != p {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, func() { s.reload(ctx, key, p, fn) })
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn("localstore: watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (s *Store) reload(ctx context.Context, key, path string, fn func(domain.Document)) {
	if ctx.Err() != nil {
		return
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return
	}
	s.mu.Lock()
	own := bytes.Equal(b, s.written[key])
	s.mu.Unlock()
	if own {
		return
	}
	if doc := s.decode(key, b); doc != nil {
		fn(*doc)
	}
}
