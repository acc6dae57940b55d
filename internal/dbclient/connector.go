package dbclient

import (
	"context"
	"fmt"
	"log/slog"

	"snippets/internal/domain"
	"snippets/internal/storage"
)

const (
	BackendSQL     = "sql"
	BackendMongoDB = "mongodb"
)

// SnippetBackend is a snippet store that owns a connection.
type SnippetBackend interface {
	domain.SnippetStore
	Ping(ctx context.Context) error
	Close() error
}

// sqlBackend shares the hierarchy database; closing it is left to the
// owner of db.
type sqlBackend struct {
	*storage.SnippetStore
	db *storage.DB
}

func (b sqlBackend) Ping(ctx context.Context) error { return b.db.Ping(ctx) }
func (b sqlBackend) Close() error                   { return nil }

// NewSnippetBackend picks where snippet documents live. The SQL backend
// reuses db; the MongoDB backend opens its own client.
func NewSnippetBackend(backend string, db *storage.DB, mongoOpts MongoOptions, logger *slog.Logger) (SnippetBackend, error) {
	switch backend {
	case "", BackendSQL:
		if db == nil {
			return nil, fmt.Errorf("sql snippet backend: database is required")
		}
		return sqlBackend{SnippetStore: storage.NewSnippetStore(db), db: db}, nil
	case BackendMongoDB:
		return NewMongoSnippetStore(mongoOpts, logger)
	default:
		return nil, fmt.Errorf("unsupported snippet backend: %s", backend)
	}
}
