// Package app wires configuration, storage and services into the HTTP
// server and the standalone MCP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"snippets/internal/autosave"
	"snippets/internal/config"
	"snippets/internal/dbclient"
	"snippets/internal/localstore"
	"snippets/internal/remote"
	"snippets/internal/secret"
	"snippets/internal/service"
	"snippets/internal/storage"
)

// App holds the opened stores and the services built on them.
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	secrets secret.SecretStore

	db      *storage.DB
	backend dbclient.SnippetBackend
	local   *localstore.Store

	Snippets    *service.SnippetService
	Workspaces  *service.WorkspaceService
	Editor      *service.EditorService
	Maintenance *service.Maintenance
}

// Options overrides the collaborators New would otherwise build.
type Options struct {
	Logger  *slog.Logger
	Secrets secret.SecretStore
	Emitter service.EventEmitter
}

// New opens storage and builds the services. Close releases them.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Secrets == nil {
		opts.Secrets = secret.Default()
	}
	if opts.Emitter == nil {
		opts.Emitter = service.NoopEmitter{}
	}
	a := &App{cfg: cfg, log: opts.Logger, secrets: opts.Secrets}

	dbPassword, err := secret.Lookup(a.secrets, cfg.Storage.PasswordSecret)
	if err != nil {
		return nil, fmt.Errorf("resolve storage password: %w", err)
	}
	a.db, err = storage.Open(cfg.StorageOptions(dbPassword))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	mongoPassword, err := secret.Lookup(a.secrets, cfg.Mongo.PasswordSecret)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("resolve mongo password: %w", err)
	}
	a.backend, err = dbclient.NewSnippetBackend(cfg.SnippetBackend, a.db, cfg.MongoOptions(mongoPassword), a.log)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.backend.Ping(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("snippet backend: %w", err)
	}

	a.local, err = localstore.New(cfg.LocalDir(), a.log)
	if err != nil {
		a.Close()
		return nil, err
	}

	revisions := storage.NewRevisionStore(a.db)
	a.Snippets = service.NewSnippetService(a.backend, storage.NewStarStore(a.db), revisions, opts.Emitter, a.log)
	a.Workspaces = service.NewWorkspaceService(storage.NewWorkspaceStore(a.db), storage.NewProjectStore(a.db), a.Snippets)
	a.Editor = service.NewEditorService(a.editorRemote(), a.local, opts.Emitter, a.log, service.EditorOptions{
		Delay:   cfg.Autosave.Delay,
		Timeout: cfg.Autosave.Timeout,
	})
	a.Maintenance = service.NewMaintenance(revisions, a.Editor, opts.Emitter, a.log, service.MaintenanceOptions{
		PruneSchedule: cfg.Maintenance.PruneSchedule,
		ReapSchedule:  cfg.Maintenance.ReapSchedule,
		KeepRevisions: cfg.Maintenance.KeepRevisions,
		MaxIdle:       cfg.Maintenance.MaxIdle,
	})

	a.log.Info("app: opened",
		"driver", a.db.Driver(),
		"backend", cfg.SnippetBackend,
		"remote", cfg.Remote.Endpoint != "",
	)
	return a, nil
}

// editorRemote is the persistence collaborator of editor sessions: a
// remote server when one is configured, the local services otherwise.
func (a *App) editorRemote() autosave.Remote {
	if a.cfg.Remote.Endpoint == "" {
		return a.Snippets
	}
	return remote.New(remote.Config{
		Endpoint: a.cfg.Remote.Endpoint,
		Timeout:  a.cfg.Remote.Timeout,
		UserID:   a.cfg.Remote.User,
	})
}

// Shutdown saves and closes every editor session, then stops maintenance.
// Sessions that cannot be saved are written to the local store first.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Editor != nil {
		if err := a.Editor.CloseAll(ctx); err != nil {
			a.log.Warn("app: sessions left unsaved", "error", err)
			keys, err := a.Editor.RecoverUnsaved(ctx)
			if err != nil {
				errs = append(errs, fmt.Errorf("close sessions: %w", err))
			}
			if len(keys) > 0 {
				a.log.Warn("app: unsaved documents kept locally", "keys", keys, "dir", a.local.Dir())
			}
		}
	}
	if a.Maintenance != nil {
		a.Maintenance.Stop()
		a.Maintenance.Wait(ctx)
	}
	return errors.Join(errs...)
}

// Close releases the backend and the database.
func (a *App) Close() error {
	var errs []error
	if a.backend != nil {
		errs = append(errs, a.backend.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
