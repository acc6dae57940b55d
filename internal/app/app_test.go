package app

import (
	"context"
	"errors"
	"testing"

	"snippets/internal/config"
	"snippets/internal/domain"
	"snippets/internal/remote"
	"snippets/internal/service"
)

type staticSecrets map[string]string

func (s staticSecrets) Set(k string, v []byte) error { s[k] = string(v); return nil }
func (s staticSecrets) Get(k string) ([]byte, error) {
	if v, ok := s[k]; ok {
		return []byte(v), nil
	}
	return nil, nil
}
func (s staticSecrets) Delete(k string) error { delete(s, k); return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Maintenance.PruneSchedule = ""
	cfg.Maintenance.ReapSchedule = ""
	return cfg
}

func TestNew_SQLite(t *testing.T) {
	ctx := context.Background()
	emitter := &service.MockEmitter{}
	a, err := New(ctx, testConfig(t), Options{Secrets: staticSecrets{}, Emitter: emitter})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	ws, err := a.Workspaces.CreateWorkspace(ctx, "Team", "u1")
	if err != nil {
		t.Fatal(err)
	}
	p, err := a.Workspaces.CreateProject(ctx, ws.ID, "Docs")
	if err != nil {
		t.Fatal(err)
	}
	sn, err := a.Snippets.CreateSnippet(ctx, p.ID, "", "Hello", "u1")
	if err != nil {
		t.Fatal(err)
	}

	sess, err := a.Editor.Open(ctx, sn.ID)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	name := "Renamed"
	if err := sess.Store.UpdateElement("title", domain.ElementPatch{Name: &name}); err != nil {
		t.Fatal(err)
	}

	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if len(a.Editor.List()) != 0 {
		t.Error("shutdown should close every session")
	}
	stored, err := a.Snippets.GetSnippet(ctx, sn.ID)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range stored.Data.Elements {
		if e.ID == "title" && e.Name == "Renamed" {
			found = true
		}
	}
	if !found {
		t.Error("pending edits should be flushed on shutdown")
	}
}

func TestNew_RemoteEditor(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.Endpoint = "http://127.0.0.1:1"
	a, err := New(context.Background(), cfg, Options{Secrets: staticSecrets{}})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if _, ok := a.editorRemote().(*remote.Client); !ok {
		t.Errorf("expected the remote client, got %T", a.editorRemote())
	}
	if _, err := a.Editor.Open(context.Background(), "anything"); err == nil {
		t.Error("expected an unreachable remote to fail the open")
	}
}

func TestNew_InvalidBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.SnippetBackend = "redis"
	_, err := New(context.Background(), cfg, Options{Secrets: staticSecrets{}})
	if err == nil {
		t.Fatal("expected an unsupported backend error")
	}
	if errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unexpected error kind %v", err)
	}
}
