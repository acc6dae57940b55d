package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"snippets/internal/domain"
	"snippets/internal/service"
)

// ─────────────────────────────────────────────────────────────
// Maintenance tests
// ─────────────────────────────────────────────────────────────

func TestMaintenance_PruneRevisions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		_ = e.revisions.RecordRevision(ctx, &domain.Revision{ID: fmt.Sprintf("r%d", i), SnippetID: "s1", PatchJSON: "[]"})
	}

	m := service.NewMaintenance(e.revisions, nil, e.emitter, nil, service.MaintenanceOptions{KeepRevisions: 2})
	res, ok := m.RunJob(ctx, service.JobPruneRevisions)
	if !ok {
		t.Fatal("job should run")
	}
	if res.Error != "" || res.Affected != 4 {
		t.Errorf("unexpected result %+v", res)
	}
	if n := len(e.emitter.Named(service.EventMaintenanceRan)); n != 1 {
		t.Errorf("expected 1 maintenance event, got %d", n)
	}
}

func TestMaintenance_ReapSessions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sn, _ := e.snippets.CreateSnippet(ctx, "p1", "", "Demo", "alice")
	ed := newEditor(t, e, time.Hour)
	_, _ = ed.Open(ctx, sn.ID)

	m := service.NewMaintenance(nil, ed, nil, nil, service.MaintenanceOptions{MaxIdle: time.Nanosecond})
	time.Sleep(time.Millisecond)
	res, _ := m.RunJob(ctx, service.JobReapSessions)
	if res.Affected != 1 {
		t.Errorf("expected 1 reaped session, got %+v", res)
	}
}

func TestMaintenance_UnknownJob(t *testing.T) {
	m := service.NewMaintenance(nil, nil, nil, nil, service.MaintenanceOptions{})
	res, ok := m.RunJob(context.Background(), "defrag")
	if !ok || res.Error == "" {
		t.Errorf("expected an error result, got %+v ok=%v", res, ok)
	}
}

func TestMaintenance_StartRejectsBadSchedule(t *testing.T) {
	e := newEnv(t)
	m := service.NewMaintenance(e.revisions, nil, nil, nil, service.MaintenanceOptions{PruneSchedule: "every tuesday"})
	if err := m.Start(context.Background()); err == nil {
		m.Stop()
		t.Fatal("expected error for an invalid cron expression")
	}
}

func TestMaintenance_StartStop(t *testing.T) {
	e := newEnv(t)
	m := service.NewMaintenance(e.revisions, nil, nil, nil, service.MaintenanceOptions{PruneSchedule: "@every 1h"})
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	m.Stop()
	m.Stop()
	if got := m.Running(); len(got) != 0 {
		t.Errorf("expected no running jobs, got %v", got)
	}
}
