package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"snippets/internal/domain"

	"github.com/robfig/cron/v3"
)

// ─────────────────────────────────────────────────────────────
// Maintenance — scheduled revision pruning and session reaping
// ─────────────────────────────────────────────────────────────

const (
	JobPruneRevisions = "prune-revisions"
	JobReapSessions   = "reap-sessions"

	EventMaintenanceRan = "maintenance:ran"
)

type MaintenanceOptions struct {
	// Cron expressions; an empty expression disables the job.
	PruneSchedule string
	ReapSchedule  string

	KeepRevisions int
	MaxIdle       time.Duration
}

// MaintenanceResult is emitted after every job run.
type MaintenanceResult struct {
	Job      string `json:"job"`
	Affected int64  `json:"affected"`
	Error    string `json:"error,omitempty"`
}

type Maintenance struct {
	revisions domain.RevisionStore
	editor    *EditorService
	emitter   EventEmitter
	log       *slog.Logger
	opts      MaintenanceOptions

	runningJobs runningJobsGuard
	cronSched   *cron.Cron
}

func NewMaintenance(revisions domain.RevisionStore, editor *EditorService, emitter EventEmitter, logger *slog.Logger, opts MaintenanceOptions) *Maintenance {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.KeepRevisions <= 0 {
		opts.KeepRevisions = 40
	}
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = 30 * time.Minute
	}
	return &Maintenance{revisions: revisions, editor: editor, emitter: emitter, log: logger, opts: opts}
}

// Start schedules the configured jobs. Jobs run with ctx.
func (m *Maintenance) Start(ctx context.Context) error {
	m.Stop()

	c := cron.New()
	scheduled := 0
	add := func(expr, job string) error {
		if expr == "" {
			return nil
		}
		if _, err := c.AddFunc(expr, func() { m.RunJob(ctx, job) }); err != nil {
			return fmt.Errorf("invalid schedule %q for %s: %w", expr, job, err)
		}
		scheduled++
		return nil
	}
	if m.revisions != nil {
		if err := add(m.opts.PruneSchedule, JobPruneRevisions); err != nil {
			return err
		}
	}
	if m.editor != nil {
		if err := add(m.opts.ReapSchedule, JobReapSessions); err != nil {
			return err
		}
	}
	if scheduled == 0 {
		return nil
	}
	c.Start()
	m.cronSched = c
	m.log.Info("maintenance: scheduled", "jobs", scheduled)
	return nil
}

// Stop halts the scheduler and waits for running cron callbacks.
func (m *Maintenance) Stop() {
	if m.cronSched == nil {
		return
	}
	<-m.cronSched.Stop().Done()
	m.cronSched = nil
}

// RunJob runs one job now. A job that is already running is skipped and
// reported with ok=false.
func (m *Maintenance) RunJob(ctx context.Context, job string) (MaintenanceResult, bool) {
	if !m.runningJobs.TryLock(job) {
		m.log.Debug("maintenance: job still running, skipped", "job", job)
		return MaintenanceResult{Job: job}, false
	}
	defer m.runningJobs.Unlock(job)

	res := MaintenanceResult{Job: job}
	switch job {
	case JobPruneRevisions:
		if m.revisions == nil {
			res.Error = "revision store is not configured"
			break
		}
		n, err := m.revisions.PruneRevisions(ctx, m.opts.KeepRevisions)
		res.Affected = n
		if err != nil {
			res.Error = err.Error()
		}
	case JobReapSessions:
		if m.editor == nil {
			res.Error = "editor service is not configured"
			break
		}
		res.Affected = int64(m.editor.ReapIdle(ctx, m.opts.MaxIdle))
	default:
		res.Error = fmt.Sprintf("unknown job %q", job)
	}

	if res.Error != "" {
		m.log.Warn("maintenance: job failed", "job", job, "error", res.Error)
	} else {
		m.log.Info("maintenance: job done", "job", job, "affected", res.Affected)
	}
	m.emitter.Emit(ctx, EventMaintenanceRan, res)
	return res, true
}

// Running lists the jobs currently in progress.
func (m *Maintenance) Running() []string {
	return m.runningJobs.Running()
}

// Wait blocks until running jobs finish or ctx is done.
func (m *Maintenance) Wait(ctx context.Context) {
	m.runningJobs.WaitAll(ctx)
}
