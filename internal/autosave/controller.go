// Package autosave synchronizes an editor document with its persistence
// collaborator: local edits are debounced, at most one save is in flight
// per document, and the authoritative response is merged back.
package autosave

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"snippets/internal/domain"
)

const (
	DefaultDelay   = time.Second
	DefaultTimeout = 30 * time.Second

	EventSaved      = "snippet:saved"
	EventSaveFailed = "snippet:save-failed"

	exitPrompt = "You have unsaved changes. Leave anyway?"
)

// Remote is the persistence collaborator. Implementations may talk to local
// storage, an HTTP API, or a file.
type Remote interface {
	GetSnippet(ctx context.Context, id string) (*domain.Snippet, error)
	UpdateSnippet(ctx context.Context, id string, patch domain.DocumentPatch) (*domain.Snippet, error)
}

// EventEmitter receives save notifications. Failures are reported here and
// never returned to the editing caller.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// ReconcileFunc merges an authoritative response into the local document.
// basis is the local edit sequence the saved patch was current at.
type ReconcileFunc func(resp domain.DocumentPatch, basis uint64)

// SaveError is emitted with EventSaveFailed.
type SaveError struct {
	SnippetID string `json:"snippetId"`
	Err       error  `json:"-"`
	Message   string `json:"error"`
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save snippet %s: %v", e.SnippetID, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// SavedEvent is emitted with EventSaved.
type SavedEvent struct {
	SnippetID string    `json:"snippetId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type State int

const (
	Idle State = iota
	PendingTimer
	Sending
	PendingWhileSending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingTimer:
		return "pending-timer"
	case Sending:
		return "sending"
	case PendingWhileSending:
		return "pending-while-sending"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Options struct {
	Delay     time.Duration
	Timeout   time.Duration
	Reconcile ReconcileFunc
	Emitter   EventEmitter
	Logger    *slog.Logger
}

// Controller runs the save protocol for one document:
//
//	Idle ──Schedule──▶ PendingTimer ──timer──▶ Sending ──done──▶ Idle
//	                     ▲  │ Schedule re-arms        │ Schedule
//	                     └──┘                         ▼
//	                          Sending ◀──done── PendingWhileSending
//
// A delta parked while sending is sent exactly once right after the
// in-flight save completes, whatever its outcome.
type Controller struct {
	snippetID string
	remote    Remote
	reconcile ReconcileFunc
	emitter   EventEmitter
	log       *slog.Logger
	delay     time.Duration
	timeout   time.Duration

	mu         sync.Mutex
	state      State
	pending    *domain.DocumentPatch
	pendingSeq uint64
	timer      *time.Timer
	gen        uint64
	idle       chan struct{}
	closed     bool
	lastErr    error
	lastSaved  time.Time
}

func New(snippetID string, remote Remote, opts Options) *Controller {
	c := &Controller{
		snippetID: snippetID,
		remote:    remote,
		reconcile: opts.Reconcile,
		emitter:   opts.Emitter,
		log:       opts.Logger,
		delay:     opts.Delay,
		timeout:   opts.Timeout,
		idle:      closedChan(),
	}
	if c.delay <= 0 {
		c.delay = DefaultDelay
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

func (c *Controller) SnippetID() string { return c.snippetID }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HasUnsavedChanges reports whether a delta is pending, in flight, or left
// over from a failed save.
func (c *Controller) HasUnsavedChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != Idle || c.pending != nil
}

// LastSaved returns the time of the last successful save.
func (c *Controller) LastSaved() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSaved
}

// Schedule records a local delta. seq is the local edit sequence the delta
// is current at. Pending deltas merge; later fields win.
func (c *Controller) Schedule(p domain.DocumentPatch, seq uint64) {
	if p.Empty() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if c.pending == nil {
		c.pending = &p
	} else {
		merged := c.pending.Merge(p)
		c.pending = &merged
	}
	c.pendingSeq = max(c.pendingSeq, seq)

	switch c.state {
	case Idle:
		c.idle = make(chan struct{})
		c.state = PendingTimer
		c.armLocked()
	case PendingTimer:
		c.armLocked()
	case Sending:
		c.state = PendingWhileSending
	case PendingWhileSending:
		// Parked delta already replaced above.
	}
}

// Flush sends any pending delta now and waits until no save is pending or
// in flight. It returns the error of the last save attempt.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case Idle:
		if c.pending == nil {
			c.mu.Unlock()
			return nil
		}
		c.idle = make(chan struct{})
		p, seq := c.takeLocked()
		go c.run(p, seq)
	case PendingTimer:
		p, seq := c.takeLocked()
		go c.run(p, seq)
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
	case <-ctx.Done():
		return fmt.Errorf("flush snippet %s: %w", c.snippetID, ctx.Err())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close stops the debounce timer and ignores further deltas. A pending,
// unsent delta is dropped; call Flush first to keep it. A save already in
// flight completes.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.state == PendingTimer {
		c.state = Idle
		c.pending = nil
		close(c.idle)
	}
}

// ConfirmExit returns true when leaving is safe. With unsaved changes the
// decision is delegated to confirm, a blocking prompt.
func (c *Controller) ConfirmExit(confirm func(msg string) bool) bool {
	if !c.HasUnsavedChanges() {
		return true
	}
	return confirm(exitPrompt)
}

// ── internals ───────────────────────────────────────────────

func (c *Controller) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(c.delay, func() { c.fire(gen) })
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if c.state != PendingTimer || gen != c.gen {
		c.mu.Unlock()
		return
	}
	p, seq := c.takeLocked()
	c.mu.Unlock()
	c.run(p, seq)
}

// takeLocked moves the pending delta into the Sending state.
func (c *Controller) takeLocked() (domain.DocumentPatch, uint64) {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	p := *c.pending
	seq := c.pendingSeq
	c.pending = nil
	c.state = Sending
	return p, seq
}

func (c *Controller) run(p domain.DocumentPatch, seq uint64) {
	for {
		err := c.send(p, seq)

		c.mu.Lock()
		if err != nil {
			// Keep the failed fields under any newer delta so the next
			// cycle carries them.
			if c.pending == nil {
				c.pending = &p
			} else {
				merged := p.Merge(*c.pending)
				c.pending = &merged
			}
			c.pendingSeq = max(c.pendingSeq, seq)
		}
		if c.state == PendingWhileSending {
			p, seq = c.takeLocked()
			c.mu.Unlock()
			continue
		}
		c.state = Idle
		c.lastErr = err
		if err == nil {
			c.lastSaved = time.Now()
		}
		close(c.idle)
		c.mu.Unlock()
		return
	}
}

func (c *Controller) send(p domain.DocumentPatch, seq uint64) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	resp, err := c.remote.UpdateSnippet(ctx, c.snippetID, p)
	if err != nil {
		saveErr := &SaveError{SnippetID: c.snippetID, Err: err, Message: err.Error()}
		c.log.Warn("autosave: save failed", "snippet", c.snippetID, "error", err)
		c.emit(EventSaveFailed, saveErr)
		return saveErr
	}

	if c.reconcile != nil && resp != nil {
		c.reconcile(covered(p, resp.Data), seq)
	}
	c.log.Debug("autosave: saved", "snippet", c.snippetID)
	if resp != nil {
		c.emit(EventSaved, SavedEvent{SnippetID: c.snippetID, UpdatedAt: resp.UpdatedAt})
	}
	return nil
}

func (c *Controller) emit(event string, data any) {
	if c.emitter != nil {
		c.emitter.Emit(context.Background(), event, data)
	}
}

// covered restricts the response to the fields the request carried.
func covered(req domain.DocumentPatch, resp domain.Document) domain.DocumentPatch {
	var out domain.DocumentPatch
	if req.Canvas != nil {
		c := resp.Canvas.Clone()
		out.Canvas = &c
	}
	if req.Elements != nil {
		out.Elements = domain.CloneElements(resp.Elements)
		if out.Elements == nil {
			out.Elements = []domain.Element{}
		}
	}
	return out
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
