// Package editor holds the in-memory state of one open snippet: the
// document, the selection and the viewport. A Store is scoped to a single
// editor session and is never shared between documents.
package editor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"snippets/internal/domain"
	"snippets/internal/richtext"
)

var (
	ErrDuplicateElement = errors.New("element id already exists")
	ErrInvalidElement   = errors.New("invalid element")
	ErrVariantMismatch  = errors.New("patch does not match element type")
	ErrInvalidAlignment = errors.New("unknown alignment")
)

// DuplicateOffset is added to both axes of a duplicated element's position.
const DuplicateOffset = 10

// Origin tells subscribers where a change came from. Remote changes are
// reconciliations with the persistence collaborator and must not be saved
// back.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

type ChangeKind string

const (
	ChangeReplaced       ChangeKind = "replaced"
	ChangeCanvas         ChangeKind = "canvas"
	ChangeElementAdded   ChangeKind = "element-added"
	ChangeElementUpdated ChangeKind = "element-updated"
	ChangeElementRemoved ChangeKind = "element-removed"
	ChangeElementMoved   ChangeKind = "element-moved"
	ChangeSelection      ChangeKind = "selection"
	ChangeViewport       ChangeKind = "viewport"
)

// Change describes one completed mutation. Patch holds the document fields
// the mutation touched and is empty for view-state changes. Document is the
// full state after the mutation. Seq is the store's local edit counter after
// the mutation; remote changes do not advance it.
type Change struct {
	Kind      ChangeKind
	Origin    Origin
	ElementID string
	Patch     domain.DocumentPatch
	Document  domain.Document
	Seq       uint64
}

// Persistent reports whether the change touched the saved document.
func (c Change) Persistent() bool {
	return !c.Patch.Empty()
}

type Listener func(Change)

type Viewport struct {
	Zoom   float64         `json:"zoom"`
	Offset domain.Position `json:"offset"`
}

type Option func(*Store)

// WithIDGenerator replaces the uuid generator used for duplicated elements.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithSanitizer replaces the rich-text sanitizer applied to text values.
func WithSanitizer(fn func(string) string) Option {
	return func(s *Store) { s.sanitize = fn }
}

// Store owns one document. Every mutation runs to completion under the
// store lock and then notifies subscribers in registration order. Listeners
// may read the store but must not mutate it synchronously.
type Store struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	doc      domain.Document
	selected string
	viewport Viewport

	listeners []subscription
	nextSub   int

	// seq counts local persistent edits; canvasSeq and elementsSeq record
	// the edit that last touched each field.
	seq         uint64
	canvasSeq   uint64
	elementsSeq uint64

	newID    func() string
	sanitize func(string) string
}

type subscription struct {
	id int
	fn Listener
}

type touched int

const (
	touchCanvas touched = 1 << iota
	touchElements
)

// New creates a store seeded with doc. The caller keeps ownership of doc;
// the store works on a deep copy.
func New(doc domain.Document, opts ...Option) *Store {
	s := &Store{
		doc:      doc.Clone(),
		viewport: Viewport{Zoom: 1},
		newID:    func() string { return uuid.New().String() },
		sanitize: richtext.Sanitize,
	}
	if s.doc.Elements == nil {
		s.doc.Elements = []domain.Element{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ── Reads ───────────────────────────────────────────────────

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

func (s *Store) Elements() []domain.Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneElements(s.doc.Elements)
}

func (s *Store) Element(id string) (domain.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return domain.Element{}, false
	}
	return s.doc.Elements[i].Clone(), true
}

func (s *Store) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Store) Viewport() Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// ── Document ────────────────────────────────────────────────

// ReplaceDocument shallow-merges p into the document. Fields absent from p
// are kept. The selection is cleared if the selected element disappears.
func (s *Store) ReplaceDocument(p domain.DocumentPatch, origin Origin) error {
	if p.Empty() {
		return nil
	}
	if p.Elements != nil {
		seen := make(map[string]bool, len(p.Elements))
		els := make([]domain.Element, len(p.Elements))
		for i, el := range p.Elements {
			if seen[el.ID] {
				return fmt.Errorf("replace document: %w: %q", ErrDuplicateElement, el.ID)
			}
			seen[el.ID] = true
			el = s.cleanText(el.Clone())
			if err := el.Validate(); err != nil {
				return fmt.Errorf("replace document: %w: %w", ErrInvalidElement, err)
			}
			els[i] = el
		}
		p.Elements = els
	}

	s.mu.Lock()
	s.merge(p, origin)
	return nil
}

// Reconcile merges an authoritative response for a save whose content was
// current as of local edit basis. Fields edited locally after basis are
// kept: the response carries whole fields, and applying them would roll
// back those edits before the later save that carries them wins on the
// server. The store converges on the last write either way.
func (s *Store) Reconcile(p domain.DocumentPatch, basis uint64) {
	s.mu.Lock()
	if p.Canvas != nil && s.canvasSeq > basis {
		p.Canvas = nil
	}
	if p.Elements != nil && s.elementsSeq > basis {
		p.Elements = nil
	}
	if p.Empty() {
		s.mu.Unlock()
		return
	}
	s.merge(p, OriginRemote)
}

// merge must be called with s.mu held; it releases it.
func (s *Store) merge(p domain.DocumentPatch, origin Origin) {
	s.doc = p.Apply(s.doc)
	if s.selected != "" && s.indexOf(s.selected) < 0 {
		s.selected = ""
	}
	var t touched
	if p.Canvas != nil {
		t |= touchCanvas
	}
	if p.Elements != nil {
		t |= touchElements
	}
	s.publish(Change{Kind: ChangeReplaced, Origin: origin}, t)
}

// SetCanvas updates the canvas, applying linked resize to its size.
func (s *Store) SetCanvas(p domain.CanvasPatch) error {
	s.mu.Lock()
	next := applyCanvas(s.doc.Canvas, p)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("set canvas: %w", err)
	}
	s.doc.Canvas = next
	s.publish(Change{Kind: ChangeCanvas, Origin: OriginLocal}, touchCanvas)
	return nil
}

// ── Elements ────────────────────────────────────────────────

// AddElement inserts a fully formed element on top of the stack and
// selects it.
func (s *Store) AddElement(el domain.Element) error {
	el = s.cleanText(el.Clone())
	if err := el.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidElement, err)
	}

	s.mu.Lock()
	if s.indexOf(el.ID) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("add element: %w: %q", ErrDuplicateElement, el.ID)
	}
	s.doc.Elements = append([]domain.Element{el}, s.doc.Elements...)
	s.selected = el.ID
	s.publish(Change{Kind: ChangeElementAdded, Origin: OriginLocal, ElementID: el.ID}, touchElements)
	return nil
}

// UpdateElement applies p to the element with the given id. Unknown ids are
// a no-op. A patch for the other variant is rejected.
func (s *Store) UpdateElement(id string, p domain.ElementPatch) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	next, ok := p.ApplyTo(s.doc.Elements[i])
	if !ok {
		typ := s.doc.Elements[i].Type()
		s.mu.Unlock()
		return fmt.Errorf("update element %q (%s): %w", id, typ, ErrVariantMismatch)
	}
	next = s.cleanText(next)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrInvalidElement, err)
	}
	s.doc.Elements[i] = next
	s.publish(Change{Kind: ChangeElementUpdated, Origin: OriginLocal, ElementID: id}, touchElements)
	return nil
}

// UpdateElementTransform merges p into the element's transform, applying
// linked resize and minimum clamping. Unknown ids are a no-op.
func (s *Store) UpdateElementTransform(id string, p domain.TransformPatch) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	next := applyTransform(s.doc.Elements[i].Transform, p)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrInvalidElement, err)
	}
	s.doc.Elements[i].Transform = next
	s.publish(Change{Kind: ChangeElementUpdated, Origin: OriginLocal, ElementID: id}, touchElements)
	return nil
}

// RemoveElement deletes the element. Removing an unknown id is a no-op.
func (s *Store) RemoveElement(id string) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.doc.Elements = append(s.doc.Elements[:i:i], s.doc.Elements[i+1:]...)
	if s.selected == id {
		s.selected = ""
	}
	s.publish(Change{Kind: ChangeElementRemoved, Origin: OriginLocal, ElementID: id}, touchElements)
}

// DuplicateElement inserts a deep copy of the element on top, offset by
// DuplicateOffset on both axes, and selects it. It returns the new id, or ""
// when id is unknown.
func (s *Store) DuplicateElement(id string) string {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return ""
	}
	dup := s.doc.Elements[i].Clone()
	dup.ID = s.uniqueID()
	dup.Transform.Position.X += DuplicateOffset
	dup.Transform.Position.Y += DuplicateOffset

	s.doc.Elements = append([]domain.Element{dup}, s.doc.Elements...)
	s.selected = dup.ID
	s.publish(Change{Kind: ChangeElementAdded, Origin: OriginLocal, ElementID: dup.ID}, touchElements)
	return dup.ID
}

// AlignElement moves the element against the canvas on one axis. Unknown
// ids are a no-op.
func (s *Store) AlignElement(id string, a Alignment) error {
	if !a.Valid() {
		return fmt.Errorf("align element: %w: %q", ErrInvalidAlignment, a)
	}
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	el := &s.doc.Elements[i]
	el.Transform.Position = align(s.doc.Canvas, el.Transform, a)
	s.publish(Change{Kind: ChangeElementUpdated, Origin: OriginLocal, ElementID: id}, touchElements)
	return nil
}

// MoveElement changes the z-order of an element. Index 0 is the top; the
// index is clamped to the sequence bounds.
func (s *Store) MoveElement(id string, index int) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	n := len(s.doc.Elements)
	index = max(0, min(index, n-1))
	if index == i {
		s.mu.Unlock()
		return
	}
	el := s.doc.Elements[i]
	rest := append(s.doc.Elements[:i:i], s.doc.Elements[i+1:]...)
	out := make([]domain.Element, 0, n)
	out = append(out, rest[:index]...)
	out = append(out, el)
	out = append(out, rest[index:]...)
	s.doc.Elements = out
	s.publish(Change{Kind: ChangeElementMoved, Origin: OriginLocal, ElementID: id}, touchElements)
}

// ── View state ──────────────────────────────────────────────

// SetSelectedElement selects id, or clears the selection when id is "".
// Unknown ids are ignored.
func (s *Store) SetSelectedElement(id string) {
	s.mu.Lock()
	if id != "" && s.indexOf(id) < 0 {
		s.mu.Unlock()
		return
	}
	s.selected = id
	s.publish(Change{Kind: ChangeSelection, Origin: OriginLocal, ElementID: id}, 0)
}

// SetZoom sets the viewport zoom. Non-positive values are ignored.
func (s *Store) SetZoom(zoom float64) {
	if zoom <= 0 {
		return
	}
	s.mu.Lock()
	s.viewport.Zoom = zoom
	s.publish(Change{Kind: ChangeViewport, Origin: OriginLocal}, 0)
}

func (s *Store) SetViewportOffset(p domain.Position) {
	s.mu.Lock()
	s.viewport.Offset = p
	s.publish(Change{Kind: ChangeViewport, Origin: OriginLocal}, 0)
}

// ── internals ───────────────────────────────────────────────

func (s *Store) indexOf(id string) int {
	for i := range s.doc.Elements {
		if s.doc.Elements[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) uniqueID() string {
	for {
		id := s.newID()
		if id != "" && s.indexOf(id) < 0 {
			return id
		}
	}
}

func (s *Store) cleanText(el domain.Element) domain.Element {
	if d, ok := el.Data.(*domain.TextData); ok && s.sanitize != nil {
		d.Value = s.sanitize(d.Value)
	}
	return el
}

// publish must be called with s.mu held; it releases it. Listeners run in
// order under notifyMu so changes are observed in mutation order.
func (s *Store) publish(ch Change, t touched) {
	if ch.Origin == OriginLocal && t != 0 {
		s.seq++
		if t&touchCanvas != 0 {
			s.canvasSeq = s.seq
		}
		if t&touchElements != 0 {
			s.elementsSeq = s.seq
		}
	}
	ch.Seq = s.seq
	ch.Document = s.doc.Clone()
	if t&touchCanvas != 0 {
		c := ch.Document.Canvas.Clone()
		ch.Patch.Canvas = &c
	}
	if t&touchElements != 0 {
		ch.Patch.Elements = domain.CloneElements(ch.Document.Elements)
	}
	listeners := make([]subscription, len(s.listeners))
	copy(listeners, s.listeners)

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, sub := range listeners {
		sub.fn(ch)
	}
}
