// Package app provides application state, events, theming, and lifecycle
// helpers for the RefView host.
package app

import (
	"fmt"
	"sync"

	"refview/internal/overlay"
	"refview/internal/session"
	"refview/pkg/geometry"
)

// State holds the host document: the ordered reference list, the selected
// index, and the global overlay toggle. Every mutation emits an event; the
// viewport listens and requests a redraw, so property changes repaint
// without the data model knowing about the UI.
//
// State implements overlay.Source.
type State struct {
	mu sync.RWMutex

	// Session
	SessionPath string
	Modified    bool

	references []*overlay.Record
	selected   int
	enabled    bool

	listeners map[EventType][]EventListener
}

// EventType identifies different application events.
type EventType int

const (
	EventReferencesChanged EventType = iota // list mutated (add/remove/move)
	EventReferenceRemoved                   // data: removed source path (string)
	EventReferenceEdited                    // data: record index (int)
	EventSelectionChanged                   // data: selected index (int)
	EventEnabledChanged                     // data: enabled flag (bool)
	EventSessionLoaded                      // data: session path (string)
	EventSessionSaved                       // data: session path (string)
	EventModified                           // data: modified flag (bool)
)

// EventListener receives event notifications.
type EventListener func(data interface{})

// NewState creates a new application state with overlays enabled.
func NewState() *State {
	return &State{
		enabled:   true,
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetModified marks the session as modified and emits an event.
func (s *State) SetModified(modified bool) {
	s.mu.Lock()
	changed := s.Modified != modified
	s.Modified = modified
	s.mu.Unlock()
	if changed {
		s.Emit(EventModified, modified)
	}
}

// Enabled reports the global overlay toggle.
func (s *State) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SetEnabled toggles all overlays on or off.
func (s *State) SetEnabled(enabled bool) {
	s.mu.Lock()
	changed := s.enabled != enabled
	s.enabled = enabled
	s.mu.Unlock()
	if changed {
		s.Emit(EventEnabledChanged, enabled)
	}
}

// Records returns the reference records in paint order. The slice is a
// snapshot; the records themselves are shared.
func (s *State) Records() []*overlay.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*overlay.Record, len(s.references))
	copy(out, s.references)
	return out
}

// Len returns the number of references.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.references)
}

// RecordAt returns the record at index, or nil if out of range.
func (s *State) RecordAt(index int) *overlay.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.references) {
		return nil
	}
	return s.references[index]
}

// Selected returns the selected index. The index is list position state,
// not part of any record.
func (s *State) Selected() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// SetSelected changes the selected index. Out-of-range values are a no-op.
func (s *State) SetSelected(index int) {
	s.mu.Lock()
	if index < 0 || index >= len(s.references) || index == s.selected {
		s.mu.Unlock()
		return
	}
	s.selected = index
	s.mu.Unlock()
	s.Emit(EventSelectionChanged, index)
}

// AddReference appends a record for the image at path and selects it.
func (s *State) AddReference(path string) *overlay.Record {
	rec := overlay.NewRecord(path)
	s.mu.Lock()
	s.references = append(s.references, rec)
	s.selected = len(s.references) - 1
	selected := s.selected
	s.mu.Unlock()

	s.Emit(EventReferencesChanged, nil)
	s.Emit(EventSelectionChanged, selected)
	s.SetModified(true)
	return rec
}

// RemoveSelected removes the selected record. A no-op when nothing is
// selected or the list is empty. Emits EventReferenceRemoved with the
// removed record's source path so the viewport can release its texture.
func (s *State) RemoveSelected() {
	s.mu.Lock()
	idx := s.selected
	if idx < 0 || idx >= len(s.references) {
		s.mu.Unlock()
		return
	}
	path := s.references[idx].SourcePath
	s.references = append(s.references[:idx], s.references[idx+1:]...)
	if idx > 0 {
		s.selected = idx - 1
	} else {
		s.selected = 0
	}
	selected := s.selected
	s.mu.Unlock()

	s.Emit(EventReferenceRemoved, path)
	s.Emit(EventReferencesChanged, nil)
	s.Emit(EventSelectionChanged, selected)
	s.SetModified(true)
}

// MoveSelected moves the selected record by delta positions (-1 = up,
// +1 = down). Moving past either end is a no-op. Reordering changes paint
// order only; no record's geometry or cache entry is touched.
func (s *State) MoveSelected(delta int) {
	s.mu.Lock()
	from := s.selected
	to := from + delta
	if from < 0 || from >= len(s.references) || to < 0 || to >= len(s.references) {
		s.mu.Unlock()
		return
	}
	s.references[from], s.references[to] = s.references[to], s.references[from]
	s.selected = to
	s.mu.Unlock()

	s.Emit(EventReferencesChanged, nil)
	s.Emit(EventSelectionChanged, to)
	s.SetModified(true)
}

// PathInUse reports whether any record references the given source path.
func (s *State) PathInUse(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.references {
		if rec.SourcePath == path {
			return true
		}
	}
	return false
}

// editRecord applies fn to the record at index and emits the edit event.
// Out-of-range indices are a no-op; fn returns false to report no change.
func (s *State) editRecord(index int, fn func(*overlay.Record) bool) {
	s.mu.Lock()
	if index < 0 || index >= len(s.references) {
		s.mu.Unlock()
		return
	}
	if !fn(s.references[index]) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.Emit(EventReferenceEdited, index)
	s.SetModified(true)
}

// SetName renames the record at index.
func (s *State) SetName(index int, name string) {
	s.editRecord(index, func(r *overlay.Record) bool {
		if r.Name == name {
			return false
		}
		r.Name = name
		return true
	})
}

// SetVisible toggles the record at index.
func (s *State) SetVisible(index int, visible bool) {
	s.editRecord(index, func(r *overlay.Record) bool {
		if r.Visible == visible {
			return false
		}
		r.Visible = visible
		return true
	})
}

// SetPosition moves the record at index. Position is the quad's bottom-left
// corner in viewport pixels.
func (s *State) SetPosition(index int, pos geometry.Point2D) {
	s.editRecord(index, func(r *overlay.Record) bool {
		if r.Position == pos {
			return false
		}
		r.Position = pos
		return true
	})
}

// SetScale changes the per-axis scale factors of the record at index.
func (s *State) SetScale(index int, scale geometry.Point2D) {
	s.editRecord(index, func(r *overlay.Record) bool {
		if r.Scale == scale {
			return false
		}
		r.Scale = scale
		return true
	})
}

// SetOpacity changes the opacity of the record at index, clamped to [0,1].
func (s *State) SetOpacity(index int, opacity float64) {
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}
	s.editRecord(index, func(r *overlay.Record) bool {
		if r.Opacity == opacity {
			return false
		}
		r.Opacity = opacity
		return true
	})
}

// SetFlipX mirrors the record's texture coordinates horizontally.
func (s *State) SetFlipX(index int, flip bool) {
	s.editRecord(index, func(r *overlay.Record) bool {
		if r.FlipX == flip {
			return false
		}
		r.FlipX = flip
		return true
	})
}

// SetFlipY mirrors the record's texture coordinates vertically.
func (s *State) SetFlipY(index int, flip bool) {
	s.editRecord(index, func(r *overlay.Record) bool {
		if r.FlipY == flip {
			return false
		}
		r.FlipY = flip
		return true
	})
}

// LoadSession replaces the document with the session stored at path.
func (s *State) LoadSession(path string) error {
	doc, err := session.Load(path)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	s.mu.Lock()
	s.references = doc.References
	s.enabled = doc.Enabled
	s.selected = doc.Selected
	if s.selected < 0 || s.selected >= len(s.references) {
		s.selected = 0
	}
	s.SessionPath = path
	s.Modified = false
	s.mu.Unlock()

	s.Emit(EventSessionLoaded, path)
	s.Emit(EventReferencesChanged, nil)
	s.Emit(EventEnabledChanged, doc.Enabled)
	return nil
}

// SaveSession writes the document to path and clears the modified flag.
func (s *State) SaveSession(path string) error {
	s.mu.RLock()
	doc := session.New()
	doc.References = make([]*overlay.Record, len(s.references))
	copy(doc.References, s.references)
	doc.Enabled = s.enabled
	doc.Selected = s.selected
	s.mu.RUnlock()

	if err := doc.Save(path); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s.mu.Lock()
	s.SessionPath = path
	s.Modified = false
	s.mu.Unlock()

	s.Emit(EventSessionSaved, path)
	return nil
}
