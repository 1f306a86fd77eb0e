package dialog

import "github.com/charmbracelet/log"

// DefaultUndoCapacity bounds the undo stack when no capacity is configured.
const DefaultUndoCapacity = 30

// Snapshot is one saved document state. Context carries UI state (selection,
// expansion) captured alongside the clone; it is opaque to the engine and
// restored verbatim so an undo does not disorient the user.
type Snapshot struct {
	Doc     *Document
	Context any
}

// UndoManager implements whole-document undo/redo by snapshotting. A full
// deep clone around every mutation sidesteps the command-inversion problems
// the shared-node and link semantics would otherwise cause, at the cost of
// memory proportional to document size - acceptable at dialog-tree scale.
//
// Snapshots hold independent clones with no aliasing back into the live
// document. A re-entrancy guard suppresses SaveState while a restore is in
// progress, so a restore never records itself as a new undoable action.
type UndoManager struct {
	capacity  int
	undo      []*Snapshot
	redo      []*Snapshot
	restoring bool
	log       *log.Logger
}

// NewUndoManager creates an undo manager holding at most capacity
// snapshots; zero or negative capacity selects DefaultUndoCapacity.
func NewUndoManager(capacity int, logger *log.Logger) *UndoManager {
	if capacity <= 0 {
		capacity = DefaultUndoCapacity
	}
	if logger == nil {
		logger = log.Default()
	}
	return &UndoManager{capacity: capacity, log: logger}
}

// SaveState deep-clones the document onto the undo stack and clears the
// redo stack, since a new action invalidates redo history. The oldest
// snapshot is evicted beyond capacity. No-op while a restore is in flight.
func (m *UndoManager) SaveState(d *Document, uiContext any) {
	if m.restoring {
		return
	}
	m.undo = append(m.undo, &Snapshot{Doc: d.Clone(), Context: uiContext})
	if len(m.undo) > m.capacity {
		m.undo = m.undo[1:]
	}
	m.redo = nil
}

// Discard drops the most recent snapshot without restoring it. Callers use
// it when a state was saved ahead of an operation that then failed
// validation and mutated nothing.
func (m *UndoManager) Discard() {
	if n := len(m.undo); n > 0 {
		m.undo = m.undo[:n-1]
	}
}

// Undo pushes a clone of the current document onto the redo stack and
// returns the most recent undo snapshot. The second result is false when
// there is nothing to undo.
func (m *UndoManager) Undo(current *Document, uiContext any) (*Snapshot, bool) {
	if len(m.undo) == 0 {
		return nil, false
	}
	m.restoring = true
	defer func() { m.restoring = false }()

	m.redo = append(m.redo, &Snapshot{Doc: current.Clone(), Context: uiContext})
	s := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.log.Debug("undo", "remaining", len(m.undo))
	return s, true
}

// Redo is the symmetric counterpart of Undo, using the redo stack.
func (m *UndoManager) Redo(current *Document, uiContext any) (*Snapshot, bool) {
	if len(m.redo) == 0 {
		return nil, false
	}
	m.restoring = true
	defer func() { m.restoring = false }()

	m.undo = append(m.undo, &Snapshot{Doc: current.Clone(), Context: uiContext})
	s := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.log.Debug("redo", "remaining", len(m.redo))
	return s, true
}

// Depth returns the number of snapshots on the undo stack.
func (m *UndoManager) Depth() int { return len(m.undo) }

// CanUndo reports whether an undo snapshot is available.
func (m *UndoManager) CanUndo() bool { return len(m.undo) > 0 }

// CanRedo reports whether a redo snapshot is available.
func (m *UndoManager) CanRedo() bool { return len(m.redo) > 0 }

// Restoring reports whether a restore is currently in progress.
func (m *UndoManager) Restoring() bool { return m.restoring }

// Clear drops all undo and redo history, e.g. when a new file is opened.
func (m *UndoManager) Clear() {
	m.undo = nil
	m.redo = nil
}
