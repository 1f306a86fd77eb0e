// Package editor composes the dialog engine into a single editing session:
// one document, its undo history, and its scrap archive, behind a facade that
// enforces the save-state-then-mutate discipline every structural edit needs.
package editor

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/parlance/pkg/dialog"
	"github.com/matzehuels/parlance/pkg/observability"
	"github.com/matzehuels/parlance/pkg/perrors"
	"github.com/matzehuels/parlance/pkg/scrap"
)

// Options configures a session.
type Options struct {
	// UndoCapacity bounds the undo stack. Zero selects the engine default.
	UndoCapacity int

	// Scrap receives deleted nodes. Nil disables archiving; deletions are
	// then unrecoverable beyond undo.
	Scrap *scrap.Manager

	// Logger defaults to the package default logger.
	Logger *log.Logger
}

// Session owns one open dialog document and everything stateful around it.
// Every mutating method saves an undo snapshot before touching the document
// and discards it again when validation rejects the edit, so the undo stack
// only ever holds states that preceded a real change.
//
// Like the engine underneath, a session is not safe for concurrent use.
type Session struct {
	doc   *dialog.Document
	ops   *dialog.Ops
	undo  *dialog.UndoManager
	scrap *scrap.Manager

	fileKey string
	log     *log.Logger
}

// NewSession creates a session for the document. The sourcePath identifies
// the file being edited and is reduced to the storage key under which
// deleted nodes are archived.
func NewSession(doc *dialog.Document, sourcePath string, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	reg := dialog.NewLinkRegistry()
	idx := dialog.NewIndexManager(reg, logger)
	ops := dialog.NewOps(reg, idx, logger)
	if doc == nil {
		doc = dialog.NewDocument()
	}
	ops.Recalculate(doc)

	return &Session{
		doc:     doc,
		ops:     ops,
		undo:    dialog.NewUndoManager(opts.UndoCapacity, logger),
		scrap:   opts.Scrap,
		fileKey: perrors.SanitizeFileKey(sourcePath),
		log:     logger,
	}
}

// Document returns the live document. Callers must not mutate it
// structurally; use the session's methods.
func (s *Session) Document() *dialog.Document { return s.doc }

// Ops exposes the underlying mutation front-end for read-only lookups such
// as FindParentNode.
func (s *Session) Ops() *dialog.Ops { return s.ops }

// FileKey returns the storage key derived from the source path.
func (s *Session) FileKey() string { return s.fileKey }

// =============================================================================
// Structural edits
// =============================================================================

// AddEntry adds an Entry node under parent (nil for the document root).
func (s *Session) AddEntry(ctx context.Context, parent *dialog.Node, uiContext any) (*dialog.Node, error) {
	return s.addNode(ctx, "add_entry", parent, uiContext, s.ops.AddEntry)
}

// AddReply adds a Reply node under parent.
func (s *Session) AddReply(ctx context.Context, parent *dialog.Node, uiContext any) (*dialog.Node, error) {
	return s.addNode(ctx, "add_reply", parent, uiContext, s.ops.AddReply)
}

// AddSmart adds a node whose kind is inferred from the parent.
func (s *Session) AddSmart(ctx context.Context, parent *dialog.Node, uiContext any) (*dialog.Node, error) {
	return s.addNode(ctx, "add_smart", parent, uiContext, s.ops.AddSmart)
}

func (s *Session) addNode(ctx context.Context, op string, parent *dialog.Node, uiContext any, add func(*dialog.Document, *dialog.Node) (*dialog.Node, error)) (*dialog.Node, error) {
	s.saveState(ctx, uiContext)
	start := time.Now()
	n, err := add(s.doc, parent)
	if err != nil {
		s.undo.Discard()
	}
	s.finishOp(ctx, op, start, err)
	return n, err
}

// DeleteResult extends the engine's delete outcome with the scrap batch the
// removed nodes were archived under. BatchID is empty when no archive is
// configured or nothing was removed.
type DeleteResult struct {
	*dialog.DeleteResult
	BatchID string
}

// Delete removes node and its exclusively owned subtree, then archives the
// removed nodes. The primary set and the orphan sweep's victims land in the
// same scrap batch under distinct operation labels, so a later batch restore
// brings back everything the one user action took away.
//
// Archiving failure does not undo the deletion; the document change stands
// and the error reports the lost archive write.
func (s *Session) Delete(ctx context.Context, node *dialog.Node, uiContext any) (*DeleteResult, error) {
	s.saveState(ctx, uiContext)
	start := time.Now()
	res, err := s.ops.DeleteNode(s.doc, node)
	if err != nil {
		s.undo.Discard()
		s.finishOp(ctx, "delete", start, err)
		return nil, err
	}
	s.finishOp(ctx, "delete", start, nil)

	out := &DeleteResult{DeleteResult: res}
	if s.scrap == nil {
		return out, nil
	}
	batchID, err := s.scrap.Add(ctx, s.fileKey, res.Removed, "delete", res.Hierarchy, "")
	if err != nil {
		return out, err
	}
	out.BatchID = batchID
	if len(res.Orphans) > 0 {
		if _, err := s.scrap.Add(ctx, s.fileKey, res.Orphans, "orphan_cleanup", res.Hierarchy, batchID); err != nil {
			return out, err
		}
	}
	return out, nil
}

// Move re-hangs one occurrence of node under newParent at insertIndex.
// sourcePtr selects the occurrence when the node is shared; nil means the
// first pointer found.
func (s *Session) Move(ctx context.Context, node *dialog.Node, sourcePtr *dialog.Pointer, newParent *dialog.Node, insertIndex int, uiContext any) error {
	s.saveState(ctx, uiContext)
	start := time.Now()
	err := s.ops.MoveNodeToPosition(s.doc, node, sourcePtr, newParent, insertIndex)
	if err != nil {
		s.undo.Discard()
	}
	s.finishOp(ctx, "move", start, err)
	return err
}

// MoveUp swaps p with its preceding sibling under parent.
// Returns false (and records nothing undoable) at the boundary.
func (s *Session) MoveUp(ctx context.Context, parent *dialog.Node, p *dialog.Pointer, uiContext any) bool {
	s.saveState(ctx, uiContext)
	if !s.ops.MoveUp(s.doc, parent, p) {
		s.undo.Discard()
		return false
	}
	observability.Mutation().OnOperation(ctx, "move_up", 0, nil)
	return true
}

// MoveDown swaps p with its following sibling under parent.
func (s *Session) MoveDown(ctx context.Context, parent *dialog.Node, p *dialog.Pointer, uiContext any) bool {
	s.saveState(ctx, uiContext)
	if !s.ops.MoveDown(s.doc, parent, p) {
		s.undo.Discard()
		return false
	}
	observability.Mutation().OnOperation(ctx, "move_down", 0, nil)
	return true
}

// =============================================================================
// History
// =============================================================================

// Undo replaces the document with the previous snapshot and returns the UI
// context captured with it. The boolean is false when nothing can be undone.
func (s *Session) Undo(ctx context.Context, uiContext any) (any, bool) {
	snap, ok := s.undo.Undo(s.doc, uiContext)
	if !ok {
		return nil, false
	}
	s.doc = snap.Doc
	s.ops.Recalculate(s.doc)
	observability.Undo().OnUndo(ctx)
	return snap.Context, true
}

// Redo is the symmetric counterpart of Undo.
func (s *Session) Redo(ctx context.Context, uiContext any) (any, bool) {
	snap, ok := s.undo.Redo(s.doc, uiContext)
	if !ok {
		return nil, false
	}
	s.doc = snap.Doc
	s.ops.Recalculate(s.doc)
	observability.Undo().OnRedo(ctx)
	return snap.Context, true
}

// CanUndo reports whether history holds an undoable state.
func (s *Session) CanUndo() bool { return s.undo.CanUndo() }

// CanRedo reports whether history holds a redoable state.
func (s *Session) CanRedo() bool { return s.undo.CanRedo() }

// ClearHistory drops all undo and redo snapshots.
func (s *Session) ClearHistory() { s.undo.Clear() }

// =============================================================================
// Scrap archive
// =============================================================================

var errNoScrap = perrors.New(perrors.ErrCodeStorage, "no scrap archive configured")

// ScrapEntries lists the archived entries for this session's file.
func (s *Session) ScrapEntries(ctx context.Context) ([]scrap.Entry, error) {
	if s.scrap == nil {
		return nil, errNoScrap
	}
	return s.scrap.Entries(ctx, s.fileKey)
}

// RestoreEntry brings a single archived node back under parent.
func (s *Session) RestoreEntry(ctx context.Context, entryID string, parent *dialog.Node, uiContext any) (*dialog.Node, error) {
	if s.scrap == nil {
		return nil, errNoScrap
	}
	s.saveState(ctx, uiContext)
	start := time.Now()
	n, err := s.scrap.Restore(ctx, s.fileKey, entryID, s.doc, s.ops, parent)
	if err != nil {
		s.undo.Discard()
	}
	s.finishOp(ctx, "restore_entry", start, err)
	return n, err
}

// RestoreBatch brings a whole deletion batch back under parent.
func (s *Session) RestoreBatch(ctx context.Context, batchID string, parent *dialog.Node, uiContext any) ([]*dialog.Node, error) {
	if s.scrap == nil {
		return nil, errNoScrap
	}
	s.saveState(ctx, uiContext)
	start := time.Now()
	nodes, err := s.scrap.RestoreBatch(ctx, s.fileKey, batchID, s.doc, s.ops, parent)
	if err != nil {
		s.undo.Discard()
	}
	s.finishOp(ctx, "restore_batch", start, err)
	return nodes, err
}

// RestoreSubtree brings one archived entry and its recorded descendants back
// under parent.
func (s *Session) RestoreSubtree(ctx context.Context, entryID string, parent *dialog.Node, uiContext any) ([]*dialog.Node, error) {
	if s.scrap == nil {
		return nil, errNoScrap
	}
	s.saveState(ctx, uiContext)
	start := time.Now()
	nodes, err := s.scrap.RestoreSubtree(ctx, s.fileKey, entryID, s.doc, s.ops, parent)
	if err != nil {
		s.undo.Discard()
	}
	s.finishOp(ctx, "restore_subtree", start, err)
	return nodes, err
}

// ClearScrap drops this file's whole archive.
func (s *Session) ClearScrap(ctx context.Context) error {
	if s.scrap == nil {
		return errNoScrap
	}
	return s.scrap.Clear(ctx, s.fileKey)
}

// =============================================================================
// Internals
// =============================================================================

func (s *Session) saveState(ctx context.Context, uiContext any) {
	s.undo.SaveState(s.doc, uiContext)
	observability.Undo().OnSnapshot(ctx, s.undo.Depth())
}

// finishOp emits the operation hook and, after successful mutations, the
// recalculation hook with the current diagnostic count.
func (s *Session) finishOp(ctx context.Context, op string, start time.Time, err error) {
	observability.Mutation().OnOperation(ctx, op, time.Since(start), err)
	if err == nil {
		diags := s.ops.ValidateIndices(s.doc)
		observability.Mutation().OnRecalculate(ctx, s.doc.NodeCount(), len(diags))
	}
}
