package scrap

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/parlance/pkg/dialog"
	"github.com/matzehuels/parlance/pkg/observability"
	"github.com/matzehuels/parlance/pkg/perrors"
)

// DefaultRetention is how long archived entries are kept when no retention
// window is configured.
const DefaultRetention = 30 * 24 * time.Hour

// Manager is the soft-delete archive front-end. It serializes deleted
// subtrees into hierarchy-annotated entries, persists them through a
// [Store], and restores them back into live documents.
//
// Entries older than the retention window are purged on every save.
type Manager struct {
	store     Store
	retention time.Duration
	log       *log.Logger
}

// NewManager creates a manager over the given store. Zero or negative
// retention selects DefaultRetention. A nil logger falls back to the
// default logger.
func NewManager(store Store, retention time.Duration, logger *log.Logger) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{store: store, retention: retention, log: logger}
}

// =============================================================================
// Archiving
// =============================================================================

// Add archives the given nodes under the file key. The hierarchy map (child
// node to parent node, as reported by a delete operation) reconstructs the
// deleted subtree's shape as parent/child entry links.
//
// An empty batchID starts a new deletion batch and designates exactly one
// batch root among the new entries. Passing a previous call's batch id
// extends that batch instead - the pattern used when orphan cleanup follows
// a primary deletion - and parentless additions are attached under the
// existing batch root. Returns the batch id.
func (m *Manager) Add(ctx context.Context, key string, nodes []*dialog.Node, operation string, hierarchy map[*dialog.Node]*dialog.Node, batchID string) (string, error) {
	if len(nodes) == 0 {
		return batchID, nil
	}
	entries, err := m.load(ctx, key)
	if err != nil {
		return "", err
	}

	newBatch := batchID == ""
	if newBatch {
		batchID = uuid.NewString()
	}

	idByNode := make(map[*dialog.Node]string, len(nodes))
	for _, n := range nodes {
		idByNode[n] = uuid.NewString()
	}

	now := time.Now()
	added := make([]Entry, 0, len(nodes))
	for _, n := range nodes {
		e := Entry{
			ID:        idByNode[n],
			BatchID:   batchID,
			Operation: operation,
			DeletedAt: now,
			Node:      snapshotNode(n),
		}
		if p := hierarchy[n]; p != nil {
			e.ParentID = idByNode[p]
		}
		e.NestingLevel = nestingLevel(n, hierarchy, idByNode)
		for _, other := range nodes {
			if hierarchy[other] == n {
				e.ChildCount++
			}
		}
		added = append(added, e)
	}

	if newBatch {
		rootSeen := false
		var rootID string
		for i := range added {
			if added[i].ParentID != "" {
				continue
			}
			if !rootSeen {
				added[i].IsBatchRoot = true
				rootSeen = true
				rootID = added[i].ID
			} else {
				// One root per batch: later parentless entries hang under it.
				added[i].ParentID = rootID
				added[i].NestingLevel = 1
			}
		}
		if !rootSeen {
			// A fully parented set (a deleted cycle) has no natural root;
			// break the cycle at the first entry so the archive never
			// persists a rootless batch.
			added[0].IsBatchRoot = true
			added[0].ParentID = ""
			added[0].NestingLevel = 0
		}
	} else {
		rootID, rootLevel := "", 0
		for i := range entries {
			if entries[i].BatchID == batchID && entries[i].IsBatchRoot {
				rootID = entries[i].ID
				rootLevel = entries[i].NestingLevel
				entries[i].ChildCount += countParentless(added)
				break
			}
		}
		if rootID != "" {
			for i := range added {
				if added[i].ParentID == "" {
					added[i].ParentID = rootID
					added[i].NestingLevel = rootLevel + 1
				}
			}
		}
	}

	entries = append(entries, added...)
	entries = m.purgeExpired(ctx, entries)
	if err := m.store.Save(ctx, key, entries); err != nil {
		return "", err
	}
	observability.Scrap().OnArchive(ctx, key, len(added))
	m.log.Debug("archived nodes", "key", key, "count", len(added), "batch", batchID)
	return batchID, nil
}

// Entries returns the archived entries for the file key, after the
// batch-root repair pass.
func (m *Manager) Entries(ctx context.Context, key string) ([]Entry, error) {
	return m.load(ctx, key)
}

// Clear drops the whole archive for the file key.
func (m *Manager) Clear(ctx context.Context, key string) error {
	if err := m.store.Delete(ctx, key); err != nil {
		return err
	}
	m.log.Debug("cleared scrap archive", "key", key)
	return nil
}

// Keys lists the file keys with archived entries.
func (m *Manager) Keys(ctx context.Context) ([]string, error) {
	return m.store.Keys(ctx)
}

// =============================================================================
// Restoration
// =============================================================================

// Restore brings a single archived entry back into the document as a child
// of parent (nil for the document root), validating kind compatibility
// exactly as a move does. On success the entry leaves the archive; a new
// batch root is elected if the restored entry carried the flag.
func (m *Manager) Restore(ctx context.Context, key, entryID string, d *dialog.Document, ops *dialog.Ops, parent *dialog.Node) (*dialog.Node, error) {
	entries, err := m.load(ctx, key)
	if err != nil {
		return nil, err
	}
	i := entryIndex(entries, entryID)
	if i < 0 {
		return nil, perrors.New(perrors.ErrCodeEntryNotFound, "scrap entry %s not found", entryID)
	}

	node, err := entries[i].Node.materialize()
	if err != nil {
		return nil, err
	}
	if _, err := ops.AttachNode(d, node, parent); err != nil {
		return nil, err
	}
	ops.Recalculate(d)

	batchID, wasRoot := entries[i].BatchID, entries[i].IsBatchRoot
	entries = append(entries[:i], entries[i+1:]...)
	if wasRoot {
		electBatchRoot(entries, batchID)
	}
	if err := m.store.Save(ctx, key, entries); err != nil {
		return node, err
	}
	observability.Scrap().OnRestore(ctx, key, 1)
	m.log.Debug("restored scrap entry", "key", key, "id", entryID)
	return node, nil
}

// RestoreBatch restores every entry of a deletion batch under parent,
// rebuilding the recorded subtree shape with fresh pointers.
func (m *Manager) RestoreBatch(ctx context.Context, key, batchID string, d *dialog.Document, ops *dialog.Ops, parent *dialog.Node) ([]*dialog.Node, error) {
	entries, err := m.load(ctx, key)
	if err != nil {
		return nil, err
	}
	var set []Entry
	for _, e := range entries {
		if e.BatchID == batchID {
			set = append(set, e)
		}
	}
	if len(set) == 0 {
		return nil, perrors.New(perrors.ErrCodeBatchNotFound, "scrap batch %s not found", batchID)
	}
	rootID := ""
	for _, e := range set {
		if e.IsBatchRoot {
			rootID = e.ID
			break
		}
	}
	return m.restoreSet(ctx, key, entries, set, rootID, d, ops, parent)
}

// RestoreSubtree restores one archived entry plus its recorded descendants
// under parent. After a partial restore, a new batch root is elected when
// the promoted-out entry carried the flag: the first remaining entry whose
// recorded parent is not itself in the remaining set.
func (m *Manager) RestoreSubtree(ctx context.Context, key, entryID string, d *dialog.Document, ops *dialog.Ops, parent *dialog.Node) ([]*dialog.Node, error) {
	entries, err := m.load(ctx, key)
	if err != nil {
		return nil, err
	}
	i := entryIndex(entries, entryID)
	if i < 0 {
		return nil, perrors.New(perrors.ErrCodeEntryNotFound, "scrap entry %s not found", entryID)
	}
	batchID := entries[i].BatchID

	// Collect the entry and every transitive descendant within its batch.
	inSet := map[string]bool{entryID: true}
	for changed := true; changed; {
		changed = false
		for _, e := range entries {
			if e.BatchID == batchID && !inSet[e.ID] && e.ParentID != "" && inSet[e.ParentID] {
				inSet[e.ID] = true
				changed = true
			}
		}
	}
	var set []Entry
	for _, e := range entries {
		if inSet[e.ID] {
			set = append(set, e)
		}
	}
	return m.restoreSet(ctx, key, entries, set, entryID, d, ops, parent)
}

// restoreSet materializes the selected entries and wires them in two
// passes: all nodes first, then edges through the entry-id to node map.
// Entries that fail to decode are logged and skipped while the rest still
// restore; entries whose parent is not in the restored set attach under the
// set's root. Successfully restored entries leave the archive.
func (m *Manager) restoreSet(ctx context.Context, key string, all, set []Entry, rootID string, d *dialog.Document, ops *dialog.Ops, parent *dialog.Node) ([]*dialog.Node, error) {
	byID := make(map[string]Entry, len(set))
	nodes := make(map[string]*dialog.Node, len(set))
	for _, e := range set {
		byID[e.ID] = e
		n, err := e.Node.materialize()
		if err != nil {
			m.log.Warn("skipping undecodable scrap entry", "key", key, "id", e.ID, "err", err)
			continue
		}
		nodes[e.ID] = n
	}

	rootNode := nodes[rootID]
	// Validate the attachment points before mutating anything: an
	// incompatible target location must leave scrap and document untouched.
	if rootNode != nil {
		if !dialog.CanParent(parent, rootNode.Kind) {
			return nil, perrors.New(perrors.ErrCodeInvalidKind, "cannot restore %s node under %s", rootNode.Kind, describeParent(parent))
		}
	} else {
		for _, e := range set {
			n := nodes[e.ID]
			if n == nil {
				continue
			}
			if nodes[e.ParentID] == nil && !dialog.CanParent(parent, n.Kind) {
				return nil, perrors.New(perrors.ErrCodeInvalidKind, "cannot restore %s node under %s", n.Kind, describeParent(parent))
			}
		}
	}

	// Attach root-first so parents exist before their children.
	var restored []*dialog.Node
	restoredIDs := make(map[string]bool)
	var attach func(id string, under *dialog.Node)
	attach = func(id string, under *dialog.Node) {
		// Parent records of a deleted cycle revisit entries; the first
		// attachment wins.
		if restoredIDs[id] {
			return
		}
		n := nodes[id]
		if n == nil {
			return
		}
		if _, err := ops.AttachNode(d, n, under); err != nil {
			m.log.Warn("skipping incompatible scrap entry", "key", key, "id", id, "err", err)
			return
		}
		restored = append(restored, n)
		restoredIDs[id] = true
		for _, e := range set {
			if e.ParentID == id {
				attach(e.ID, n)
			}
		}
	}

	if rootNode != nil {
		attach(rootID, parent)
	}
	// Entries whose recorded parent is outside the restored set (or failed
	// to decode) hang under the restored root, or under the target parent
	// when the root itself is gone.
	for _, e := range set {
		if restoredIDs[e.ID] || nodes[e.ID] == nil {
			continue
		}
		if e.ParentID == "" || !restoredIDs[e.ParentID] {
			under := rootNode
			if under == nil || !restoredIDs[rootID] {
				under = parent
			}
			attach(e.ID, under)
		}
	}
	ops.Recalculate(d)

	// Drop restored entries from the archive and heal the batch root.
	batches := make(map[string]bool)
	remaining := all[:0:0]
	for _, e := range all {
		if restoredIDs[e.ID] {
			batches[e.BatchID] = true
			continue
		}
		remaining = append(remaining, e)
	}
	for b := range batches {
		electBatchRoot(remaining, b)
	}
	if err := m.store.Save(ctx, key, remaining); err != nil {
		return restored, err
	}
	observability.Scrap().OnRestore(ctx, key, len(restored))
	m.log.Debug("restored scrap entries", "key", key, "count", len(restored))
	return restored, nil
}

// =============================================================================
// Internals
// =============================================================================

// load reads and repairs the archive: each batch must carry exactly one
// root entry. Repairs are persisted best-effort.
func (m *Manager) load(ctx context.Context, key string) ([]Entry, error) {
	entries, err := m.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if repairBatchRoots(entries) {
		m.log.Warn("repaired scrap batch roots", "key", key)
		if err := m.store.Save(ctx, key, entries); err != nil {
			m.log.Warn("persisting batch root repair failed", "key", key, "err", err)
		}
	}
	return entries, nil
}

// purgeExpired drops entries older than the retention window.
func (m *Manager) purgeExpired(ctx context.Context, entries []Entry) []Entry {
	cutoff := time.Now().Add(-m.retention)
	kept := entries[:0:0]
	purged := 0
	for _, e := range entries {
		if e.DeletedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	if purged > 0 {
		observability.Scrap().OnPurge(ctx, purged)
		m.log.Debug("purged expired scrap entries", "count", purged)
	}
	return kept
}

// repairBatchRoots enforces the one-root-per-batch invariant in place and
// reports whether anything changed.
func repairBatchRoots(entries []Entry) bool {
	ids := make(map[string]map[string]bool) // batch -> entry ids
	roots := make(map[string]int)
	for _, e := range entries {
		if ids[e.BatchID] == nil {
			ids[e.BatchID] = make(map[string]bool)
		}
		ids[e.BatchID][e.ID] = true
		if e.IsBatchRoot {
			roots[e.BatchID]++
		}
	}

	changed := false
	seen := make(map[string]bool)
	for i := range entries {
		b := entries[i].BatchID
		switch {
		case roots[b] == 1:
			continue
		case roots[b] > 1 && entries[i].IsBatchRoot:
			if seen[b] {
				entries[i].IsBatchRoot = false
				changed = true
			}
			seen[b] = true
		case roots[b] == 0 && !seen[b]:
			// Elect the first entry whose recorded parent is outside the batch.
			if entries[i].ParentID == "" || !ids[b][entries[i].ParentID] {
				entries[i].IsBatchRoot = true
				seen[b] = true
				changed = true
			}
		}
	}
	// A fully cyclic batch has no parentless entry; fall back to its first.
	for i := range entries {
		b := entries[i].BatchID
		if roots[b] == 0 && !seen[b] {
			entries[i].IsBatchRoot = true
			seen[b] = true
			changed = true
		}
	}
	return changed
}

// electBatchRoot promotes a new root for the batch when none remains:
// the first entry whose recorded parent is not itself in the remaining set.
func electBatchRoot(entries []Entry, batchID string) {
	ids := make(map[string]bool)
	for _, e := range entries {
		if e.BatchID == batchID {
			if e.IsBatchRoot {
				return
			}
			ids[e.ID] = true
		}
	}
	for i := range entries {
		if entries[i].BatchID == batchID && (entries[i].ParentID == "" || !ids[entries[i].ParentID]) {
			entries[i].IsBatchRoot = true
			return
		}
	}
}

func entryIndex(entries []Entry, id string) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}

func countParentless(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if e.ParentID == "" {
			n++
		}
	}
	return n
}

// nestingLevel walks the hierarchy chain within the archived set.
func nestingLevel(n *dialog.Node, hierarchy map[*dialog.Node]*dialog.Node, inSet map[*dialog.Node]string) int {
	level := 0
	for p := hierarchy[n]; p != nil; p = hierarchy[p] {
		if _, ok := inSet[p]; !ok {
			break
		}
		level++
		if level > len(inSet) {
			break
		}
	}
	return level
}

func describeParent(parent *dialog.Node) string {
	if parent == nil {
		return "the document root"
	}
	return "a " + parent.Kind.String() + " node"
}

// snapshotNode captures a node's content fields without its pointers.
func snapshotNode(n *dialog.Node) NodeSnapshot {
	s := NodeSnapshot{
		Kind:          n.Kind.String(),
		Speaker:       n.Speaker,
		Comment:       n.Comment,
		Sound:         n.Sound,
		Action:        n.Action,
		Animation:     n.Animation,
		AnimationLoop: n.AnimationLoop,
		Delay:         n.Delay,
		QuestTag:      n.QuestTag,
		QuestEntry:    n.QuestEntry,
	}
	if len(n.Text) > 0 {
		s.Text = make(map[string]string, len(n.Text))
		for k, v := range n.Text {
			s.Text[k] = v
		}
	}
	if len(n.ActionParams) > 0 {
		s.ActionParams = make(map[string]string, len(n.ActionParams))
		for k, v := range n.ActionParams {
			s.ActionParams[k] = v
		}
	}
	return s
}

// materialize rebuilds a detached node from the snapshot.
func (s NodeSnapshot) materialize() (*dialog.Node, error) {
	kind, ok := dialog.ParseKind(s.Kind)
	if !ok {
		return nil, perrors.New(perrors.ErrCodeDecode, "unknown node kind %q", s.Kind)
	}
	n := &dialog.Node{
		Kind:          kind,
		Text:          make(map[string]string, len(s.Text)),
		Speaker:       s.Speaker,
		Comment:       s.Comment,
		Sound:         s.Sound,
		Action:        s.Action,
		Animation:     s.Animation,
		AnimationLoop: s.AnimationLoop,
		Delay:         s.Delay,
		QuestTag:      s.QuestTag,
		QuestEntry:    s.QuestEntry,
	}
	for k, v := range s.Text {
		n.Text[k] = v
	}
	if len(s.ActionParams) > 0 {
		n.ActionParams = make(map[string]string, len(s.ActionParams))
		for k, v := range s.ActionParams {
			n.ActionParams[k] = v
		}
	}
	return n, nil
}
