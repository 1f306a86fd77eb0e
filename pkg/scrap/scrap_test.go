package scrap

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/parlance/pkg/dialog"
	"github.com/matzehuels/parlance/pkg/perrors"
)

const testKey = "guard-1a2b3c4d"

func newTestManager(t *testing.T) (*Manager, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewManager(store, 0, log.New(io.Discard)), store
}

func newTestEngine() *dialog.Ops {
	logger := log.New(io.Discard)
	reg := dialog.NewLinkRegistry()
	return dialog.NewOps(reg, dialog.NewIndexManager(reg, logger), logger)
}

// buildAndDelete creates root Entry -> Reply -> Entry, deletes the root, and
// returns the engine, the emptied document, and the delete result.
func buildAndDelete(t *testing.T) (*dialog.Ops, *dialog.Document, *dialog.DeleteResult) {
	t.Helper()
	o := newTestEngine()
	d := dialog.NewDocument()
	e1, err := o.AddEntry(d, nil)
	if err != nil {
		t.Fatal(err)
	}
	e1.Text = map[string]string{"en": "Halt!"}
	r1, err := o.AddReply(d, e1)
	if err != nil {
		t.Fatal(err)
	}
	r1.Text = map[string]string{"en": "Just passing through."}
	if _, err := o.AddEntry(d, r1); err != nil {
		t.Fatal(err)
	}

	res, err := o.DeleteNode(d, e1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Removed) != 3 || d.NodeCount() != 0 {
		t.Fatalf("setup: removed %d nodes, doc holds %d", len(res.Removed), d.NodeCount())
	}
	return o, d, res
}

func TestAddCreatesBatch(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	_, _, res := buildAndDelete(t)

	batchID, err := m.Add(ctx, testKey, res.Removed, "delete", res.Hierarchy, "")
	if err != nil {
		t.Fatal(err)
	}
	if batchID == "" {
		t.Fatal("Add returned an empty batch id")
	}

	entries, err := m.Entries(ctx, testKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("archived %d entries, want 3", len(entries))
	}

	roots := 0
	byID := make(map[string]Entry)
	for _, e := range entries {
		if e.BatchID != batchID {
			t.Errorf("entry %s carries batch %s, want %s", e.ID, e.BatchID, batchID)
		}
		if e.Operation != "delete" {
			t.Errorf("operation = %q", e.Operation)
		}
		if e.IsBatchRoot {
			roots++
		}
		byID[e.ID] = e
	}
	if roots != 1 {
		t.Fatalf("batch has %d roots, want exactly 1", roots)
	}

	for _, e := range entries {
		if e.IsBatchRoot {
			if e.ParentID != "" || e.NestingLevel != 0 || e.ChildCount != 1 {
				t.Errorf("root entry = %+v", e)
			}
			continue
		}
		parent, ok := byID[e.ParentID]
		if !ok {
			t.Errorf("entry %s has dangling parent id %s", e.ID, e.ParentID)
			continue
		}
		if e.NestingLevel != parent.NestingLevel+1 {
			t.Errorf("nesting level %d under parent level %d", e.NestingLevel, parent.NestingLevel)
		}
	}
}

func TestAddExtendsExistingBatch(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	_, _, res := buildAndDelete(t)

	batchID, err := m.Add(ctx, testKey, res.Removed, "delete", res.Hierarchy, "")
	if err != nil {
		t.Fatal(err)
	}

	// Orphan cleanup reuses the batch: its parentless node hangs under the
	// existing root instead of becoming a second root.
	orphan := &dialog.Node{Kind: dialog.KindEntry, Text: map[string]string{"en": "stray"}}
	got, err := m.Add(ctx, testKey, []*dialog.Node{orphan}, "orphan_cleanup", nil, batchID)
	if err != nil {
		t.Fatal(err)
	}
	if got != batchID {
		t.Errorf("extending add returned batch %s, want %s", got, batchID)
	}

	entries, err := m.Entries(ctx, testKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("archive holds %d entries, want 4", len(entries))
	}
	roots := 0
	var rootID string
	for _, e := range entries {
		if e.IsBatchRoot {
			roots++
			rootID = e.ID
		}
	}
	if roots != 1 {
		t.Fatalf("batch has %d roots after extension, want 1", roots)
	}
	for _, e := range entries {
		if e.Operation == "orphan_cleanup" && e.ParentID != rootID {
			t.Error("orphan entry should attach under the batch root")
		}
		if e.IsBatchRoot && e.ChildCount != 2 {
			t.Errorf("root child count = %d, want 2 after extension", e.ChildCount)
		}
	}
}

func TestAddCyclicHierarchyElectsRoot(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)

	// Legacy documents can hold owning cycles; deleting one reports every
	// node with a parent. The archive must still come out with one root.
	a := &dialog.Node{Kind: dialog.KindEntry, Text: map[string]string{"en": "round and round"}}
	b := &dialog.Node{Kind: dialog.KindReply}
	hierarchy := map[*dialog.Node]*dialog.Node{a: b, b: a}

	if _, err := m.Add(ctx, testKey, []*dialog.Node{a, b}, "delete", hierarchy, ""); err != nil {
		t.Fatal(err)
	}

	// Inspect the persisted record directly: it must be valid as written,
	// not only after the load-time repair.
	persisted, err := store.Load(ctx, testKey)
	if err != nil {
		t.Fatal(err)
	}
	roots := 0
	for _, e := range persisted {
		if e.IsBatchRoot {
			roots++
			if e.ParentID != "" || e.NestingLevel != 0 {
				t.Errorf("elected root = %+v, want no parent at level 0", e)
			}
		}
	}
	if roots != 1 {
		t.Fatalf("persisted batch has %d roots, want exactly 1", roots)
	}
}

func TestRestoreBatchRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	o, d, res := buildAndDelete(t)

	batchID, err := m.Add(ctx, testKey, res.Removed, "delete", res.Hierarchy, "")
	if err != nil {
		t.Fatal(err)
	}

	nodes, err := m.RestoreBatch(ctx, testKey, batchID, d, o, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 3 || d.NodeCount() != 3 {
		t.Fatalf("restored %d nodes, doc holds %d; want 3/3", len(nodes), d.NodeCount())
	}

	// Shape: start Entry -> Reply -> Entry, content intact.
	if len(d.Starts) != 1 {
		t.Fatalf("starts = %d, want 1", len(d.Starts))
	}
	root := d.Starts[0].Target
	if root == nil || root.Kind != dialog.KindEntry || root.Text["en"] != "Halt!" {
		t.Fatalf("restored root = %+v", root)
	}
	if len(root.Pointers) != 1 || root.Pointers[0].Target.Kind != dialog.KindReply {
		t.Fatal("restored root lost its reply child")
	}
	reply := root.Pointers[0].Target
	if reply.Text["en"] != "Just passing through." {
		t.Error("restored reply lost its text")
	}
	if len(reply.Pointers) != 1 || reply.Pointers[0].Target.Kind != dialog.KindEntry {
		t.Fatal("restored reply lost its entry child")
	}

	if diags := o.ValidateIndices(d); len(diags) != 0 {
		t.Errorf("restore left %d index diagnostics", len(diags))
	}

	remaining, err := m.Entries(ctx, testKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Errorf("archive still holds %d entries after full restore", len(remaining))
	}
}

func TestRestoreBatchKindValidation(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	o := newTestEngine()
	d := dialog.NewDocument()

	reply := &dialog.Node{Kind: dialog.KindReply}
	batchID, err := m.Add(ctx, testKey, []*dialog.Node{reply}, "delete", nil, "")
	if err != nil {
		t.Fatal(err)
	}

	// A reply cannot hang off the document root; nothing may change.
	_, err = m.RestoreBatch(ctx, testKey, batchID, d, o, nil)
	if !perrors.Is(err, perrors.ErrCodeInvalidKind) {
		t.Fatalf("error = %v, want INVALID_KIND", err)
	}
	if d.NodeCount() != 0 {
		t.Error("failed restore mutated the document")
	}
	entries, _ := m.Entries(ctx, testKey)
	if len(entries) != 1 {
		t.Error("failed restore drained the archive")
	}
}

func TestRestoreSingleEntryPromotesNewRoot(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	o, d, res := buildAndDelete(t)

	batchID, err := m.Add(ctx, testKey, res.Removed, "delete", res.Hierarchy, "")
	if err != nil {
		t.Fatal(err)
	}

	entries, err := m.Entries(ctx, testKey)
	if err != nil {
		t.Fatal(err)
	}
	var rootID string
	for _, e := range entries {
		if e.IsBatchRoot {
			rootID = e.ID
		}
	}

	node, err := m.Restore(ctx, testKey, rootID, d, o, nil)
	if err != nil {
		t.Fatal(err)
	}
	if node == nil || !d.Contains(node) {
		t.Fatal("restored node missing from the document")
	}

	remaining, err := m.Entries(ctx, testKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 2 {
		t.Fatalf("archive holds %d entries, want 2", len(remaining))
	}
	roots := 0
	for _, e := range remaining {
		if e.BatchID == batchID && e.IsBatchRoot {
			roots++
		}
	}
	if roots != 1 {
		t.Errorf("remaining batch has %d roots, want a newly promoted 1", roots)
	}
}

func TestRestoreSubtree(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	o, d, res := buildAndDelete(t)

	if _, err := m.Add(ctx, testKey, res.Removed, "delete", res.Hierarchy, ""); err != nil {
		t.Fatal(err)
	}
	entries, err := m.Entries(ctx, testKey)
	if err != nil {
		t.Fatal(err)
	}

	// Pick the mid-level reply: restoring it must bring its child entry too.
	var replyID string
	for _, e := range entries {
		if e.Node.Kind == "reply" {
			replyID = e.ID
		}
	}

	// Replies need a live parent; rebuild one.
	host, err := o.AddEntry(d, nil)
	if err != nil {
		t.Fatal(err)
	}

	nodes, err := m.RestoreSubtree(ctx, testKey, replyID, d, o, host)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 2 {
		t.Fatalf("restored %d nodes, want reply plus its child", len(nodes))
	}
	if len(host.Pointers) != 1 || host.Pointers[0].Target.Kind != dialog.KindReply {
		t.Fatal("subtree root did not attach under the requested parent")
	}

	remaining, _ := m.Entries(ctx, testKey)
	if len(remaining) != 1 || !remaining[0].IsBatchRoot {
		t.Errorf("remaining = %+v, want just the original batch root", remaining)
	}
}

func TestRestoreMissingEntry(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	o := newTestEngine()
	d := dialog.NewDocument()

	if _, err := m.Restore(ctx, testKey, "nope", d, o, nil); !perrors.Is(err, perrors.ErrCodeEntryNotFound) {
		t.Errorf("error = %v, want NOT_FOUND_ENTRY", err)
	}
	if _, err := m.RestoreBatch(ctx, testKey, "nope", d, o, nil); !perrors.Is(err, perrors.ErrCodeBatchNotFound) {
		t.Errorf("error = %v, want NOT_FOUND_BATCH", err)
	}
}

func TestUndecodableEntrySkippedOnRestore(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)
	o, d, res := buildAndDelete(t)

	batchID, err := m.Add(ctx, testKey, res.Removed, "delete", res.Hierarchy, "")
	if err != nil {
		t.Fatal(err)
	}

	// Corrupt the deepest entry's kind in place.
	entries, _ := store.Load(ctx, testKey)
	for i := range entries {
		if entries[i].NestingLevel == 2 {
			entries[i].Node.Kind = "garbled"
		}
	}
	if err := store.Save(ctx, testKey, entries); err != nil {
		t.Fatal(err)
	}

	nodes, err := m.RestoreBatch(ctx, testKey, batchID, d, o, nil)
	if err != nil {
		t.Fatalf("restore should skip bad entries, got %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("restored %d nodes, want the 2 decodable ones", len(nodes))
	}

	remaining, _ := m.Entries(ctx, testKey)
	if len(remaining) != 1 || remaining[0].Node.Kind != "garbled" {
		t.Errorf("undecodable entry should stay archived, remaining = %+v", remaining)
	}
}

func TestRestoreCyclicBatch(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)
	o := newTestEngine()
	d := dialog.NewDocument()

	// A legacy archive of a deleted two-node cycle: each entry records the
	// other as its parent and no entry carries the root flag. Restoration
	// must terminate and bring both nodes back exactly once.
	now := time.Now()
	cyclic := []Entry{
		{ID: "a", BatchID: "loop", ParentID: "b", DeletedAt: now, Node: NodeSnapshot{Kind: "entry", Text: map[string]string{"en": "round"}}},
		{ID: "b", BatchID: "loop", ParentID: "a", DeletedAt: now, Node: NodeSnapshot{Kind: "reply"}},
	}
	if err := store.Save(ctx, testKey, cyclic); err != nil {
		t.Fatal(err)
	}

	nodes, err := m.RestoreBatch(ctx, testKey, "loop", d, o, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 2 || d.NodeCount() != 2 {
		t.Fatalf("restored %d nodes, doc holds %d; want 2/2", len(nodes), d.NodeCount())
	}
	if len(d.Starts) != 1 || d.Starts[0].Target.Kind != dialog.KindEntry {
		t.Fatal("restored batch root did not become a start entry")
	}
	root := d.Starts[0].Target
	if len(root.Pointers) != 1 || root.Pointers[0].Target.Kind != dialog.KindReply {
		t.Error("cycle partner should attach under the elected root exactly once")
	}
	if diags := o.ValidateIndices(d); len(diags) != 0 {
		t.Errorf("restore left %d index diagnostics", len(diags))
	}
	remaining, _ := m.Entries(ctx, testKey)
	if len(remaining) != 0 {
		t.Errorf("archive still holds %d entries after the restore", len(remaining))
	}
}

func TestBatchRootRepairOnLoad(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)

	now := time.Now()
	damaged := []Entry{
		// Batch "a": two roots.
		{ID: "a1", BatchID: "a", IsBatchRoot: true, DeletedAt: now, Node: NodeSnapshot{Kind: "entry"}},
		{ID: "a2", BatchID: "a", IsBatchRoot: true, DeletedAt: now, Node: NodeSnapshot{Kind: "entry"}},
		// Batch "b": no root at all.
		{ID: "b1", BatchID: "b", ParentID: "b2", DeletedAt: now, Node: NodeSnapshot{Kind: "reply"}},
		{ID: "b2", BatchID: "b", DeletedAt: now, Node: NodeSnapshot{Kind: "entry"}},
	}
	if err := store.Save(ctx, testKey, damaged); err != nil {
		t.Fatal(err)
	}

	entries, err := m.Entries(ctx, testKey)
	if err != nil {
		t.Fatal(err)
	}
	roots := map[string]int{}
	for _, e := range entries {
		if e.IsBatchRoot {
			roots[e.BatchID]++
		}
	}
	if roots["a"] != 1 || roots["b"] != 1 {
		t.Errorf("roots per batch = %v, want exactly one each", roots)
	}

	// The repair must be persisted, not just returned.
	persisted, _ := store.Load(ctx, testKey)
	persistedRoots := 0
	for _, e := range persisted {
		if e.IsBatchRoot {
			persistedRoots++
		}
	}
	if persistedRoots != 2 {
		t.Errorf("persisted roots = %d, want 2", persistedRoots)
	}
}

func TestRetentionPurge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store, time.Hour, log.New(io.Discard))

	old := []Entry{{
		ID: "old", BatchID: "x", IsBatchRoot: true,
		DeletedAt: time.Now().Add(-2 * time.Hour),
		Node:      NodeSnapshot{Kind: "entry"},
	}}
	if err := store.Save(ctx, testKey, old); err != nil {
		t.Fatal(err)
	}

	// The next save-triggering add drops expired entries.
	fresh := &dialog.Node{Kind: dialog.KindEntry}
	if _, err := m.Add(ctx, testKey, []*dialog.Node{fresh}, "delete", nil, ""); err != nil {
		t.Fatal(err)
	}

	entries, _ := m.Entries(ctx, testKey)
	if len(entries) != 1 || entries[0].ID == "old" {
		t.Errorf("expired entry survived the purge: %+v", entries)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	_, _, res := buildAndDelete(t)

	if _, err := m.Add(ctx, testKey, res.Removed, "delete", res.Hierarchy, ""); err != nil {
		t.Fatal(err)
	}
	if err := m.Clear(ctx, testKey); err != nil {
		t.Fatal(err)
	}
	entries, err := m.Entries(ctx, testKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("archive holds %d entries after Clear", len(entries))
	}
}
