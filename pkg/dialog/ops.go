package dialog

import (
	"github.com/charmbracelet/log"

	"github.com/matzehuels/parlance/pkg/perrors"
)

// Ops is the only component permitted to add, delete, or move nodes. It
// encapsulates the two-phase "validate fully, then mutate" discipline the
// positional index model requires: there is no transaction or rollback
// mechanism, so once mutation begins it must not fail partway, and every
// precondition is checked before the first list is touched.
//
// Validation failures are returned as [perrors.Error] values with zero
// mutation performed; callers are expected to check and report, not crash.
type Ops struct {
	reg *LinkRegistry
	idx *IndexManager
	log *log.Logger
}

// NewOps creates the mutation front-end over a registry and index manager.
// A nil logger falls back to the default logger.
func NewOps(reg *LinkRegistry, idx *IndexManager, logger *log.Logger) *Ops {
	if logger == nil {
		logger = log.Default()
	}
	return &Ops{reg: reg, idx: idx, log: logger}
}

// Recalculate restores the pointer index invariant for the whole document.
// Exposed for callers performing bulk edits outside Ops (imports, restores).
func (o *Ops) Recalculate(d *Document) {
	o.idx.Recalculate(d)
}

// ValidateIndices runs the non-fatal index validation pass and returns its
// diagnostics.
func (o *Ops) ValidateIndices(d *Document) []Diagnostic {
	return o.idx.Validate(d)
}

// =============================================================================
// Add
// =============================================================================

// AddEntry appends a new empty Entry node and hangs it under parent, or
// under the document root when parent is nil.
func (o *Ops) AddEntry(d *Document, parent *Node) (*Node, error) {
	return o.add(d, parent, KindEntry)
}

// AddReply appends a new empty Reply node under parent. Reply nodes cannot
// be starts, so a nil parent is rejected.
func (o *Ops) AddReply(d *Document, parent *Node) (*Node, error) {
	return o.add(d, parent, KindReply)
}

// AddSmart picks the node kind from the insertion context: Entry at the
// root, Reply under an Entry, and Entry under a Reply (the common
// alternation). Use AddReply directly to chain PC responses.
func (o *Ops) AddSmart(d *Document, parent *Node) (*Node, error) {
	kind := KindEntry
	if parent != nil && parent.Kind == KindEntry {
		kind = KindReply
	}
	return o.add(d, parent, kind)
}

func (o *Ops) add(d *Document, parent *Node, kind Kind) (*Node, error) {
	if parent != nil && !d.Contains(parent) {
		return nil, perrors.New(perrors.ErrCodeNodeNotFound, "parent node is not part of the document")
	}
	if !CanParent(parent, kind) {
		return nil, perrors.New(perrors.ErrCodeInvalidKind, "cannot add %s node under %s", kind, parentKindName(parent))
	}

	n := &Node{Kind: kind, Text: make(map[string]string)}
	if kind == KindReply {
		d.Replies = append(d.Replies, n)
	} else {
		d.Entries = append(d.Entries, n)
	}

	p := &Pointer{
		Target:  n,
		Kind:    kind,
		Index:   len(d.List(kind)) - 1,
		IsStart: parent == nil,
	}
	if parent == nil {
		d.Starts = append(d.Starts, p)
	} else {
		parent.Pointers = append(parent.Pointers, p)
	}
	o.reg.Register(p)
	o.idx.Recalculate(d)

	o.log.Debug("added node", "kind", kind.String(), "index", p.Index, "start", p.IsStart)
	return n, nil
}

// AddLink creates a link pointer from owner to an existing node: a bookmark
// that replays target's branch without owning it. Start pointers are never
// links, so owner must be a node. List membership is unchanged, hence no
// recalculation.
func (o *Ops) AddLink(d *Document, owner, target *Node) (*Pointer, error) {
	if owner == nil {
		return nil, perrors.New(perrors.ErrCodeInvalidTarget, "link pointers need an owning node")
	}
	if !d.Contains(owner) {
		return nil, perrors.New(perrors.ErrCodeNodeNotFound, "link owner is not part of the document")
	}
	if target == nil || !d.Contains(target) {
		return nil, perrors.New(perrors.ErrCodeNodeNotFound, "link target is not part of the document")
	}
	if !CanParent(owner, target.Kind) {
		return nil, perrors.New(perrors.ErrCodeInvalidKind, "cannot link %s node under %s", target.Kind, parentKindName(owner))
	}

	p := &Pointer{
		Target: target,
		Kind:   target.Kind,
		Index:  d.IndexOf(target),
		IsLink: true,
	}
	owner.Pointers = append(owner.Pointers, p)
	o.reg.Register(p)

	o.log.Debug("added link", "kind", target.Kind.String(), "index", p.Index)
	return p, nil
}

// =============================================================================
// Delete
// =============================================================================

// DeleteResult reports the outcome of a DeleteNode call.
type DeleteResult struct {
	// Removed is the primary deletion set: the targeted node plus every
	// descendant whose only references came from within the set.
	Removed []*Node

	// Orphans are nodes removed in the post-deletion sweep because their
	// last incoming pointer disappeared as a side effect. Reported
	// separately from the primary set.
	Orphans []*Node

	// Shared are visited descendants that were preserved because another
	// parent or a link pointer from outside the deletion set still
	// references them. Intended for UI warnings.
	Shared []*Node

	// Hierarchy maps each removed node (primary or orphan) to its parent
	// within the removed set, nil for subtree roots. Consumed by the scrap
	// archive to reconstruct the deleted subtree's shape.
	Hierarchy map[*Node]*Node
}

// DeleteNode removes node and the part of its subtree it exclusively owns.
//
// The walk follows non-link pointers only: link edges are bookmarks and are
// never traversed for ownership. A descendant survives when any incoming
// owning pointer comes from outside the deletion set, or when it is the
// target of a link pointer whose owner survives. Surviving descendants are
// reported in [DeleteResult.Shared].
//
// After the primary set is detached, nodes left with zero incoming pointers
// are swept as orphans, reported distinctly, and removed as well. The caller
// is responsible for handing Removed and Orphans to the scrap archive.
func (o *Ops) DeleteNode(d *Document, node *Node) (*DeleteResult, error) {
	if node == nil || !d.Contains(node) {
		return nil, perrors.New(perrors.ErrCodeNodeNotFound, "node is not part of the document")
	}

	// Subtree walk over owning edges, recording visit order.
	visited := make(map[*Node]bool)
	var order []*Node
	stack := []*Node{node}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			continue
		}
		visited[n] = true
		order = append(order, n)
		for _, p := range n.Pointers {
			if !p.IsLink && p.Target != nil && !visited[p.Target] {
				stack = append(stack, p.Target)
			}
		}
	}

	// Ownership snapshot: which parent (nil for root) holds each pointer,
	// and which nodes own non-link edges to each target. Taken before any
	// mutation so orphan parentage can still be reconstructed afterwards.
	ptrOwner := make(map[*Pointer]*Node)
	owners := make(map[*Node][]*Node)
	d.EachPointer(func(own *Node, p *Pointer) {
		ptrOwner[p] = own
		if !p.IsLink && p.Target != nil {
			owners[p.Target] = append(owners[p.Target], own)
		}
	})

	// Grow the deletion set to a fixpoint. The targeted node is deleted
	// unconditionally; a descendant joins once every incoming pointer is
	// accounted for by the set.
	deleted := map[*Node]bool{node: true}
	for changed := true; changed; {
		changed = false
		for _, n := range order {
			if !deleted[n] && o.deletable(n, deleted, ptrOwner) {
				deleted[n] = true
				changed = true
			}
		}
	}

	res := &DeleteResult{Hierarchy: make(map[*Node]*Node)}
	for _, n := range order {
		if deleted[n] {
			res.Removed = append(res.Removed, n)
		} else if n != node {
			res.Shared = append(res.Shared, n)
		}
	}
	for _, n := range res.Removed {
		for _, own := range owners[n] {
			if own != nil && own != n && deleted[own] {
				res.Hierarchy[n] = own
				break
			}
		}
		if _, ok := res.Hierarchy[n]; !ok {
			res.Hierarchy[n] = nil
		}
	}

	// Detach: every incoming pointer to a deleted node leaves the registry,
	// and leaves its container when that container survives. Outgoing
	// pointers of deleted nodes are unregistered so surviving shared
	// children lose the edge from their deleted parent.
	for _, n := range res.Removed {
		for _, p := range o.reg.LinksTo(n) {
			o.reg.Unregister(p)
			own := ptrOwner[p]
			switch {
			case own == nil:
				d.Starts = removePointer(d.Starts, p)
			case !deleted[own]:
				own.Pointers = removePointer(own.Pointers, p)
			}
		}
		for _, p := range n.Pointers {
			o.reg.Unregister(p)
		}
	}
	for _, n := range res.Removed {
		d.removeNode(n)
	}

	// Orphan sweep: removing the set may have cut the last pointer to nodes
	// outside it. The registry is kept current incrementally above, so the
	// sweep can run before the final recalculation.
	removedSet := deleted
	for {
		var orphan *Node
		d.EachNode(func(n *Node) bool {
			if !o.reg.HasLinks(n) {
				orphan = n
				return false
			}
			return true
		})
		if orphan == nil {
			break
		}
		removedSet[orphan] = true
		res.Orphans = append(res.Orphans, orphan)
		res.Hierarchy[orphan] = nil
		for _, own := range owners[orphan] {
			if own != nil && removedSet[own] {
				res.Hierarchy[orphan] = own
				break
			}
		}
		for _, p := range orphan.Pointers {
			o.reg.Unregister(p)
		}
		d.removeNode(orphan)
	}

	o.idx.Recalculate(d)
	o.log.Debug("deleted subtree",
		"removed", len(res.Removed), "orphans", len(res.Orphans), "shared", len(res.Shared))
	return res, nil
}

// deletable reports whether n's incoming pointers are all owned by nodes
// already in the deletion set. A start pointer or a link from a surviving
// owner keeps the node alive.
func (o *Ops) deletable(n *Node, deleted map[*Node]bool, ptrOwner map[*Pointer]*Node) bool {
	for _, p := range o.reg.LinksTo(n) {
		own := ptrOwner[p]
		if own == nil || !deleted[own] {
			return false
		}
	}
	return true
}

// =============================================================================
// Move
// =============================================================================

// MoveNodeToPosition re-hangs one occurrence of node under newParent (nil
// for the document root) at insertIndex within the destination pointer list.
//
// Phase one validates without mutating: kind compatibility with the new
// parent, that the new parent is not the node itself or inside its owned
// subtree (such a move would cut the whole branch loose from the start
// pointers), reachability of the new parent from the start pointers (moving
// into a detached branch would make the node invisible even though
// structurally present), and the exact pointer to detach. When sourcePtr is
// supplied it selects the occurrence to move, which matters when the node is
// shared; otherwise the first pointer targeting the node is used.
//
// Phase two removes the located pointer from its old container and inserts
// the same pointer object into the new one. List membership of nodes is
// unchanged, so no index recalculation is needed.
func (o *Ops) MoveNodeToPosition(d *Document, node *Node, sourcePtr *Pointer, newParent *Node, insertIndex int) error {
	if node == nil || !d.Contains(node) {
		return perrors.New(perrors.ErrCodeNodeNotFound, "node is not part of the document")
	}
	if newParent != nil && !d.Contains(newParent) {
		return perrors.New(perrors.ErrCodeNodeNotFound, "new parent is not part of the document")
	}
	if !CanParent(newParent, node.Kind) {
		return perrors.New(perrors.ErrCodeInvalidKind, "cannot move %s node under %s", node.Kind, parentKindName(newParent))
	}
	if newParent != nil && inOwnedSubtree(node, newParent) {
		return perrors.New(perrors.ErrCodeInvalidTarget, "cannot move a node under itself or its own subtree")
	}
	if newParent != nil && !reachableFromStarts(d, newParent) {
		return perrors.New(perrors.ErrCodeUnreachableParent, "new parent is not reachable from any start pointer")
	}

	ptr := sourcePtr
	if ptr != nil {
		if ptr.Target != node {
			return perrors.New(perrors.ErrCodePointerNotFound, "source pointer does not target the moved node")
		}
		if !pointerPresent(d, ptr) {
			return perrors.New(perrors.ErrCodePointerNotFound, "source pointer is not part of the document")
		}
	} else {
		ptr = firstPointerTo(d, node)
		if ptr == nil {
			return perrors.New(perrors.ErrCodePointerNotFound, "no pointer to the node exists")
		}
	}

	// Mutation starts here. Removal failing after the checks above would
	// mean the containers changed underneath us; abort without inserting so
	// the pointer is never duplicated.
	if !o.detachPointer(d, ptr) {
		return perrors.New(perrors.ErrCodePointerNotFound, "pointer vanished from its container")
	}

	ptr.IsStart = newParent == nil
	if newParent == nil {
		d.Starts = insertPointer(d.Starts, ptr, insertIndex)
	} else {
		newParent.Pointers = insertPointer(newParent.Pointers, ptr, insertIndex)
	}

	o.log.Debug("moved node", "kind", node.Kind.String(), "toRoot", newParent == nil, "at", insertIndex)
	return nil
}

// MoveUp swaps p with its preceding sibling in parent's pointer list, or in
// Starts when parent is nil. Returns false at the boundary or when the
// pointer is not in the list.
func (o *Ops) MoveUp(d *Document, parent *Node, p *Pointer) bool {
	list := d.Starts
	if parent != nil {
		list = parent.Pointers
	}
	i := indexOfPointer(list, p)
	if i <= 0 {
		return false
	}
	list[i-1], list[i] = list[i], list[i-1]
	return true
}

// MoveDown swaps p with its following sibling. Returns false at the boundary
// or when the pointer is not in the list.
func (o *Ops) MoveDown(d *Document, parent *Node, p *Pointer) bool {
	list := d.Starts
	if parent != nil {
		list = parent.Pointers
	}
	i := indexOfPointer(list, p)
	if i < 0 || i >= len(list)-1 {
		return false
	}
	list[i], list[i+1] = list[i+1], list[i]
	return true
}

// =============================================================================
// Attach (scrap restore support)
// =============================================================================

// AttachNode re-adds a detached node to the document under parent (nil for
// the root), creating a fresh non-link pointer. Kind compatibility is
// validated exactly as for a move. The node is appended to its kind's list
// if not already present, so existing indices are unaffected; callers
// performing multi-node restores run Recalculate once when done.
func (o *Ops) AttachNode(d *Document, node *Node, parent *Node) (*Pointer, error) {
	if node == nil {
		return nil, perrors.New(perrors.ErrCodeInvalidTarget, "cannot attach a nil node")
	}
	if parent != nil && !d.Contains(parent) {
		return nil, perrors.New(perrors.ErrCodeNodeNotFound, "parent node is not part of the document")
	}
	if !CanParent(parent, node.Kind) {
		return nil, perrors.New(perrors.ErrCodeInvalidKind, "cannot attach %s node under %s", node.Kind, parentKindName(parent))
	}

	if !d.Contains(node) {
		if node.Kind == KindReply {
			d.Replies = append(d.Replies, node)
		} else {
			d.Entries = append(d.Entries, node)
		}
	}
	p := &Pointer{
		Target:  node,
		Kind:    node.Kind,
		Index:   d.IndexOf(node),
		IsStart: parent == nil,
	}
	if parent == nil {
		d.Starts = append(d.Starts, p)
	} else {
		parent.Pointers = append(parent.Pointers, p)
	}
	o.reg.Register(p)
	return p, nil
}

// =============================================================================
// Lookup helpers
// =============================================================================

// FindParentNode returns the first node owning a non-link pointer to node,
// or nil when the node hangs off the root or has no owner.
func (o *Ops) FindParentNode(d *Document, node *Node) *Node {
	var parent *Node
	d.EachPointer(func(own *Node, p *Pointer) {
		if parent == nil && own != nil && !p.IsLink && p.Target == node {
			parent = own
		}
	})
	return parent
}

// FindSiblingForFocus returns the node the UI should focus after node is
// deleted: the preceding sibling in the first container referencing node,
// else the following sibling, else the parent itself. Returns nil for a
// start node with no siblings.
func (o *Ops) FindSiblingForFocus(d *Document, node *Node) *Node {
	parent, list := containerOf(d, node)
	if list == nil {
		return nil
	}
	i := -1
	for j, p := range list {
		if p.Target == node {
			i = j
			break
		}
	}
	for j := i - 1; j >= 0; j-- {
		if t := list[j].Target; t != nil && t != node {
			return t
		}
	}
	for j := i + 1; j < len(list); j++ {
		if t := list[j].Target; t != nil && t != node {
			return t
		}
	}
	return parent
}

// containerOf finds the first pointer list referencing node, along with the
// node owning it (nil for Starts).
func containerOf(d *Document, node *Node) (*Node, []*Pointer) {
	for _, p := range d.Starts {
		if p.Target == node {
			return nil, d.Starts
		}
	}
	var owner *Node
	d.EachNode(func(n *Node) bool {
		for _, p := range n.Pointers {
			if p.Target == node {
				owner = n
				return false
			}
		}
		return true
	})
	if owner != nil {
		return owner, owner.Pointers
	}
	return nil, nil
}

// inOwnedSubtree reports whether candidate is node itself or a descendant
// reached through owning pointers. Link edges do not count: they never hold
// the branch up, so a move under a link target cannot detach it.
func inOwnedSubtree(node, candidate *Node) bool {
	visited := make(map[*Node]bool)
	stack := []*Node{node}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			continue
		}
		if n == candidate {
			return true
		}
		visited[n] = true
		for _, p := range n.Pointers {
			if !p.IsLink && p.Target != nil && !visited[p.Target] {
				stack = append(stack, p.Target)
			}
		}
	}
	return false
}

// reachableFromStarts walks depth-first from every start pointer, following
// owning and link edges alike, and reports whether target is visited.
func reachableFromStarts(d *Document, target *Node) bool {
	visited := make(map[*Node]bool)
	var stack []*Node
	for _, p := range d.Starts {
		if p.Target != nil {
			stack = append(stack, p.Target)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			continue
		}
		if n == target {
			return true
		}
		visited[n] = true
		for _, p := range n.Pointers {
			if p.Target != nil && !visited[p.Target] {
				stack = append(stack, p.Target)
			}
		}
	}
	return false
}

func firstPointerTo(d *Document, node *Node) *Pointer {
	var found *Pointer
	d.EachPointer(func(_ *Node, p *Pointer) {
		if found == nil && p.Target == node {
			found = p
		}
	})
	return found
}

func pointerPresent(d *Document, ptr *Pointer) bool {
	present := false
	d.EachPointer(func(_ *Node, p *Pointer) {
		if p == ptr {
			present = true
		}
	})
	return present
}

// detachPointer removes ptr from whichever container holds it.
func (o *Ops) detachPointer(d *Document, ptr *Pointer) bool {
	if i := indexOfPointer(d.Starts, ptr); i >= 0 {
		d.Starts = append(d.Starts[:i], d.Starts[i+1:]...)
		return true
	}
	removed := false
	d.EachNode(func(n *Node) bool {
		if i := indexOfPointer(n.Pointers, ptr); i >= 0 {
			n.Pointers = append(n.Pointers[:i], n.Pointers[i+1:]...)
			removed = true
			return false
		}
		return true
	})
	return removed
}

func indexOfPointer(list []*Pointer, p *Pointer) int {
	for i, q := range list {
		if q == p {
			return i
		}
	}
	return -1
}

func removePointer(list []*Pointer, p *Pointer) []*Pointer {
	if i := indexOfPointer(list, p); i >= 0 {
		return append(list[:i], list[i+1:]...)
	}
	return list
}

func insertPointer(list []*Pointer, p *Pointer, at int) []*Pointer {
	if at < 0 || at > len(list) {
		at = len(list)
	}
	list = append(list, nil)
	copy(list[at+1:], list[at:])
	list[at] = p
	return list
}

func parentKindName(parent *Node) string {
	if parent == nil {
		return "the document root"
	}
	return "a " + parent.Kind.String() + " node"
}
