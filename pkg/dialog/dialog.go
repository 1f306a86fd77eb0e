// Package dialog implements the in-memory consistency engine for branching
// dialog documents: NPC "entry" lines and PC "reply" lines connected by
// directed, index-addressed pointers.
//
// Nodes live in flat, positionally indexed lists on the [Document], and every
// [Pointer] carries the list position of its target. Any edit that changes a
// list's length invalidates every pointer whose index is now stale, so the
// package centralizes all structural mutation behind [Ops] and restores the
// index invariant through [IndexManager] after each operation.
//
// The same node may be referenced from multiple places: either through
// several owning (non-link) pointers from different parents, or through link
// pointers that act as read-only bookmarks. Both forms of sharing are legal
// and must survive deletion of any single referrer. [LinkRegistry] provides
// the reverse "who points at this node" view every component relies on to
// reason about sharing and orphaning.
//
// The engine is single-threaded: a Document is owned exclusively
// by one editing session, mutations are discrete user actions, and nothing
// here is safe for concurrent use without external synchronization.
package dialog

import "fmt"

// Kind distinguishes the two node types of a dialog document.
type Kind int

const (
	// KindEntry is an NPC dialogue line.
	KindEntry Kind = iota
	// KindReply is a PC (player) dialogue line.
	KindReply
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindEntry:
		return "entry"
	case KindReply:
		return "reply"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a serialized kind name back to a Kind.
// The boolean reports whether the name was recognized.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "entry":
		return KindEntry, true
	case "reply":
		return KindReply, true
	default:
		return KindEntry, false
	}
}

// Node represents one line of dialogue. A node does not know its own
// position; position is implicit in which container list holds it, and every
// pointer targeting the node carries that position as its index.
//
// The zero value is not directly usable - nodes are created by [Ops] so that
// registration and index bookkeeping stay consistent.
type Node struct {
	Kind Kind

	// Text maps a language id (e.g. "en", "de") to the localized line.
	Text    map[string]string
	Speaker string
	Comment string

	// Sound references an audio asset by name; resolution is the concern of
	// external asset collaborators.
	Sound string

	// Action names a script run when the line plays, with its parameters.
	Action       string
	ActionParams map[string]string

	Animation     string
	AnimationLoop bool

	// Delay in seconds before the line is presented.
	Delay float64

	QuestTag   string
	QuestEntry string

	// Pointers holds the node's outgoing edges in presentation order.
	// These are the node's structural children plus any link bookmarks.
	Pointers []*Pointer
}

// Pointer is a directed edge from a parent context (a node, or the document
// root) to a target node. Index is the position of Target within its kind's
// list and is the field that must stay in sync with list membership.
type Pointer struct {
	Target *Node
	Kind   Kind // kind of the target
	Index  int  // position of Target in its kind's list

	// IsLink marks the edge as a read-only cross-reference to a node owned
	// elsewhere. Link edges are never traversed for ownership, and their
	// targets are never deleted as a side effect of deleting the link's owner.
	IsLink bool

	// IsStart is true only for root-level pointers held in Document.Starts.
	IsStart bool

	// Condition names a script evaluated to decide traversal.
	Condition       string
	ConditionParams map[string]string

	// Comment is edge-local, distinct from the target node's own comment.
	// It is the place for notes on a link edge, since the target's comment
	// belongs to the target's owner.
	Comment string
}

// Document owns the three containers of a dialog file: the Entry list, the
// Reply list, and the root-level start pointers. A node's position in
// Entries or Replies is its canonical index.
type Document struct {
	Entries []*Node
	Replies []*Node
	Starts  []*Pointer
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{}
}

// List returns the container holding nodes of the given kind.
func (d *Document) List(k Kind) []*Node {
	if k == KindReply {
		return d.Replies
	}
	return d.Entries
}

// IndexOf returns the position of n in its kind's list, or -1 if the node
// is not part of the document.
func (d *Document) IndexOf(n *Node) int {
	if n == nil {
		return -1
	}
	for i, m := range d.List(n.Kind) {
		if m == n {
			return i
		}
	}
	return -1
}

// Contains reports whether n is held in one of the document's lists.
func (d *Document) Contains(n *Node) bool {
	return d.IndexOf(n) >= 0
}

// NodeCount returns the total number of nodes across both lists.
func (d *Document) NodeCount() int {
	return len(d.Entries) + len(d.Replies)
}

// EachNode calls fn for every node in the document, Entries first.
// Iteration stops early when fn returns false.
func (d *Document) EachNode(fn func(*Node) bool) {
	for _, n := range d.Entries {
		if !fn(n) {
			return
		}
	}
	for _, n := range d.Replies {
		if !fn(n) {
			return
		}
	}
}

// EachPointer calls fn for every pointer in the document: the start pointers
// first, then every node's outgoing pointers. The owner argument is nil for
// start pointers.
func (d *Document) EachPointer(fn func(owner *Node, p *Pointer)) {
	for _, p := range d.Starts {
		fn(nil, p)
	}
	d.EachNode(func(n *Node) bool {
		for _, p := range n.Pointers {
			fn(n, p)
		}
		return true
	})
}

// removeNode deletes n from its kind's list by identity.
// Reports whether the node was present.
func (d *Document) removeNode(n *Node) bool {
	list := d.List(n.Kind)
	for i, m := range list {
		if m == n {
			list = append(list[:i], list[i+1:]...)
			if n.Kind == KindReply {
				d.Replies = list
			} else {
				d.Entries = list
			}
			return true
		}
	}
	return false
}

// CanParent reports whether a child of the given kind may hang under
// parent, nil meaning the document root. The root accepts Entry nodes only,
// an Entry's children must be Reply nodes, and a Reply accepts either kind
// (chained PC responses are permitted).
func CanParent(parent *Node, child Kind) bool {
	if parent == nil {
		return child == KindEntry
	}
	if parent.Kind == KindEntry {
		return child == KindReply
	}
	return true
}
