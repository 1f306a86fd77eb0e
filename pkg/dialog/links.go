package dialog

// LinkRegistry is the reverse index of the document graph: for every node it
// records the pointers currently targeting it, from Starts and from any
// node's outgoing list. Every other component uses it to answer "who points
// at this node" in O(1) when reasoning about sharing and orphaning.
//
// Registry operations never fail. Looking up a node with no registered
// pointers returns an empty result, since "no incoming links" is a valid
// state for a node that has not been attached yet.
type LinkRegistry struct {
	incoming map[*Node][]*Pointer
}

// NewLinkRegistry creates an empty registry.
func NewLinkRegistry() *LinkRegistry {
	return &LinkRegistry{incoming: make(map[*Node][]*Pointer)}
}

// Register records p under its target node. Registering the same pointer
// twice, or a pointer without a target, is a no-op.
func (r *LinkRegistry) Register(p *Pointer) {
	if p == nil || p.Target == nil {
		return
	}
	for _, q := range r.incoming[p.Target] {
		if q == p {
			return
		}
	}
	r.incoming[p.Target] = append(r.incoming[p.Target], p)
}

// Unregister removes the record for p. No-op if the pointer was never
// registered.
func (r *LinkRegistry) Unregister(p *Pointer) {
	if p == nil || p.Target == nil {
		return
	}
	ptrs := r.incoming[p.Target]
	for i, q := range ptrs {
		if q == p {
			ptrs = append(ptrs[:i], ptrs[i+1:]...)
			if len(ptrs) == 0 {
				delete(r.incoming, p.Target)
			} else {
				r.incoming[p.Target] = ptrs
			}
			return
		}
	}
}

// LinksTo returns all pointers currently targeting n. The returned slice is
// a copy and may be retained by the caller.
func (r *LinkRegistry) LinksTo(n *Node) []*Pointer {
	ptrs := r.incoming[n]
	if len(ptrs) == 0 {
		return nil
	}
	out := make([]*Pointer, len(ptrs))
	copy(out, ptrs)
	return out
}

// HasLinks reports whether any pointer targets n.
func (r *LinkRegistry) HasLinks(n *Node) bool {
	return len(r.incoming[n]) > 0
}

// Rebuild clears the registry and re-scans the entire document. It is used
// after bulk operations where incremental register/unregister calls would be
// error-prone, e.g. after an index recalculation or an undo restore.
func (r *LinkRegistry) Rebuild(d *Document) {
	r.incoming = make(map[*Node][]*Pointer)
	d.EachPointer(func(_ *Node, p *Pointer) {
		r.Register(p)
	})
}

// UpdateNodeIndex sets the Index field of every registered pointer to n in
// one pass. This is what lets a list-position change propagate to all
// referencing pointers without walking the whole document again.
func (r *LinkRegistry) UpdateNodeIndex(n *Node, index int) {
	for _, p := range r.incoming[n] {
		p.Index = index
	}
}
