package dialog

import "maps"

// Clone returns an independent deep copy of the document with no aliasing
// back into the original.
//
// The copy runs in two passes: first every node is cloned without edges
// while an old-to-new map is built, then every pointer (including the start
// pointers) is cloned through that map. Cross-references and shared targets
// therefore land on the single clone of their node, preserving the
// shared-pointer topology exactly.
func (d *Document) Clone() *Document {
	clone := &Document{
		Entries: make([]*Node, 0, len(d.Entries)),
		Replies: make([]*Node, 0, len(d.Replies)),
		Starts:  make([]*Pointer, 0, len(d.Starts)),
	}

	mapping := make(map[*Node]*Node, d.NodeCount())
	for _, n := range d.Entries {
		c := cloneNodeShallow(n)
		mapping[n] = c
		clone.Entries = append(clone.Entries, c)
	}
	for _, n := range d.Replies {
		c := cloneNodeShallow(n)
		mapping[n] = c
		clone.Replies = append(clone.Replies, c)
	}

	for old, c := range mapping {
		for _, p := range old.Pointers {
			c.Pointers = append(c.Pointers, clonePointer(p, mapping))
		}
	}
	for _, p := range d.Starts {
		clone.Starts = append(clone.Starts, clonePointer(p, mapping))
	}
	return clone
}

// cloneNodeShallow copies a node's fields and maps but not its pointers.
func cloneNodeShallow(n *Node) *Node {
	c := &Node{
		Kind:          n.Kind,
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
	if n.Text != nil {
		c.Text = maps.Clone(n.Text)
	}
	if n.ActionParams != nil {
		c.ActionParams = maps.Clone(n.ActionParams)
	}
	if len(n.Pointers) > 0 {
		c.Pointers = make([]*Pointer, 0, len(n.Pointers))
	}
	return c
}

// clonePointer copies p, redirecting its target through the node mapping.
// A target outside the mapping (a dangling pointer in the source document)
// stays dangling in the clone rather than aliasing the original node.
func clonePointer(p *Pointer, mapping map[*Node]*Node) *Pointer {
	c := &Pointer{
		Target:    mapping[p.Target],
		Kind:      p.Kind,
		Index:     p.Index,
		IsLink:    p.IsLink,
		IsStart:   p.IsStart,
		Condition: p.Condition,
		Comment:   p.Comment,
	}
	if p.ConditionParams != nil {
		c.ConditionParams = maps.Clone(p.ConditionParams)
	}
	return c
}
