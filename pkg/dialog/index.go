package dialog

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// Diagnostic describes one pointer whose index or target disagrees with the
// document's list state. Diagnostics indicate a latent bug to be surfaced,
// not a recoverable user error: the operation that produced them still
// completes.
type Diagnostic struct {
	Owner   *Node // nil for start pointers
	Pointer *Pointer
	Want    int // true position of the target, -1 if absent from its list
	Got     int
	Reason  string
}

// String formats the diagnostic for logs.
func (d Diagnostic) String() string {
	owner := "root"
	if d.Owner != nil {
		owner = fmt.Sprintf("%s node", d.Owner.Kind)
	}
	return fmt.Sprintf("%s pointer from %s: want index %d, got %d", d.Reason, owner, d.Want, d.Got)
}

// IndexManager restores the index invariant - every pointer's Index equals
// the live position of its target in the target's kind list - after any
// operation that changed list membership or order.
//
// It is the single synchronization point: every mutating operation ends by
// invoking Recalculate exactly once, which keeps the cost linear in document
// size per operation rather than incremental and fragile.
type IndexManager struct {
	reg *LinkRegistry
	log *log.Logger
}

// NewIndexManager creates an index manager over the given registry.
// A nil logger falls back to the default logger.
func NewIndexManager(reg *LinkRegistry, logger *log.Logger) *IndexManager {
	if logger == nil {
		logger = log.Default()
	}
	return &IndexManager{reg: reg, log: logger}
}

// Recalculate rebuilds the registry from the document, then walks both node
// lists by position and pushes each node's current index into every pointer
// targeting it. It finishes with a validation pass whose findings are logged
// as warnings; mismatches never abort the operation.
func (m *IndexManager) Recalculate(d *Document) {
	m.reg.Rebuild(d)
	for i, n := range d.Entries {
		m.reg.UpdateNodeIndex(n, i)
	}
	for i, n := range d.Replies {
		m.reg.UpdateNodeIndex(n, i)
	}
	for _, diag := range m.Validate(d) {
		m.log.Warn("pointer index mismatch", "diagnostic", diag.String())
	}
}

// Validate re-derives, for every pointer in Starts and in every node's
// outgoing list, the target's true list position and compares it to the
// pointer's recorded index and to the node identity found at that position.
// All mismatches are collected and returned; none are fatal.
func (m *IndexManager) Validate(d *Document) []Diagnostic {
	var diags []Diagnostic
	d.EachPointer(func(owner *Node, p *Pointer) {
		if p.Target == nil {
			diags = append(diags, Diagnostic{Owner: owner, Pointer: p, Want: -1, Got: p.Index, Reason: "dangling"})
			return
		}
		if p.Kind != p.Target.Kind {
			diags = append(diags, Diagnostic{Owner: owner, Pointer: p, Want: d.IndexOf(p.Target), Got: p.Index, Reason: "kind mismatch"})
			return
		}
		want := d.IndexOf(p.Target)
		if want < 0 {
			diags = append(diags, Diagnostic{Owner: owner, Pointer: p, Want: want, Got: p.Index, Reason: "target not in list"})
			return
		}
		list := d.List(p.Kind)
		if p.Index < 0 || p.Index >= len(list) || list[p.Index] != p.Target {
			diags = append(diags, Diagnostic{Owner: owner, Pointer: p, Want: want, Got: p.Index, Reason: "stale index"})
		}
	})
	return diags
}
