// Package scrap implements the soft-delete archive for dialog documents:
// a per-file "recycle bin" that receives deleted subtrees from the node
// operations layer and can restore them - one entry, one subtree, or one
// whole deletion batch at a time - back into a live document.
//
// Archived entries are pointer-free snapshots of their nodes; the deleted
// subtree's shape is recorded as hierarchy metadata (batch id, parent entry
// id, nesting level) instead, so the archive never holds reference cycles
// and restoration can rebuild fresh pointers from scratch.
//
// Storage backends implement [Store]:
//   - [FileStore]: per-user JSON archive files, the default for the editor
//   - [MemoryStore]: in-memory storage for tests and development
//   - [RedisStore]: shared storage for multi-seat deployments
package scrap

import (
	"context"
	"time"
)

// FormatVersion identifies the archive record layout. The format is internal
// and versioned, not a public contract; readers reject newer versions.
const FormatVersion = 1

// NodeSnapshot is the serialized form of one deleted node: its content
// fields only, deliberately without its live pointers.
type NodeSnapshot struct {
	Kind          string            `json:"kind"`
	Text          map[string]string `json:"text,omitempty"`
	Speaker       string            `json:"speaker,omitempty"`
	Comment       string            `json:"comment,omitempty"`
	Sound         string            `json:"sound,omitempty"`
	Action        string            `json:"action,omitempty"`
	ActionParams  map[string]string `json:"action_params,omitempty"`
	Animation     string            `json:"animation,omitempty"`
	AnimationLoop bool              `json:"animation_loop,omitempty"`
	Delay         float64           `json:"delay,omitempty"`
	QuestTag      string            `json:"quest_tag,omitempty"`
	QuestEntry    string            `json:"quest_entry,omitempty"`
}

// Entry is one archived node plus the hierarchy metadata needed to
// reconstruct the deleted subtree's shape.
type Entry struct {
	ID      string `json:"id"`
	BatchID string `json:"batch_id"`

	// ParentID is the entry id of this node's parent within the same batch,
	// empty for the batch root and for entries whose parent was not
	// archived.
	ParentID string `json:"parent_id,omitempty"`

	// IsBatchRoot marks the single root entry of a batch. Exactly one entry
	// per batch carries it; a repair pass on load re-establishes this for
	// legacy or partially-processed data.
	IsBatchRoot bool `json:"is_batch_root,omitempty"`

	NestingLevel int    `json:"nesting_level"`
	ChildCount   int    `json:"child_count"`
	Operation    string `json:"operation,omitempty"`

	DeletedAt time.Time    `json:"deleted_at"`
	Node      NodeSnapshot `json:"node"`
}

// archive is the persisted per-file record.
type archive struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Store is the persistence backend for scrap archives. Archives are read
// and written whole, keyed by sanitized source-file key; no partial or
// concurrent writers are assumed.
type Store interface {
	// Load returns the archived entries for key. A missing archive is not
	// an error: it returns nil entries.
	Load(ctx context.Context, key string) ([]Entry, error)

	// Save replaces the archive for key. Saving an empty entry list removes
	// the archive.
	Save(ctx context.Context, key string, entries []Entry) error

	// Delete removes the archive for key. No-op if absent.
	Delete(ctx context.Context, key string) error

	// Keys lists the file keys that currently have archives.
	Keys(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}
