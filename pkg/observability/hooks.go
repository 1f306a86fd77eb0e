// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about document mutations, scrap archive activity, and
// undo history usage.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetMutationHooks(&myMutationHooks{})
//	    observability.SetScrapHooks(&myScrapHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	start := time.Now()
//	// ... perform the edit ...
//	observability.Mutation().OnOperation(ctx, "delete", time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Mutation Hooks
// =============================================================================

// MutationHooks receives events from structural document edits.
type MutationHooks interface {
	// OnOperation records a completed mutating operation (add, delete, move).
	OnOperation(ctx context.Context, op string, duration time.Duration, err error)

	// OnRecalculate records an index recalculation pass and the number of
	// consistency diagnostics it reported.
	OnRecalculate(ctx context.Context, nodeCount, diagnostics int)
}

// =============================================================================
// Scrap Hooks
// =============================================================================

// ScrapHooks receives events from the soft-delete archive.
type ScrapHooks interface {
	// OnArchive records nodes entering the archive.
	OnArchive(ctx context.Context, key string, count int)

	// OnRestore records entries leaving the archive back into a document.
	OnRestore(ctx context.Context, key string, count int)

	// OnPurge records entries dropped by retention cleanup.
	OnPurge(ctx context.Context, count int)
}

// =============================================================================
// Undo Hooks
// =============================================================================

// UndoHooks receives events from the undo/redo history.
type UndoHooks interface {
	// OnSnapshot records a state save, with the resulting stack depth.
	OnSnapshot(ctx context.Context, depth int)

	// OnUndo records an undo step.
	OnUndo(ctx context.Context)

	// OnRedo records a redo step.
	OnRedo(ctx context.Context)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopMutationHooks is a no-op implementation of MutationHooks.
type NoopMutationHooks struct{}

func (NoopMutationHooks) OnOperation(context.Context, string, time.Duration, error) {}
func (NoopMutationHooks) OnRecalculate(context.Context, int, int)                   {}

// NoopScrapHooks is a no-op implementation of ScrapHooks.
type NoopScrapHooks struct{}

func (NoopScrapHooks) OnArchive(context.Context, string, int) {}
func (NoopScrapHooks) OnRestore(context.Context, string, int) {}
func (NoopScrapHooks) OnPurge(context.Context, int)           {}

// NoopUndoHooks is a no-op implementation of UndoHooks.
type NoopUndoHooks struct{}

func (NoopUndoHooks) OnSnapshot(context.Context, int) {}
func (NoopUndoHooks) OnUndo(context.Context)          {}
func (NoopUndoHooks) OnRedo(context.Context)          {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	mutationHooks MutationHooks = NoopMutationHooks{}
	scrapHooks    ScrapHooks    = NoopScrapHooks{}
	undoHooks     UndoHooks     = NoopUndoHooks{}
	hooksMu       sync.RWMutex
)

// SetMutationHooks registers custom mutation hooks.
// This should be called once at application startup before any edits.
func SetMutationHooks(h MutationHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		mutationHooks = h
	}
}

// SetScrapHooks registers custom scrap hooks.
// This should be called once at application startup before any archive use.
func SetScrapHooks(h ScrapHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		scrapHooks = h
	}
}

// SetUndoHooks registers custom undo hooks.
// This should be called once at application startup before any history use.
func SetUndoHooks(h UndoHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		undoHooks = h
	}
}

// Mutation returns the registered mutation hooks.
func Mutation() MutationHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return mutationHooks
}

// Scrap returns the registered scrap hooks.
func Scrap() ScrapHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return scrapHooks
}

// Undo returns the registered undo hooks.
func Undo() UndoHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return undoHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	mutationHooks = NoopMutationHooks{}
	scrapHooks = NoopScrapHooks{}
	undoHooks = NoopUndoHooks{}
}
