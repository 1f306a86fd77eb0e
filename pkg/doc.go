// Package pkg provides the core libraries of the parlance dialog engine.
//
// # Overview
//
// Parlance keeps branching dialog documents consistent while they are edited:
// nodes live in flat, positionally indexed lists, every edge carries its
// target's list position, and any structural edit must leave the two in
// agreement. The pkg directory is organized into three areas:
//
//  1. [dialog] - Domain logic (graph model, reverse-link index, mutations,
//     deep clone, undo history)
//  2. [scrap] - Soft-delete archive (hierarchy-annotated entries with file,
//     memory, and Redis backends, plus a directory watcher)
//  3. [editor] - Session facade composing a document with its undo history
//     and scrap archive
//
// Supporting packages: [perrors] (structured error values and file-key
// sanitization), [observability] (hook interfaces with no-op and Prometheus
// implementations), [config] (TOML configuration), and [buildinfo] (ldflags
// version info).
//
// # Quick Start
//
// Open a session and edit a document:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/parlance/pkg/editor"
//	    "github.com/matzehuels/parlance/pkg/scrap"
//	)
//
//	store, _ := scrap.NewFileStore("")
//	mgr := scrap.NewManager(store, 0, nil)
//	s := editor.NewSession(nil, "dialogs/guard.json", editor.Options{Scrap: mgr})
//
//	ctx := context.Background()
//	entry, _ := s.AddEntry(ctx, nil, nil)   // NPC line at the root
//	reply, _ := s.AddReply(ctx, entry, nil) // PC response
//	res, _ := s.Delete(ctx, reply, nil)     // archived under res.BatchID
//	s.Undo(ctx, nil)                        // or bring it back wholesale
//
// Deleted nodes can also be recovered from the archive:
//
//	s.RestoreBatch(ctx, res.BatchID, entry, nil)
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...           # All tests
//	go test ./pkg/dialog/...    # Specific package
//
// [dialog]: https://pkg.go.dev/github.com/matzehuels/parlance/pkg/dialog
// [scrap]: https://pkg.go.dev/github.com/matzehuels/parlance/pkg/scrap
// [editor]: https://pkg.go.dev/github.com/matzehuels/parlance/pkg/editor
// [perrors]: https://pkg.go.dev/github.com/matzehuels/parlance/pkg/perrors
// [observability]: https://pkg.go.dev/github.com/matzehuels/parlance/pkg/observability
// [config]: https://pkg.go.dev/github.com/matzehuels/parlance/pkg/config
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/parlance/pkg/buildinfo
package pkg
