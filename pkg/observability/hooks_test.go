package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	// Mutation hooks
	m := NoopMutationHooks{}
	m.OnOperation(ctx, "delete", time.Millisecond, nil)
	m.OnRecalculate(ctx, 42, 0)

	// Scrap hooks
	s := NoopScrapHooks{}
	s.OnArchive(ctx, "guard_dialog", 3)
	s.OnRestore(ctx, "guard_dialog", 1)
	s.OnPurge(ctx, 7)

	// Undo hooks
	u := NoopUndoHooks{}
	u.OnSnapshot(ctx, 5)
	u.OnUndo(ctx)
	u.OnRedo(ctx)
}

func TestGlobalHooksRegistry(t *testing.T) {
	// Reset to known state
	Reset()

	// Verify defaults are noop
	if _, ok := Mutation().(NoopMutationHooks); !ok {
		t.Error("Mutation() should return NoopMutationHooks by default")
	}
	if _, ok := Scrap().(NoopScrapHooks); !ok {
		t.Error("Scrap() should return NoopScrapHooks by default")
	}
	if _, ok := Undo().(NoopUndoHooks); !ok {
		t.Error("Undo() should return NoopUndoHooks by default")
	}

	// Set custom hooks
	customMutation := &testMutationHooks{}
	SetMutationHooks(customMutation)
	if Mutation() != customMutation {
		t.Error("SetMutationHooks should set custom hooks")
	}

	customScrap := &testScrapHooks{}
	SetScrapHooks(customScrap)
	if Scrap() != customScrap {
		t.Error("SetScrapHooks should set custom hooks")
	}

	customUndo := &testUndoHooks{}
	SetUndoHooks(customUndo)
	if Undo() != customUndo {
		t.Error("SetUndoHooks should set custom hooks")
	}

	// Reset and verify
	Reset()
	if _, ok := Mutation().(NoopMutationHooks); !ok {
		t.Error("Reset() should restore NoopMutationHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testMutationHooks{}
	SetMutationHooks(custom)

	// Setting nil should be ignored
	SetMutationHooks(nil)

	if Mutation() != custom {
		t.Error("SetMutationHooks(nil) should be ignored")
	}

	Reset()
}

func TestHookDispatch(t *testing.T) {
	Reset()
	defer Reset()

	rec := &recordingScrapHooks{}
	SetScrapHooks(rec)

	ctx := context.Background()
	Scrap().OnArchive(ctx, "a", 2)
	Scrap().OnRestore(ctx, "a", 1)
	Scrap().OnPurge(ctx, 4)

	if rec.archived != 2 || rec.restored != 1 || rec.purged != 4 {
		t.Errorf("dispatch counts = %d/%d/%d, want 2/1/4", rec.archived, rec.restored, rec.purged)
	}
}

// Test implementations
type testMutationHooks struct{ NoopMutationHooks }
type testScrapHooks struct{ NoopScrapHooks }
type testUndoHooks struct{ NoopUndoHooks }

type recordingScrapHooks struct {
	NoopScrapHooks
	archived, restored, purged int
}

func (r *recordingScrapHooks) OnArchive(_ context.Context, _ string, n int) { r.archived += n }
func (r *recordingScrapHooks) OnRestore(_ context.Context, _ string, n int) { r.restored += n }
func (r *recordingScrapHooks) OnPurge(_ context.Context, n int)             { r.purged += n }
