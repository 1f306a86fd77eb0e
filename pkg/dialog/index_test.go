package dialog

import "testing"

func TestRecalculateRestoresIndices(t *testing.T) {
	o := newTestOps()
	d, _, _, _ := buildChain(t, o)

	// Add a second root entry, then reverse the entry list by hand to
	// simulate a bulk edit done outside Ops.
	if _, err := o.AddEntry(d, nil); err != nil {
		t.Fatal(err)
	}
	d.Entries[0], d.Entries[1] = d.Entries[1], d.Entries[0]

	o.Recalculate(d)
	assertIndicesClean(t, o, d)
}

func TestValidateDiagnostics(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Document)
		reason string
	}{
		{
			name:   "dangling pointer",
			mutate: func(d *Document) { d.Starts[0].Target = nil },
			reason: "dangling",
		},
		{
			name:   "kind mismatch",
			mutate: func(d *Document) { d.Starts[0].Kind = KindReply },
			reason: "kind mismatch",
		},
		{
			name: "target not in list",
			mutate: func(d *Document) {
				d.Starts[0].Target = &Node{Kind: KindEntry}
			},
			reason: "target not in list",
		},
		{
			name:   "stale index",
			mutate: func(d *Document) { d.Starts[0].Index = 99 },
			reason: "stale index",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOps()
			d, _, _, _ := buildChain(t, o)
			assertIndicesClean(t, o, d)

			tt.mutate(d)
			diags := o.ValidateIndices(d)
			if len(diags) == 0 {
				t.Fatal("expected a diagnostic, got none")
			}
			if diags[0].Reason != tt.reason {
				t.Errorf("reason = %q, want %q", diags[0].Reason, tt.reason)
			}
		})
	}
}

func TestValidateCleanDocument(t *testing.T) {
	o := newTestOps()
	d, _, _, _ := buildChain(t, o)
	if diags := o.ValidateIndices(d); len(diags) != 0 {
		t.Errorf("clean document produced %d diagnostics", len(diags))
	}
}
