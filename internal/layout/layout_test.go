package layout

import "testing"

func TestLayoutPredicates(t *testing.T) {
	sg := &Layout{InstData: []int64{8, 16}, LaneLayout: []int64{1, 16}, LaneData: []int64{1, 1}}
	if !sg.IsSgLayout() || sg.IsWgLayout() {
		t.Fatalf("expected subgroup layout: %s", sg)
	}
	if !sg.HasInstTiling() {
		t.Fatalf("expected inst tiling")
	}

	wg := &Layout{SgLayout: []int64{4, 4}, SgData: []int64{16, 16}}
	if !wg.IsWgLayout() || wg.IsSgLayout() {
		t.Fatalf("expected workgroup layout: %s", wg)
	}

	var none *Layout
	if none.IsSgLayout() || none.IsWgLayout() || none.HasInstTiling() {
		t.Fatalf("nil layout must answer false to every predicate")
	}
}

func TestDropInstData(t *testing.T) {
	l := &Layout{InstData: []int64{8, 16}, LaneLayout: []int64{1, 16}, LaneData: []int64{1, 1}}
	d := l.DropInstData()
	if d.HasInstTiling() {
		t.Fatalf("inst data not dropped: %s", d)
	}
	if !l.HasInstTiling() {
		t.Fatalf("original layout must stay untouched")
	}
	if !eq(d.LaneLayout, []int64{1, 16}) {
		t.Fatalf("lane layout lost: %s", d)
	}

	only := &Layout{InstData: []int64{8, 16}}
	if got := only.DropInstData(); got != nil {
		t.Fatalf("expected nil after dropping the only field, got %s", got)
	}
}

func TestDropSgLayoutAndData(t *testing.T) {
	l := &Layout{SgLayout: []int64{2, 2}, SgData: []int64{16, 16}, InstData: []int64{8, 16}}
	d := l.DropSgLayoutAndData()
	if d.IsWgLayout() {
		t.Fatalf("workgroup fields not dropped: %s", d)
	}
	if !d.HasInstTiling() {
		t.Fatalf("inst data must survive: %s", d)
	}
}

func TestLayoutEqualAndString(t *testing.T) {
	a := &Layout{InstData: []int64{8, 16}, LaneLayout: []int64{1, 16}}
	b := &Layout{InstData: []int64{8, 16}, LaneLayout: []int64{1, 16}}
	if !a.Equal(b) {
		t.Fatalf("expected equal layouts")
	}
	if a.Equal(nil) {
		t.Fatalf("non-nil layout equal to nil")
	}
	want := "#layout<inst_data = [8, 16], lane_layout = [1, 16]>"
	if got := a.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestLayoutValidate(t *testing.T) {
	cases := []struct {
		name    string
		l       *Layout
		wantErr bool
	}{
		{"nil", nil, false},
		{"ok", &Layout{InstData: []int64{8, 16}, LaneLayout: []int64{1, 16}}, false},
		{"rank mismatch", &Layout{InstData: []int64{8}, LaneLayout: []int64{1, 16}}, true},
		{"zero", &Layout{InstData: []int64{0, 16}}, true},
		{"sg data alone", &Layout{SgData: []int64{8, 8}}, true},
		{"bad order", &Layout{LaneLayout: []int64{1, 16}, Order: []int64{0, 2}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.l.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
