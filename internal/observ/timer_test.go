package observ

import (
	"strings"
	"testing"
)

func TestReportMergeMatchesByName(t *testing.T) {
	a := Report{TotalMS: 3, Phases: []PhaseReport{{Name: "unroll", DurationMS: 2}, {Name: "glue", DurationMS: 1}}}
	b := Report{TotalMS: 5, Phases: []PhaseReport{{Name: "glue", DurationMS: 1, Note: "x"}, {Name: "verify", DurationMS: 4}}}
	got := a.Merge(b)
	if got.TotalMS != 8 || len(got.Phases) != 3 {
		t.Fatalf("unexpected merge %+v", got)
	}
	if got.Phases[1].DurationMS != 2 || got.Phases[1].Note != "" || got.Phases[2].Name != "verify" {
		t.Fatalf("unexpected phases %+v", got.Phases)
	}
}

func TestTimerSummary(t *testing.T) {
	tm := NewTimer()
	idx := tm.Begin("unroll")
	tm.End(idx, "12 rewrites")
	tm.End(42, "ignored")
	s := tm.Summary()
	if !strings.Contains(s, "unroll") || !strings.Contains(s, "// 12 rewrites") || !strings.Contains(s, "total") {
		t.Fatalf("unexpected summary:\n%s", s)
	}
}
