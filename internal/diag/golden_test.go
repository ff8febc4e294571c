package diag

import (
	"bytes"
	"strings"
	"testing"
)

func TestFormatGoldenDiagnostics(t *testing.T) {
	diags := []Diagnostic{
		{
			Severity: SevWarning,
			Code:     BlkContractionMismatch,
			Message:  "first line\nsecond",
			Primary:  Loc{Unit: "gemm", Op: 12, Kind: "xegpu.dpas"},
			Notes: []Note{
				{Loc: Loc{Unit: "gemm", Op: 3, Kind: "xegpu.load_nd"}, Msg: "B loaded here"},
			},
		},
		{
			Severity: SevInfo,
			Code:     BlkGlueNotPackUnpack,
			Message:  "another",
			Primary:  Loc{Unit: "add", Op: 4},
		},
	}

	expected := "info BLK1001 @add:op4 another\n" +
		"note BLK1002 @gemm:op3(xegpu.load_nd) B loaded here\n" +
		"warning BLK1002 @gemm:op12(xegpu.dpas) first line second"

	if got := FormatGoldenDiagnostics(diags, true); got != expected {
		t.Fatalf("unexpected golden diagnostics:\nwant:\n%s\n\ngot:\n%s", expected, got)
	}
}

func TestBagSortDedupAndLimit(t *testing.T) {
	b := NewBag(3)
	r := BagReporter{Bag: b}
	ReportWarning(r, BlkWorkgroupLayout, Loc{Unit: "u", Op: 7}, "wg").Emit()
	ReportError(r, PipeInvariant, UnitLoc("u"), "boom").Emit()
	ReportWarning(r, BlkWorkgroupLayout, Loc{Unit: "u", Op: 7}, "wg again").Emit()
	if b.Add(New(SevInfo, BlkInfo, UnitLoc("u"), "dropped")) {
		t.Fatalf("bag accepted a fourth diagnostic over its limit")
	}
	b.Dedup()
	b.Sort()
	items := b.Items()
	if len(items) != 2 || items[0].Code != PipeInvariant || items[1].Code != BlkWorkgroupLayout {
		t.Fatalf("unexpected items %+v", items)
	}
	if !b.HasErrors() || b.Count(BlkWorkgroupLayout) != 1 {
		t.Fatalf("HasErrors/Count disagree with %+v", items)
	}
}

func TestDedupReporter(t *testing.T) {
	b := NewBag(10)
	r := NewDedupReporter(BagReporter{Bag: b})
	for range 3 {
		r.Report(BlkGlueStillUsed, SevWarning, Loc{Unit: "u", Op: 1}, "same", nil)
	}
	if b.Len() != 1 {
		t.Fatalf("dedup reporter forwarded %d diagnostics", b.Len())
	}
}

func TestPrettyWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	d := NewError(PipeInvariant, UnitLoc("gemm"), "tile 8x16 does not divide 30x32").
		WithNote(Loc{Unit: "gemm", Op: 2, Kind: "xegpu.load_nd"}, "while unrolling")
	if err := Pretty(&buf, []Diagnostic{d}, false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"error[PIPE2001]: Internal invariant violated", "--> @gemm", "= tile 8x16", "note: while unrolling (@gemm:op2(xegpu.load_nd))"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}
