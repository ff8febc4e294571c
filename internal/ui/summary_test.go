package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"xeblock/internal/blocking"
	"xeblock/internal/diag"
	"xeblock/internal/driver"
)

func TestSummaryAlignsRows(t *testing.T) {
	ok := driver.UnitResult{Name: "gemm", Bag: diag.NewBag(4)}
	ok.Report.Glue = blocking.GlueStats{Assembled: 2, Decomposed: 1}
	failed := driver.UnitResult{Name: "ユニット", Bag: diag.NewBag(4), Err: errors.New("boom")}
	failed.Bag.Add(diag.NewError(diag.PipeInvariant, diag.UnitLoc("ユニット"), "boom"))

	var sb strings.Builder
	if err := Summary(&sb, []driver.UnitResult{ok, failed}, 0); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("want header and two rows, got:\n%s", sb.String())
	}
	if !strings.HasPrefix(lines[1], "gemm    ") || !strings.Contains(lines[1], "done") {
		t.Fatalf("unexpected row %q", lines[1])
	}
	if !strings.Contains(lines[2], "error") {
		t.Fatalf("unexpected row %q", lines[2])
	}
	// status is right-aligned; the CJK name is 8 columns wide
	end := func(line, cell string) int {
		return runewidth.StringWidth(line[:strings.Index(line, cell)]) + len(cell)
	}
	if end(lines[1], "done") != end(lines[2], "error") {
		t.Fatalf("status columns misaligned:\n%s", sb.String())
	}
}

func TestSummaryTruncatesLongNames(t *testing.T) {
	long := driver.UnitResult{Name: "a-unit-name-far-wider-than-the-table-allows", Bag: diag.NewBag(4)}
	short := driver.UnitResult{Name: "add", Bag: diag.NewBag(4)}

	var sb strings.Builder
	if err := Summary(&sb, []driver.UnitResult{long, short}, 70); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	if len(lines) != 3 || !strings.Contains(lines[1], "...") {
		t.Fatalf("long name not truncated:\n%s", sb.String())
	}
	end := func(line string) int {
		return runewidth.StringWidth(line[:strings.Index(line, "done")]) + len("done")
	}
	if end(lines[1]) != end(lines[2]) {
		t.Fatalf("truncated row misaligned:\n%s", sb.String())
	}
}

func TestTruncate(t *testing.T) {
	for _, tc := range []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"a-very-long-unit-name", 10, "a-very-..."},
		{"abcdef", 3, "abc"},
		{"anything", 0, "anything"},
		{"ユニットの名前が長い", 9, "ユニッ..."},
	} {
		got := truncate(tc.in, tc.width)
		if got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
		if tc.width > 0 && runewidth.StringWidth(got) > tc.width {
			t.Errorf("truncate(%q, %d) is %d columns wide", tc.in, tc.width, runewidth.StringWidth(got))
		}
	}
}
