package receipt

import (
	"strings"
	"testing"

	"github.com/Riboost-Studio/chalan/internal/model"
)

func TestColumns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		paper model.PaperWidth
		want  int
	}{
		{model.Paper58mm, 32},
		{model.Paper80mm, 48},
		{model.Paper110mm, 64},
		{"", 48},
		{"A4", 48},
	}
	for _, tt := range tests {
		if got := Columns(tt.paper); got != tt.want {
			t.Errorf("Columns(%q) = %d, want %d", tt.paper, got, tt.want)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	t.Parallel()

	tests := map[float64]string{
		0:       "0.00",
		1:       "1.00",
		2.5:     "2.50",
		10.125:  "10.13",
		1234.9:  "1234.90",
		-3.2:    "-3.20",
		0.1 * 3: "0.30",
	}
	for in, want := range tests {
		if got := FormatMoney(in); got != want {
			t.Errorf("FormatMoney(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestItemLinesWrapsLongNames(t *testing.T) {
	t.Parallel()

	lines := itemLines(1, "Sandwich de pollo con palta y papas nativas", "15.00", 32)
	if len(lines) < 2 {
		t.Fatalf("expected wrapped lines, got %q", lines)
	}
	for _, l := range lines {
		if textWidth(l) > 32 {
			t.Errorf("line %q exceeds width", l)
		}
	}
	last := lines[len(lines)-1]
	if !strings.HasSuffix(last, "15.00") || textWidth(last) != 32 {
		t.Errorf("last line %q should end flush right with the amount", last)
	}
	if !strings.HasPrefix(lines[1], "    ") {
		t.Errorf("continuation line %q not indented", lines[1])
	}
}

func TestPadBetweenKeepsOneSpace(t *testing.T) {
	t.Parallel()

	got := padBetween("a very long key that overflows", "99.99", 10)
	if !strings.Contains(got, "overflows 99.99") {
		t.Errorf("padBetween = %q", got)
	}
}
