// Package receipt turns tickets and comandas into a Sequence of printer
// primitives. Both the ESC/POS and the HTML renderers consume the same
// Sequence, so a header or footer cannot show up on one output and not the
// other.
package receipt

import (
	"fmt"
	"strings"

	"github.com/Riboost-Studio/chalan/internal/model"
)

type Op int

const (
	OpInit Op = iota
	OpAlignLeft
	OpAlignCenter
	OpAlignRight
	OpBoldOn
	OpBoldOff
	OpSizeNormal
	OpSize2x
	OpSize3x
	OpLiteral
	OpItem
	OpQRCode
	OpLogo
	OpCutPartial
	OpCutFull
	OpFeed
	OpDrawerPulse
	OpBarcode
)

var opNames = map[Op]string{
	OpInit:        "Init",
	OpAlignLeft:   "AlignLeft",
	OpAlignCenter: "AlignCenter",
	OpAlignRight:  "AlignRight",
	OpBoldOn:      "BoldOn",
	OpBoldOff:     "BoldOff",
	OpSizeNormal:  "SizeNormal",
	OpSize2x:      "Size2x",
	OpSize3x:      "Size3x",
	OpLiteral:     "Literal",
	OpItem:        "Item",
	OpQRCode:      "QRCode",
	OpLogo:        "Logo",
	OpCutPartial:  "CutPartial",
	OpCutFull:     "CutFull",
	OpFeed:        "Feed",
	OpDrawerPulse: "DrawerPulse",
	OpBarcode:     "Barcode",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Command is one primitive. Text is set for Literal, Item, QRCode, Barcode and Logo
// (the image reference); N for Feed (lines) and DrawerPulse (pin); Width and
// Height for Logo. Item carries the structured line item behind an Item
// line's Text.
type Command struct {
	Op     Op
	Text   string
	N      int
	Width  int
	Height int
	Item   *model.LineItem
}

func (c Command) String() string {
	switch c.Op {
	case OpLiteral, OpItem, OpQRCode, OpBarcode:
		return fmt.Sprintf("%s(%q)", c.Op, c.Text)
	case OpFeed, OpDrawerPulse:
		return fmt.Sprintf("%s(%d)", c.Op, c.N)
	case OpLogo:
		return fmt.Sprintf("%s(%dx%d)", c.Op, c.Width, c.Height)
	default:
		return c.Op.String()
	}
}

type Sequence []Command

func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

// Lines returns the visible text lines in order.
func (s Sequence) Lines() []string {
	var out []string
	for _, c := range s {
		if c.Op == OpLiteral || c.Op == OpItem {
			out = append(out, c.Text)
		}
	}
	return out
}

// WithDrawerPulse returns a copy of s with a trailing drawer pulse.
func (s Sequence) WithDrawerPulse(pin int) Sequence {
	out := make(Sequence, len(s), len(s)+1)
	copy(out, s)
	return append(out, Command{Op: OpDrawerPulse, N: pin})
}

// builder appends primitives; it is the Sequence counterpart of an ESC/POS
// document builder.
type builder struct {
	seq   Sequence
	width int
}

func newBuilder(width int) *builder {
	b := &builder{width: width}
	b.op(OpInit)
	return b
}

func (b *builder) op(o Op) *builder {
	b.seq = append(b.seq, Command{Op: o})
	return b
}

func (b *builder) text(s string) *builder {
	b.seq = append(b.seq, Command{Op: OpLiteral, Text: s})
	return b
}

// optional writes a line only when value is set.
func (b *builder) optional(label, value string) *builder {
	if strings.TrimSpace(value) == "" {
		return b
	}
	return b.text(label + value)
}

func (b *builder) separator(char rune) *builder {
	return b.text(strings.Repeat(string(char), b.width))
}

func (b *builder) keyValue(key, value string) *builder {
	return b.text(padBetween(key, value, b.width))
}

func (b *builder) feed(n int) *builder {
	b.seq = append(b.seq, Command{Op: OpFeed, N: n})
	return b
}
