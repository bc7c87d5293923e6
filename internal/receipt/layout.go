package receipt

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/Riboost-Studio/chalan/internal/model"
)

// Columns returns the character width of a paper class.
// 58mm paper = 32 chars, 80mm = 48, 110mm = 64.
func Columns(p model.PaperWidth) int {
	switch p {
	case model.Paper58mm:
		return 32
	case model.Paper110mm:
		return 64
	default:
		return 48
	}
}

// FormatMoney renders an amount with exactly two decimals.
func FormatMoney(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

// lineTotal is computed in decimal so 3 x 0.10 prints 0.30.
func lineTotal(it model.LineItem) string {
	return decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))).StringFixed(2)
}

func sumItems(items []model.LineItem) float64 {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	f, _ := total.Float64()
	return f
}

func textWidth(s string) int {
	return utf8.RuneCountInString(s)
}

// padBetween puts left and right on one line of the given width, with at
// least one space between them.
func padBetween(left, right string, width int) string {
	spaces := width - textWidth(left) - textWidth(right)
	if spaces < 1 {
		spaces = 1
	}
	return left + strings.Repeat(" ", spaces) + right
}

// wrap splits s into chunks of at most width runes, breaking on spaces
// when possible.
func wrap(s string, width int) []string {
	if width <= 0 {
		return []string{s}
	}
	var lines []string
	var cur []rune
	for _, word := range strings.Fields(s) {
		w := []rune(word)
		for len(w) > width {
			if len(cur) > 0 {
				lines = append(lines, string(cur))
				cur = nil
			}
			lines = append(lines, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(cur) == 0:
			cur = append(cur, w...)
		case len(cur)+1+len(w) <= width:
			cur = append(cur, ' ')
			cur = append(cur, w...)
		default:
			lines = append(lines, string(cur))
			cur = append([]rune(nil), w...)
		}
	}
	if len(cur) > 0 || len(lines) == 0 {
		lines = append(lines, string(cur))
	}
	return lines
}

// itemLines lays out "<qty> x <name>" on the left and the amount flush
// right on the last line. Long names continue on the following lines
// indented under the name.
func itemLines(qty int, name, amount string, width int) []string {
	prefix := strconv.Itoa(qty) + " x "
	room := width - textWidth(prefix)
	if amount != "" {
		room -= textWidth(amount) + 1
	}
	if room < 4 {
		room = 4
	}
	chunks := wrap(name, room)
	indent := strings.Repeat(" ", textWidth(prefix))
	lines := make([]string, len(chunks))
	for i, chunk := range chunks {
		lead := indent
		if i == 0 {
			lead = prefix
		}
		if i == len(chunks)-1 && amount != "" {
			lines[i] = padBetween(lead+chunk, amount, width)
		} else {
			lines[i] = lead + chunk
		}
	}
	return lines
}
