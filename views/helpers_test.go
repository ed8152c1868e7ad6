package views_test

import (
	"strings"
	"testing"

	"git.sr.ht/~rockorager/vaxis"
	"git.sr.ht/~rockorager/vaxis/vxfw"
)

// testDrawContext measures every rune as one cell wide.
func testDrawContext(w, h uint16) vxfw.DrawContext {
	return vxfw.DrawContext{
		Max: vxfw.Size{Width: w, Height: h},
		Characters: func(s string) []vaxis.Character {
			chars := make([]vaxis.Character, 0, len(s))
			for _, r := range s {
				chars = append(chars, vaxis.Character{Grapheme: string(r), Width: 1})
			}
			return chars
		},
	}
}

// screenText draws w and returns every row of the result, child surfaces
// included, with trailing blanks trimmed.
func screenText(t *testing.T, w vxfw.Widget, width, height uint16) []string {
	t.Helper()
	s, err := w.Draw(testDrawContext(width, height))
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	grid := make([][]string, height)
	for i := range grid {
		grid[i] = make([]string, width)
	}
	paint(grid, s, 0, 0)

	lines := make([]string, height)
	for i, row := range grid {
		var b strings.Builder
		for _, g := range row {
			if g == "" {
				g = " "
			}
			b.WriteString(g)
		}
		lines[i] = strings.TrimRight(b.String(), " ")
	}
	return lines
}

func paint(grid [][]string, s vxfw.Surface, col, row int) {
	w := int(s.Size.Width)
	for i, cell := range s.Buffer {
		r, c := row+i/max(w, 1), col+i%max(w, 1)
		if r < len(grid) && c < len(grid[r]) && cell.Character.Grapheme != "" {
			grid[r][c] = cell.Character.Grapheme
		}
	}
	for _, child := range s.Children {
		paint(grid, child.Surface, col+child.Origin.Col, row+child.Origin.Row)
	}
}
