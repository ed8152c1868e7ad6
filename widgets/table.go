package widgets

import (
	"git.sr.ht/~rockorager/vaxis"
	"git.sr.ht/~rockorager/vaxis/vxfw"
)

const ellipsis = "…"

// TableColumn defines a column in a Table.
type TableColumn struct {
	Width      int  // fixed width; the minimum width of a Flex column
	Flex       bool // share the width left over by fixed columns
	AlignRight bool
	Style      vaxis.Style
}

// Table renders rows of text in columns. Cells wider than their column
// are cut and end in an ellipsis.
type Table struct {
	Columns []TableColumn
	Rows    [][]string
	Header  []string // optional, drawn dim
	Gap     int      // spaces between columns (default 1)

	// RowStyle, if set, is merged over the column style of every cell in
	// row i (0 is the first data row).
	RowStyle func(i int) vaxis.Style
}

// ColumnWidths resolves the width of every column for a table drawn
// totalWidth cells wide.
func (t *Table) ColumnWidths(totalWidth int) []int {
	gap := t.gap()
	widths := make([]int, len(t.Columns))
	used, flex := 0, 0
	for i, c := range t.Columns {
		widths[i] = c.Width
		used += c.Width
		if c.Flex {
			flex++
		}
	}
	if len(t.Columns) > 1 {
		used += gap * (len(t.Columns) - 1)
	}
	if flex == 0 || used >= totalWidth {
		return widths
	}
	spare := totalWidth - used
	share, extra := spare/flex, spare%flex
	for i, c := range t.Columns {
		if !c.Flex {
			continue
		}
		widths[i] += share
		if extra > 0 {
			widths[i]++
			extra--
		}
	}
	return widths
}

func (t *Table) gap() int {
	if t.Gap == 0 {
		return 1
	}
	return t.Gap
}

// writeText writes s into surf at (col, row) within maxWidth. Right
// aligned text is padded on the left.
func writeText(surf *vxfw.Surface, col, row uint16, maxWidth int, s string, style vaxis.Style, alignRight bool) {
	if maxWidth <= 0 {
		return
	}
	chars := vaxis.Characters(s)
	displayWidth := 0
	for _, ch := range chars {
		displayWidth += ch.Width
	}

	limit := maxWidth
	cut := displayWidth > maxWidth
	if cut {
		limit = maxWidth - 1
	}

	offset := 0
	if alignRight && displayWidth < maxWidth {
		offset = maxWidth - displayWidth
	}

	pos := offset
	for _, ch := range chars {
		if pos+ch.Width > limit {
			break
		}
		surf.WriteCell(col+uint16(pos), row, vaxis.Cell{Character: ch, Style: style})
		pos += ch.Width
	}
	if cut {
		for _, ch := range vaxis.Characters(ellipsis) {
			surf.WriteCell(col+uint16(pos), row, vaxis.Cell{Character: ch, Style: style})
		}
	}
}

func mergeStyle(base, over vaxis.Style) vaxis.Style {
	if over.Foreground != 0 {
		base.Foreground = over.Foreground
	}
	if over.Background != 0 {
		base.Background = over.Background
	}
	base.Attribute |= over.Attribute
	return base
}

// Draw renders the header (if set) and as many rows as fit.
func (t *Table) Draw(ctx vxfw.DrawContext) (vxfw.Surface, error) {
	gap := t.gap()
	widths := t.ColumnWidths(int(ctx.Max.Width))

	totalRows := len(t.Rows)
	if t.Header != nil {
		totalRows++
	}
	height := uint16(totalRows)
	if height > ctx.Max.Height {
		height = ctx.Max.Height
	}

	s := vxfw.NewSurface(ctx.Max.Width, height, t)
	row := uint16(0)

	drawRow := func(cells []string, style func(c TableColumn) vaxis.Style) {
		col := 0
		for i, c := range t.Columns {
			if col >= int(ctx.Max.Width) {
				break
			}
			w := min(widths[i], int(ctx.Max.Width)-col)
			text := ""
			if i < len(cells) {
				text = cells[i]
			}
			writeText(&s, uint16(col), row, w, text, style(c), c.AlignRight)
			col += widths[i] + gap
		}
		row++
	}

	if t.Header != nil && row < height {
		drawRow(t.Header, func(TableColumn) vaxis.Style {
			return vaxis.Style{Attribute: vaxis.AttrDim}
		})
	}

	for i, cells := range t.Rows {
		if row >= height {
			break
		}
		drawRow(cells, func(c TableColumn) vaxis.Style {
			if t.RowStyle == nil {
				return c.Style
			}
			return mergeStyle(c.Style, t.RowStyle(i))
		})
	}

	return s, nil
}
