package widgets

import (
	"git.sr.ht/~rockorager/vaxis"
	"git.sr.ht/~rockorager/vaxis/vxfw"
	"github.com/dustin/go-humanize"
)

// StatCard is a bordered three-row card showing one dashboard count.
//
//	┌──────────────────────┐
//	│ Patients checked in  │
//	│ 1,204                │
//	└──────────────────────┘
type StatCard struct {
	Label  string
	Value  int
	Loaded bool // false renders a placeholder instead of Value
	Accent vaxis.Color
}

const statPlaceholder = "—"

// Text returns the value as drawn: comma-grouped, or a dash when not loaded.
func (c *StatCard) Text() string {
	if !c.Loaded {
		return statPlaceholder
	}
	return humanize.Comma(int64(c.Value))
}

// Draw renders the card. The height is fixed at four rows.
func (c *StatCard) Draw(ctx vxfw.DrawContext) (vxfw.Surface, error) {
	const height = 4
	w := ctx.Max.Width
	h := uint16(height)
	if h > ctx.Max.Height {
		h = ctx.Max.Height
	}
	s := vxfw.NewSurface(w, h, c)
	if w < 4 {
		return s, nil
	}

	border := vaxis.Style{Foreground: vaxis.IndexColor(8)}
	inner := int(w) - 2
	writeText(&s, 0, 0, int(w), "┌"+repeat('─', inner)+"┐", border, false)
	for row := uint16(1); row < h && row < height-1; row++ {
		writeText(&s, 0, row, 1, "│", border, false)
		writeText(&s, w-1, row, 1, "│", border, false)
	}
	if h == height {
		writeText(&s, 0, height-1, int(w), "└"+repeat('─', inner)+"┘", border, false)
	}

	if h > 1 {
		writeText(&s, 2, 1, inner-2, c.Label, vaxis.Style{Attribute: vaxis.AttrDim}, false)
	}
	if h > 2 {
		style := vaxis.Style{Attribute: vaxis.AttrBold, Foreground: c.Accent}
		if !c.Loaded {
			style = vaxis.Style{Attribute: vaxis.AttrDim}
		}
		writeText(&s, 2, 2, inner-2, c.Text(), style, false)
	}
	return s, nil
}
