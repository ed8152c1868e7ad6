package widgets

import (
	"time"

	"git.sr.ht/~rockorager/vaxis"
	"git.sr.ht/~rockorager/vaxis/vxfw"
	"github.com/deevus/clinic-tui/nav"
	"github.com/dustin/go-humanize"
)

// NavRail is the vertical navigation rail on the left of the console.
//
//	 Overview
//	 Appointments
//	 ...
//	 ──────────
//	 Help
//
//	 Dr. Reyes
//	 Synced 2 minutes ago
type NavRail struct {
	items  []nav.RailItem
	active int // -1 when the current view has no rail entry

	// Staff is shown in the footer. Empty hides the line.
	Staff string
	// SyncedAt is the last successful dashboard sync. Zero hides the line.
	SyncedAt time.Time
}

// NewNavRail creates a NavRail with the first item active.
func NewNavRail(items []nav.RailItem) *NavRail {
	return &NavRail{items: items}
}

// Active returns the index of the highlighted item, or -1.
func (r *NavRail) Active() int {
	return r.active
}

// ActiveView returns the view of the highlighted item. With no item
// highlighted it returns the first item's view.
func (r *NavRail) ActiveView() nav.ViewID {
	if r.active < 0 || r.active >= len(r.items) {
		if len(r.items) == 0 {
			return ""
		}
		return r.items[0].View
	}
	return r.items[r.active].View
}

// Select highlights the item for view. Views without a rail entry clear
// the highlight.
func (r *NavRail) Select(view nav.ViewID) {
	r.active = -1
	for i, it := range r.items {
		if it.View == view {
			r.active = i
			return
		}
	}
}

// Next returns the view after the highlighted one, wrapping around.
func (r *NavRail) Next() nav.ViewID {
	if len(r.items) == 0 {
		return ""
	}
	return r.items[(r.active+1)%len(r.items)].View
}

// Prev returns the view before the highlighted one, wrapping around.
func (r *NavRail) Prev() nav.ViewID {
	if len(r.items) == 0 {
		return ""
	}
	i := r.active - 1
	if i < 0 {
		i = len(r.items) - 1
	}
	return r.items[i].View
}

// ItemAt returns the view for a 1-based position, as bound to the number keys.
func (r *NavRail) ItemAt(pos int) (nav.ViewID, bool) {
	if pos < 1 || pos > len(r.items) {
		return "", false
	}
	return r.items[pos-1].View, true
}

// Draw renders one item per row. Help sits below a separator and the
// footer is pinned to the bottom when there is room.
func (r *NavRail) Draw(ctx vxfw.DrawContext) (vxfw.Surface, error) {
	s := vxfw.NewSurface(ctx.Max.Width, ctx.Max.Height, r)
	width := int(ctx.Max.Width)

	row := uint16(0)
	for i, it := range r.items {
		if row >= ctx.Max.Height {
			break
		}
		if it.View == nav.Help {
			writeText(&s, 0, row, width, " "+repeat('─', width-2), vaxis.Style{Attribute: vaxis.AttrDim}, false)
			row++
			if row >= ctx.Max.Height {
				break
			}
		}

		style := vaxis.Style{}
		if i == r.active {
			style.Attribute |= vaxis.AttrReverse
			// Fill the whole row so the highlight reads as a bar.
			for col := 0; col < width; col++ {
				s.WriteCell(uint16(col), row, vaxis.Cell{Character: vaxis.Character{Grapheme: " ", Width: 1}, Style: style})
			}
		}
		writeText(&s, 0, row, width, " "+it.Label, style, false)
		row++
	}

	footer := r.footer()
	if len(footer) == 0 || int(ctx.Max.Height) < int(row)+len(footer)+1 {
		return s, nil
	}
	frow := ctx.Max.Height - uint16(len(footer))
	for i, line := range footer {
		style := vaxis.Style{}
		if i > 0 {
			style.Attribute = vaxis.AttrDim
		}
		writeText(&s, 0, frow+uint16(i), width, " "+line, style, false)
	}
	return s, nil
}

func (r *NavRail) footer() []string {
	var lines []string
	if r.Staff != "" {
		lines = append(lines, r.Staff)
	}
	if !r.SyncedAt.IsZero() {
		lines = append(lines, "Synced "+humanize.Time(r.SyncedAt))
	}
	return lines
}

func repeat(ch rune, n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]rune, n)
	for i := range b {
		b[i] = ch
	}
	return string(b)
}
