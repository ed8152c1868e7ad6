package views

import (
	"fmt"
	"sort"

	"git.sr.ht/~rockorager/vaxis"
	"git.sr.ht/~rockorager/vaxis/vxfw"
	"git.sr.ht/~rockorager/vaxis/vxfw/richtext"
	"github.com/deevus/clinic-tui/nav"
	"github.com/spf13/cast"
)

const underConstruction = "This view is currently under construction. Navigation is working correctly!"

// PlaceholderView stands in for screens that are not built yet. It shows
// the view title and any navigation params it was opened with.
type PlaceholderView struct {
	id    nav.ViewID
	store *nav.Store
}

// NewPlaceholderView creates a PlaceholderView for id. store may be nil.
func NewPlaceholderView(id nav.ViewID, store *nav.Store) *PlaceholderView {
	return &PlaceholderView{id: id, store: store}
}

// ID returns the view this placeholder stands in for.
func (pv *PlaceholderView) ID() nav.ViewID {
	return pv.id
}

// Lines returns the text rows drawn by the view.
func (pv *PlaceholderView) Lines() []string {
	lines := []string{nav.Title(pv.id), "", underConstruction}
	if pv.store == nil {
		return lines
	}
	cur := pv.store.Current()
	if cur.View != pv.id || len(cur.Params) == 0 {
		return lines
	}
	keys := make([]string, 0, len(cur.Params))
	for k := range cur.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines = append(lines, "")
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, cast.ToString(cur.Params[k])))
	}
	return lines
}

func (pv *PlaceholderView) Draw(ctx vxfw.DrawContext) (vxfw.Surface, error) {
	return drawLines(ctx, pv, pv.Lines())
}

// NotFoundView is drawn for identifiers nothing is registered for.
type NotFoundView struct{}

// NewNotFoundView creates a NotFoundView.
func NewNotFoundView() *NotFoundView {
	return &NotFoundView{}
}

func (nf *NotFoundView) Lines() []string {
	return []string{"404 Not Found", "", underConstruction}
}

func (nf *NotFoundView) Draw(ctx vxfw.DrawContext) (vxfw.Surface, error) {
	return drawLines(ctx, nf, nf.Lines())
}

// drawLines renders a bold title row followed by dimmed body rows.
func drawLines(ctx vxfw.DrawContext, owner vxfw.Widget, lines []string) (vxfw.Surface, error) {
	s := vxfw.NewSurface(ctx.Max.Width, ctx.Max.Height, owner)
	for i, line := range lines {
		if i >= int(ctx.Max.Height) {
			break
		}
		style := vaxis.Style{Attribute: vaxis.AttrDim}
		if i == 0 {
			style = vaxis.Style{Attribute: vaxis.AttrBold}
		}
		surf, err := richtextLine(" "+line, style).Draw(ctx.WithMax(vxfw.Size{Width: ctx.Max.Width, Height: 1}))
		if err != nil {
			return vxfw.Surface{}, err
		}
		s.AddChild(0, i, surf)
	}
	return s, nil
}

func richtextLine(text string, style vaxis.Style) vxfw.Widget {
	return richtext.New([]vaxis.Segment{{Text: text, Style: style}})
}
