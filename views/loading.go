package views

import (
	"git.sr.ht/~rockorager/vaxis"
	"git.sr.ht/~rockorager/vaxis/vxfw"
)

// drawLoadingState renders a dimmed status message such as "Loading...".
func drawLoadingState(ctx vxfw.DrawContext, owner vxfw.Widget, msg string) (vxfw.Surface, error) {
	s := vxfw.NewSurface(ctx.Max.Width, ctx.Max.Height, owner)
	if ctx.Max.Height == 0 {
		return s, nil
	}
	label := richtextLine(" "+msg, vaxis.Style{Attribute: vaxis.AttrDim})
	labelSurf, err := label.Draw(ctx.WithMax(vxfw.Size{Width: ctx.Max.Width, Height: 1}))
	if err != nil {
		return vxfw.Surface{}, err
	}
	s.AddChild(0, 0, labelSurf)
	return s, nil
}
