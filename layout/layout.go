// Package layout defines contract between paginator and whatever measures
// text, plus a metric typesetter implementing it.
package layout

import (
	"fmt"

	"folio/content/text"
)

// Viewport is area available for one page, in points.
type Viewport struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

func (v Viewport) Area() float64 {
	return v.Width * v.Height
}

// Empty reports viewport which cannot hold anything.
func (v Viewport) Empty() bool {
	return !(v.Width > 0 && v.Height > 0)
}

// Inset returns page box with margins removed.
func (v Viewport) Inset(m Margins) Viewport {
	return Viewport{
		Width:  max(0, v.Width-m.Left-m.Right),
		Height: max(0, v.Height-m.Top-m.Bottom),
	}
}

func (v Viewport) String() string {
	return fmt.Sprintf("%gx%g", v.Width, v.Height)
}

// Margins of a page, in points.
type Margins struct {
	Top    float64 `yaml:"top" validate:"gte=0"`
	Right  float64 `yaml:"right" validate:"gte=0"`
	Bottom float64 `yaml:"bottom" validate:"gte=0"`
	Left   float64 `yaml:"left" validate:"gte=0"`
}

// Engine answers how many characters of t, starting at start, fit into a
// single page of given viewport when rendered. Zero means nothing fits.
// Result for the same input must always be the same.
type Engine interface {
	VisibleRange(t *text.Text, start int, vp Viewport) int
}

// EngineFunc adapts ordinary function to Engine.
type EngineFunc func(t *text.Text, start int, vp Viewport) int

func (f EngineFunc) VisibleRange(t *text.Text, start int, vp Viewport) int {
	return f(t, start, vp)
}

// Fixed returns engine placing n characters on every page regardless of
// viewport.
func Fixed(n int) Engine {
	return EngineFunc(func(t *text.Text, start int, _ Viewport) int {
		return max(0, min(n, t.Len()-start))
	})
}
