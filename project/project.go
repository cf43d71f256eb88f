// Package project converts relative signature placements into absolute
// page coordinates.
//
// Relative coordinates are fractions in [0,1] of the page width and height
// with a top-left origin, as authored in the browser. PDF drawing operators
// use a bottom-left origin in points. The single canonical conversion rule
// lives here; no caller re-derives it.
package project

import (
	"errors"
	"fmt"
	"math"

	"github.com/firmadoc/pdfmerge/geom"
	"github.com/firmadoc/pdfmerge/placement"
)

// ErrMissingCoordinateData indicates a placement without usable relative
// coordinates. The placement must be skipped; other placements still apply.
var ErrMissingCoordinateData = errors.New("missing coordinate data")

const (
	// MinBoxWidth is the smallest width a merge target box may end up with.
	MinBoxWidth = 20.0
	// MinBoxHeight is the smallest height a merge target box may end up with.
	MinBoxHeight = 10.0
)

// Box is an absolute merge target in PDF points, bottom-left origin.
// Boxes are computed on demand and never persisted.
type Box struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// AspectRatio returns width over height.
func (b Box) AspectRatio() float64 {
	if b.Height == 0 {
		return 0
	}
	return b.Width / b.Height
}

// Project computes the absolute target box for one placement on one page.
//
// The relative Y is the offset of the box's TOP edge from the TOP of the
// page, so the bottom-left drawing origin is
//
//	drawY = pageHeight - relY*pageHeight - relH*pageHeight
//
// The result is clamped to lie fully within the page. No rotation
// compensation is applied (see geom.Resolver).
func Project(p placement.Placement, g geom.PageGeometry) (Box, error) {
	for _, v := range [4]float64{p.RelX, p.RelY, p.RelWidth, p.RelHeight} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Box{}, fmt.Errorf("placement %s: %w", p.ID, ErrMissingCoordinateData)
		}
	}

	b := Box{
		X:      p.RelX * g.Width,
		Y:      g.Height - p.RelY*g.Height - p.RelHeight*g.Height,
		Width:  p.RelWidth * g.Width,
		Height: p.RelHeight * g.Height,
	}

	return clamp(b, g), nil
}

// clamp forces a box inside the page bounds, shrinking it where needed.
// A height floor keeps marks that run off the bottom edge visible.
func clamp(b Box, g geom.PageGeometry) Box {
	if b.X < 0 {
		b.Width += b.X
		b.X = 0
	}
	if b.X+b.Width > g.Width {
		b.Width = g.Width - b.X
	}
	if b.Width < 0 {
		b.Width = 0
	}

	if b.Y < 0 {
		b.Height += b.Y
		if b.Height < MinBoxHeight {
			b.Height = math.Min(MinBoxHeight, g.Height)
		}
		b.Y = 0
	}
	if b.Y+b.Height > g.Height {
		b.Height = g.Height - b.Y
	}
	if b.Height < 0 {
		b.Height = 0
	}

	return b
}
