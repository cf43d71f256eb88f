// Package placement defines the canonical signature placement record and
// the normalization of the legacy storage shapes into it.
//
// A placement's relative coordinates are authoritative. Absolute values
// found in stored records were historically computed against guessed page
// sizes and are discarded; they are recomputed from the relative values
// whenever page geometry is known.
package placement

import (
	"math"
	"time"

	"github.com/firmadoc/pdfmerge/images"
)

// Source identifies how a signature was captured. Capture method matters
// because pressure-sensitive pads produce images whose native aspect ratio
// must be respected.
type Source int

const (
	// Canvas is a mouse or touch drawing in the browser.
	Canvas Source = iota
	// Wacom is a capture from a pressure-sensitive pen pad.
	Wacom
	// Mapping is a placement positioned from a stored field mapping.
	Mapping
)

func (s Source) String() string {
	switch s {
	case Wacom:
		return "wacom"
	case Mapping:
		return "mapping"
	default:
		return "canvas"
	}
}

// ParseSource maps the stored source string to a Source. Unknown values
// fall back to Canvas.
func ParseSource(s string) Source {
	switch s {
	case "wacom":
		return Wacom
	case "mapping":
		return Mapping
	default:
		return Canvas
	}
}

// Placement is one signed mark on one page: either an image signature or a
// text annotation. Placements are immutable once created; re-signing
// supersedes them through MergeByID.
type Placement struct {
	ID   string
	Page int // 1-based

	// Fractions of page width/height in [0,1], origin top-left.
	// NaN marks a value that was absent from the stored record.
	RelX      float64
	RelY      float64
	RelWidth  float64
	RelHeight float64

	Source   Source
	Image    *images.Image // nil for text annotations
	Text     string
	FontSize float64
	SignedAt time.Time

	// ImageErr holds the decode failure for a record whose stored data
	// URL could not be turned into an Image. The placement is still part
	// of the batch; the merger skips it and reports this cause.
	ImageErr error
}

// IsText reports whether the placement draws text instead of an image.
func (p Placement) IsText() bool {
	return p.Image == nil && p.Text != ""
}

// HasCoordinates reports whether all four relative values are present and
// finite.
func (p Placement) HasCoordinates() bool {
	for _, v := range [4]float64{p.RelX, p.RelY, p.RelWidth, p.RelHeight} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// MergeByID folds incoming placements into an existing set: a placement
// whose id already exists replaces the prior one in place, a new id is
// appended. Order of first appearance is preserved so repeated merges of
// the same inputs stay deterministic.
func MergeByID(existing, incoming []Placement) []Placement {
	out := make([]Placement, len(existing))
	copy(out, existing)

	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.ID] = i
	}

	for _, p := range incoming {
		if i, ok := index[p.ID]; ok && p.ID != "" {
			out[i] = p
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}
