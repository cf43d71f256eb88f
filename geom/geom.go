// Package geom resolves authoritative page geometry from PDF page objects.
//
// Page dimensions are always taken from the page's own MediaBox (with page
// tree inheritance), never from a rendering layer. Viewer-reported sizes are
// known to invert width/height or apply DPI scaling and must not be trusted.
package geom

import (
	"errors"
	"fmt"

	pdflib "github.com/digitorus/pdf"
	"github.com/sirupsen/logrus"
)

// ErrInvalidPageGeometry indicates a page with zero or negative dimensions.
// Placements targeting such a page cannot be projected.
var ErrInvalidPageGeometry = errors.New("invalid page geometry")

// Orientation describes how a page is laid out, derived from its dimensions.
type Orientation int

const (
	// Portrait means the page is at least as tall as it is wide.
	Portrait Orientation = iota
	// Landscape means the page is wider than it is tall.
	Landscape
)

func (o Orientation) String() string {
	if o == Landscape {
		return "landscape"
	}
	return "portrait"
}

// PageGeometry is the authoritative geometry of one PDF page, in PDF points.
type PageGeometry struct {
	Width       float64     `json:"width"`
	Height      float64     `json:"height"`
	Rotation    int         `json:"rotation"`
	Orientation Orientation `json:"-"`
}

// defaultMediaBox is US Letter, used when a page carries no MediaBox at all.
var defaultMediaBox = [4]float64{0, 0, 612, 792}

// Resolver produces PageGeometry values from parsed page objects.
//
// The zero value is usable; Logger falls back to the logrus standard logger.
type Resolver struct {
	Logger logrus.FieldLogger
}

func (r *Resolver) logger() logrus.FieldLogger {
	if r.Logger != nil {
		return r.Logger
	}
	return logrus.StandardLogger()
}

// Resolve reads the native box dimensions and rotation of a page.
//
// The /Rotate value is reported in the result but is NOT applied to the
// dimensions: signature boxes are authored against the unrotated visual
// presentation, and compensating for rotation here has historically produced
// flipped or displaced marks. Pages with a non-zero rotation are logged so
// callers know their marks will keep the unrotated orientation.
func (r *Resolver) Resolve(page pdflib.Value, pageNum int) (PageGeometry, error) {
	box := defaultMediaBox
	mediaBox := inheritedAttr(page, "MediaBox")
	if mediaBox.Kind() == pdflib.Array && mediaBox.Len() >= 4 {
		for i := 0; i < 4; i++ {
			box[i] = mediaBox.Index(i).Float64()
		}
	}

	width := box[2] - box[0]
	height := box[3] - box[1]
	if width < 0 {
		width = -width
	}
	if height < 0 {
		height = -height
	}

	if width <= 0 || height <= 0 {
		return PageGeometry{}, fmt.Errorf("page %d: %.2fx%.2f: %w", pageNum, width, height, ErrInvalidPageGeometry)
	}

	rotation := normalizeRotation(inheritedAttr(page, "Rotate").Int64())
	if rotation != 0 {
		r.logger().WithFields(logrus.Fields{
			"page":     pageNum,
			"rotation": rotation,
		}).Warn("page is rotated; placements keep the unrotated orientation")
	}

	g := PageGeometry{
		Width:    width,
		Height:   height,
		Rotation: rotation,
	}
	if width > height {
		g.Orientation = Landscape
	}
	return g, nil
}

// inheritedAttr looks up a page attribute, walking up the page tree when the
// page itself does not define it. MediaBox and Rotate are inheritable.
func inheritedAttr(page pdflib.Value, key string) pdflib.Value {
	node := page
	for depth := 0; depth < 32; depth++ {
		if v := node.Key(key); !v.IsNull() {
			return v
		}
		parent := node.Key("Parent")
		if parent.IsNull() {
			break
		}
		node = parent
	}
	return pdflib.Value{}
}

func normalizeRotation(deg int64) int {
	r := int(deg) % 360
	if r < 0 {
		r += 360
	}
	return r
}
