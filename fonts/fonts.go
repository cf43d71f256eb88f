// Package fonts provides font metrics for text annotations.
//
// Text marks are drawn with the standard-14 PDF fonts, which never need
// embedding. Metrics are used to measure annotation text so it can be
// fitted and baseline-positioned inside a projected box; Helvetica advance
// widths ship built in, and TrueType metrics can be parsed for anything
// custom a deployment registers.
package fonts

import (
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// StandardType represents standard PDF fonts available in all readers.
type StandardType int

const (
	// Helvetica is the standard sans-serif font.
	Helvetica StandardType = iota
	// HelveticaBold is bold Helvetica.
	HelveticaBold
	// TimesRoman is the standard serif font.
	TimesRoman
	// Courier is the standard monospace font.
	Courier
)

// Font is a font resource usable in annotation appearances.
type Font struct {
	Name    string   // PostScript name
	Metrics *Metrics // nil falls back to approximate measurement
}

// Standard returns a Font for a standard PDF font. Helvetica carries real
// advance widths; the others measure approximately.
func Standard(ft StandardType) *Font {
	names := map[StandardType]string{
		Helvetica:     "Helvetica",
		HelveticaBold: "Helvetica-Bold",
		TimesRoman:    "Times-Roman",
		Courier:       "Courier",
	}
	f := &Font{Name: names[ft]}
	if ft == Helvetica {
		f.Metrics = helveticaMetrics()
	}
	return f
}

// Metrics contains glyph advance widths for text measurement.
type Metrics struct {
	UnitsPerEm  int
	GlyphWidths map[rune]int // advance widths in font units
}

// StringWidth measures text in points at the given size.
func (m *Metrics) StringWidth(text string, size float64) float64 {
	if m == nil || m.UnitsPerEm == 0 {
		return float64(len(text)) * size * 0.5
	}

	var total int
	for _, r := range text {
		if w, ok := m.GlyphWidths[r]; ok {
			total += w
		} else {
			total += m.UnitsPerEm / 2
		}
	}
	return float64(total) / float64(m.UnitsPerEm) * size
}

// ParseTTFMetrics extracts glyph metrics from a TrueType font file.
func ParseTTFMetrics(data []byte) (*Metrics, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, err
	}

	unitsPerEm := f.UnitsPerEm()
	widths := make(map[rune]int)
	var buf sfnt.Buffer
	ppem := fixed.Int26_6(unitsPerEm) << 6

	for r := rune(32); r <= rune(255); r++ {
		idx, err := f.GlyphIndex(&buf, r)
		if err != nil || idx == 0 {
			continue
		}
		advance, err := f.GlyphAdvance(&buf, idx, ppem, font.HintingNone)
		if err != nil {
			continue
		}
		widths[r] = int(advance >> 6)
	}

	return &Metrics{UnitsPerEm: int(unitsPerEm), GlyphWidths: widths}, nil
}

// helveticaAdvances holds the AFM advance widths for characters 32..126 in
// 1000 units per em.
var helveticaAdvances = [95]int{
	278, 278, 355, 556, 556, 889, 667, 222, 333, 333, 389, 584, 278, 333,
	278, 278, 556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278,
	584, 584, 584, 556, 1015, 667, 667, 722, 722, 667, 611, 778, 722, 278,
	500, 667, 556, 833, 722, 778, 667, 778, 722, 667, 611, 722, 667, 944,
	667, 667, 611, 278, 278, 278, 469, 556, 222, 556, 556, 500, 556, 556,
	278, 556, 556, 222, 222, 500, 222, 833, 556, 556, 556, 556, 333, 500,
	278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584,
}

func helveticaMetrics() *Metrics {
	widths := make(map[rune]int, len(helveticaAdvances))
	for i, w := range helveticaAdvances {
		widths[rune(32+i)] = w
	}
	return &Metrics{UnitsPerEm: 1000, GlyphWidths: widths}
}
