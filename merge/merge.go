// Package merge burns signature placements into PDF documents.
//
// One merge loads the document once, projects every placement through the
// shared geometry and coordinate pipeline, draws the marks into new page
// content streams, and appends everything as a single incremental update.
// Per-placement failures are logged and skipped; only an unreadable source
// document aborts the operation.
package merge

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/firmadoc/pdfmerge/fonts"
	"github.com/firmadoc/pdfmerge/geom"
	"github.com/firmadoc/pdfmerge/images"
	"github.com/firmadoc/pdfmerge/placement"
	"github.com/firmadoc/pdfmerge/project"
)

// ErrPageIndexOutOfRange indicates a placement referencing a page the
// document does not have. The placement is skipped.
var ErrPageIndexOutOfRange = errors.New("page index out of range")

// errNoDrawable marks placements with neither a usable image nor text.
var errNoDrawable = errors.New("placement has no usable image or text")

// Merger applies signature placements to documents. The zero value is
// usable; New sets the usual defaults.
type Merger struct {
	Logger logrus.FieldLogger

	// CompressLevel is the zlib level for new stream objects.
	CompressLevel int

	// MaxImagePixels caps capture size before embedding; 0 disables.
	MaxImagePixels int

	// MinBoxWidth and MinBoxHeight floor the drawn mark size in points.
	// Zero falls back to the package defaults in project.
	MinBoxWidth  float64
	MinBoxHeight float64
}

// New returns a Merger with default compression, image capping and mark
// size floors.
func New() *Merger {
	return &Merger{
		CompressLevel:  zlib.DefaultCompression,
		MaxImagePixels: 4_000_000,
		MinBoxWidth:    project.MinBoxWidth,
		MinBoxHeight:   project.MinBoxHeight,
	}
}

// PlacementResult is the per-placement outcome reported to the caller.
type PlacementResult struct {
	ID      string `json:"id"`
	Page    int    `json:"page"`
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

// Result summarizes one merge operation.
type Result struct {
	Applied    int               `json:"applied"`
	Skipped    int               `json:"skipped"`
	Placements []PlacementResult `json:"placements"`
}

func (m *Merger) logger() logrus.FieldLogger {
	if m.Logger != nil {
		return m.Logger
	}
	return logrus.StandardLogger()
}

// MergeBytes is a convenience wrapper around Merge for in-memory documents.
func (m *Merger) MergeBytes(document []byte, placements []placement.Placement) ([]byte, *Result, error) {
	var out bytes.Buffer
	result, err := m.Merge(bytes.NewReader(document), int64(len(document)), &out, placements)
	if err != nil {
		return nil, nil, err
	}
	return out.Bytes(), result, nil
}

// Merge applies the placements to the document read from input and writes
// the merged document to output. Placements are normalized by id first, so
// re-signing with an existing id replaces the prior mark and running the
// same merge twice produces identical bytes.
func (m *Merger) Merge(input InputFile, size int64, output io.Writer, placements []placement.Placement) (*Result, error) {
	context, err := NewContext(input, size)
	if err != nil {
		return nil, err
	}
	context.Logger = m.logger()
	context.CompressLevel = m.CompressLevel

	placements = placement.MergeByID(nil, placements)

	result := &Result{}
	resolver := geom.Resolver{Logger: m.logger()}

	// Group placements per page, keeping first-seen page order so the
	// embed order is deterministic.
	var pageOrder []int
	byPage := make(map[int][]placement.Placement)
	for _, p := range placements {
		if _, ok := byPage[p.Page]; !ok {
			pageOrder = append(pageOrder, p.Page)
		}
		byPage[p.Page] = append(byPage[p.Page], p)
	}

	var fontID uint32
	var fontRes *fonts.Font
	imgCount := 0

	for _, pageNum := range pageOrder {
		group := byPage[pageNum]

		if pageNum < 1 || pageNum > context.PDFReader.NumPage() {
			m.skipGroup(result, group, fmt.Errorf("page %d of %d: %w", pageNum, context.PDFReader.NumPage(), ErrPageIndexOutOfRange))
			continue
		}

		page, err := context.findPage(pageNum)
		if err != nil {
			m.skipGroup(result, group, fmt.Errorf("page %d: %w", pageNum, err))
			continue
		}

		geometry, err := resolver.Resolve(page, pageNum)
		if err != nil {
			// Fatal for this page's placements only.
			m.skipGroup(result, group, err)
			continue
		}

		var ops bytes.Buffer
		xobjects := make(map[string]uint32)
		pageFonts := make(map[string]uint32)

		for _, p := range group {
			box, err := project.Project(p, geometry)
			if err != nil {
				m.skip(result, p, err)
				continue
			}
			box = applyFloors(box, m.MinBoxWidth, m.MinBoxHeight)

			switch {
			case p.Image != nil:
				img := p.Image
				if m.MaxImagePixels > 0 {
					if img, err = images.Downsample(img, m.MaxImagePixels); err != nil {
						m.skip(result, p, err)
						continue
					}
				}

				objID, err := context.registerImage(img)
				if err != nil {
					m.skip(result, p, err)
					continue
				}

				imgCount++
				name := fmt.Sprintf("FMim%d", imgCount)
				xobjects[name] = objID
				drawImageOps(&ops, name, fitBox(img.AspectRatio(), box))

			case p.IsText():
				if fontID == 0 {
					fontRes = fonts.Standard(fonts.Helvetica)
					if fontID, err = context.addStandardFont(fontRes); err != nil {
						m.skip(result, p, err)
						continue
					}
				}
				pageFonts["FMfnt1"] = fontID
				drawTextOps(&ops, "FMfnt1", p.Text, p.FontSize, box, fontRes)

			default:
				reason := errNoDrawable
				if p.ImageErr != nil {
					reason = p.ImageErr
				}
				m.skip(result, p, reason)
				continue
			}

			result.Applied++
			result.Placements = append(result.Placements, PlacementResult{ID: p.ID, Page: p.Page, Applied: true})
		}

		if ops.Len() == 0 {
			continue
		}

		contentID, err := context.addContentStream(ops.Bytes())
		if err != nil {
			return nil, fmt.Errorf("failed to add content stream for page %d: %w", pageNum, err)
		}
		if err := context.rewritePage(page, contentID, xobjects, pageFonts); err != nil {
			return nil, fmt.Errorf("failed to update page %d: %w", pageNum, err)
		}
	}

	if err := context.finish(); err != nil {
		return nil, err
	}
	if err := context.writeTo(output); err != nil {
		return nil, err
	}
	return result, nil
}

func (m *Merger) skip(result *Result, p placement.Placement, reason error) {
	m.logger().WithFields(logrus.Fields{
		"placement": p.ID,
		"page":      p.Page,
		"reason":    reason.Error(),
	}).Warn("skipping placement")

	result.Skipped++
	result.Placements = append(result.Placements, PlacementResult{
		ID:     p.ID,
		Page:   p.Page,
		Reason: reason.Error(),
	})
}

func (m *Merger) skipGroup(result *Result, group []placement.Placement, reason error) {
	for _, p := range group {
		m.skip(result, p, reason)
	}
}
