// Package pdfmerge places signature marks on PDF documents.
//
// Callers describe where a mark goes in relative page coordinates, the same
// coordinates a browser canvas or signature pad reports, and the library
// projects them onto the native page geometry and burns the mark into the
// document as an incremental update.
//
// Basic usage:
//
//	doc, err := pdfmerge.OpenFile("contract.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	doc.Stamp("sig-1").
//	    Page(2).
//	    At(0.15, 0.15, 0.49, 0.19).
//	    ImageData(pngBytes)
//
//	result, err := doc.Write(output)
package pdfmerge

import (
	"compress/zlib"
	"fmt"
	"io"
	"math"
	"os"

	pdflib "github.com/digitorus/pdf"
	"github.com/sirupsen/logrus"

	"github.com/firmadoc/pdfmerge/geom"
	"github.com/firmadoc/pdfmerge/images"
	"github.com/firmadoc/pdfmerge/merge"
	"github.com/firmadoc/pdfmerge/placement"
)

// Document represents a PDF document that marks can be placed on.
type Document struct {
	reader merge.InputFile
	size   int64
	rdr    *pdflib.Reader

	pending []*StampBuilder

	logger         logrus.FieldLogger
	compressLevel  int
	maxImagePixels int
}

// Open initializes a Document from an open file or memory buffer.
// The size parameter must be the total size of the PDF in bytes.
func Open(reader merge.InputFile, size int64) (*Document, error) {
	rdr, err := pdflib.NewReader(reader, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &Document{
		reader:         reader,
		size:           size,
		rdr:            rdr,
		compressLevel:  zlib.DefaultCompression,
		maxImagePixels: 4_000_000,
	}, nil
}

// OpenFile is a convenience method to initialize a Document from a file on disk.
func OpenFile(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	finfo, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return Open(file, finfo.Size())
}

// SetCompression configures the zlib compression level for new objects
// added to the PDF.
func (d *Document) SetCompression(level int) {
	d.compressLevel = level
}

// SetLogger routes skip warnings to the given logger instead of the
// logrus standard logger.
func (d *Document) SetLogger(logger logrus.FieldLogger) {
	d.logger = logger
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return d.rdr.NumPage()
}

// Geometry resolves the native dimensions of every page.
func (d *Document) Geometry() ([]geom.PageGeometry, error) {
	resolver := geom.Resolver{Logger: d.logger}
	pages := make([]geom.PageGeometry, 0, d.rdr.NumPage())
	for i := 1; i <= d.rdr.NumPage(); i++ {
		g, err := resolver.Resolve(d.rdr.Page(i).V, i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, g)
	}
	return pages, nil
}

// Stamp stages a mark with the given id. It returns a StampBuilder for
// fluent configuration; the mark is only applied when doc.Write is called.
// Staging a second stamp with the same id replaces the first.
func (d *Document) Stamp(id string) *StampBuilder {
	sb := &StampBuilder{
		doc: d,
		placement: placement.Placement{
			ID:        id,
			Page:      1,
			RelX:      math.NaN(),
			RelY:      math.NaN(),
			RelWidth:  math.NaN(),
			RelHeight: math.NaN(),
			Source:    placement.Mapping,
		},
	}
	d.pending = append(d.pending, sb)
	return sb
}

// Annotate stages a text mark with the given id and text. Position it
// with At like any other stamp.
func (d *Document) Annotate(id, text string) *StampBuilder {
	return d.Stamp(id).Text(text)
}

// StampBuilder configures a single staged mark.
type StampBuilder struct {
	doc       *Document
	placement placement.Placement
	err       error
}

// Page sets the 1-based page number the mark goes on.
func (sb *StampBuilder) Page(n int) *StampBuilder {
	sb.placement.Page = n
	return sb
}

// At sets the mark's position and size in relative page coordinates with a
// top-left origin, each in [0,1].
func (sb *StampBuilder) At(relX, relY, relWidth, relHeight float64) *StampBuilder {
	sb.placement.RelX = relX
	sb.placement.RelY = relY
	sb.placement.RelWidth = relWidth
	sb.placement.RelHeight = relHeight
	return sb
}

// Source records where the mark's coordinates came from.
func (sb *StampBuilder) Source(s placement.Source) *StampBuilder {
	sb.placement.Source = s
	return sb
}

// Image places a decoded signature image.
func (sb *StampBuilder) Image(img *images.Image) *StampBuilder {
	sb.placement.Image = img
	return sb
}

// ImageData decodes raw PNG or JPEG bytes and places them.
func (sb *StampBuilder) ImageData(data []byte) *StampBuilder {
	img, err := images.From(data)
	if err != nil {
		sb.err = fmt.Errorf("stamp %q: %w", sb.placement.ID, err)
		return sb
	}
	sb.placement.Image = img
	return sb
}

// Text places a typed signature string instead of an image.
func (sb *StampBuilder) Text(text string) *StampBuilder {
	sb.placement.Text = text
	return sb
}

// FontSize sets the preferred text size in points. Text is shrunk to fit
// the box when needed.
func (sb *StampBuilder) FontSize(size float64) *StampBuilder {
	sb.placement.FontSize = size
	return sb
}

// Write applies all staged marks and writes the resulting document to
// output. The input document is never modified.
func (d *Document) Write(output io.Writer) (*merge.Result, error) {
	placements := make([]placement.Placement, 0, len(d.pending))
	for _, sb := range d.pending {
		if sb.err != nil {
			return nil, sb.err
		}
		placements = append(placements, sb.placement)
	}

	merger := &merge.Merger{
		Logger:         d.logger,
		CompressLevel:  d.compressLevel,
		MaxImagePixels: d.maxImagePixels,
	}
	return merger.Merge(d.reader, d.size, output, placements)
}
