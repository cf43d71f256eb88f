// Package testpdf builds small but complete PDF files for tests.
//
// The generated documents have a correct xref table and trailer so they can
// be parsed, incrementally updated, and validated like real files.
package testpdf

import (
	"bytes"
	"fmt"
)

type doc struct {
	pages    int
	mediaBox [4]float64
	rotate   int
}

// Option configures the generated document.
type Option func(d *doc)

// WithMediaBox sets the page MediaBox for every page.
func WithMediaBox(x0, y0, x1, y1 float64) Option {
	return func(d *doc) { d.mediaBox = [4]float64{x0, y0, x1, y1} }
}

// WithRotation sets /Rotate on every page.
func WithRotation(deg int) Option {
	return func(d *doc) { d.rotate = deg }
}

// WithPages sets the page count.
func WithPages(n int) Option {
	return func(d *doc) { d.pages = n }
}

// Minimal returns a complete single-page (by default) PDF document.
func Minimal(opts ...Option) []byte {
	d := &doc{
		pages:    1,
		mediaBox: [4]float64{0, 0, 612, 792},
	}
	for _, opt := range opts {
		opt(d)
	}

	var objects [][]byte

	// Object numbering: 1 catalog, 2 pages, 3 font, then per page a page
	// object and a content stream.
	kids := ""
	for i := 0; i < d.pages; i++ {
		if i > 0 {
			kids += " "
		}
		kids += fmt.Sprintf("%d 0 R", 4+2*i)
	}

	objects = append(objects, []byte("<< /Type /Catalog /Pages 2 0 R >>"))
	objects = append(objects, []byte(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, d.pages)))
	objects = append(objects, []byte("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"))

	content := "BT /F1 12 Tf 72 72 Td (placeholder) Tj ET"
	for i := 0; i < d.pages; i++ {
		page := fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [%g %g %g %g]",
			d.mediaBox[0], d.mediaBox[1], d.mediaBox[2], d.mediaBox[3])
		if d.rotate != 0 {
			page += fmt.Sprintf(" /Rotate %d", d.rotate)
		}
		page += fmt.Sprintf(" /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i)
		objects = append(objects, []byte(page))

		stream := fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
		objects = append(objects, []byte(stream))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(objects)+1)
	for i, obj := range objects {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		buf.Write(obj)
		buf.WriteString("\nendobj\n")
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \r\n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&buf, "%010d %05d n \r\n", offsets[i], 0)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)

	return buf.Bytes()
}
