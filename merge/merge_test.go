package merge_test

import (
	"bytes"
	"compress/zlib"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	pdflib "github.com/digitorus/pdf"

	"github.com/firmadoc/pdfmerge/images"
	"github.com/firmadoc/pdfmerge/internal/testpdf"
	"github.com/firmadoc/pdfmerge/merge"
	"github.com/firmadoc/pdfmerge/placement"
)

func signatureImage(t *testing.T, w, h int) *images.Image {
	t.Helper()
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		src.Set(x, h/2, color.RGBA{B: 120, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	img, err := images.From(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func place(id string, page int, relX, relY, relW, relH float64) placement.Placement {
	return placement.Placement{
		ID:        id,
		Page:      page,
		RelX:      relX,
		RelY:      relY,
		RelWidth:  relW,
		RelHeight: relH,
	}
}

func uncompressedMerger() *merge.Merger {
	m := merge.New()
	m.CompressLevel = zlib.NoCompression
	return m
}

func reparse(t *testing.T, doc []byte) *pdflib.Reader {
	t.Helper()
	rdr, err := pdflib.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		t.Fatalf("merged output does not parse: %v", err)
	}
	return rdr
}

func TestMergeImagePlacement(t *testing.T) {
	input := testpdf.Minimal()
	p := place("sig-1", 1, 0.1, 0.1, 0.5, 0.2)
	p.Image = signatureImage(t, 800, 200)

	out, result, err := uncompressedMerger().MergeBytes(input, []placement.Placement{p})
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}

	if result.Applied != 1 || result.Skipped != 0 {
		t.Fatalf("got applied=%d skipped=%d", result.Applied, result.Skipped)
	}

	// The update is incremental: the original bytes are untouched.
	if !bytes.HasPrefix(out, input) {
		t.Error("output does not start with the original document")
	}

	// The 4:1 image letterboxes inside the 306x158.4 target box: it is
	// drawn 306x76.5 and centered vertically.
	if !bytes.Contains(out, []byte("306.00 0 0 76.50 61.20 595.35 cm")) {
		t.Error("expected the aspect-fitted placement matrix in the content stream")
	}
	if !bytes.Contains(out, []byte("/FMim1 Do")) {
		t.Error("expected the image XObject to be drawn")
	}

	rdr := reparse(t, out)
	if rdr.NumPage() != 1 {
		t.Errorf("got %d pages after merge, want 1", rdr.NumPage())
	}
}

func TestMergeKeepsDirectPageAttributes(t *testing.T) {
	input := testpdf.Minimal()
	p := place("txt-1", 1, 0.2, 0.8, 0.5, 0.05)
	p.Text = "Jane Doe"

	out, _, err := uncompressedMerger().MergeBytes(input, []placement.Placement{p})
	if err != nil {
		t.Fatal(err)
	}

	// The rewritten page dict carries direct values over inline; a direct
	// MediaBox must not degrade into a reference to the page itself.
	rdr := reparse(t, out)
	mediaBox := rdr.Page(1).V.Key("MediaBox")
	if mediaBox.Kind() != pdflib.Array {
		t.Fatalf("MediaBox kind = %v, want array", mediaBox.Kind())
	}
	if got := mediaBox.Index(2).Float64(); got != 612 {
		t.Errorf("MediaBox width = %g, want 612", got)
	}
	if got := mediaBox.Index(3).Float64(); got != 792 {
		t.Errorf("MediaBox height = %g, want 792", got)
	}
}

func TestMergeWritesSingleStartxref(t *testing.T) {
	input := testpdf.Minimal()
	p := place("txt-1", 1, 0.2, 0.8, 0.5, 0.05)
	p.Text = "Jane Doe"

	out, _, err := uncompressedMerger().MergeBytes(input, []placement.Placement{p})
	if err != nil {
		t.Fatal(err)
	}

	update := out[len(input):]
	if got := bytes.Count(update, []byte("startxref")); got != 1 {
		t.Errorf("incremental update contains %d startxref keywords, want 1", got)
	}
}

func TestMergeConfiguredFloors(t *testing.T) {
	input := testpdf.Minimal()
	p := place("sig-1", 1, 0.1, 0.1, 0.001, 0.001)
	p.Image = signatureImage(t, 800, 200)

	m := uncompressedMerger()
	m.MinBoxWidth = 50
	m.MinBoxHeight = 50

	out, result, err := m.MergeBytes(input, []placement.Placement{p})
	if err != nil {
		t.Fatal(err)
	}
	if result.Applied != 1 {
		t.Fatalf("got applied=%d", result.Applied)
	}

	// The degenerate box is lifted to the configured 50x50 floor and the
	// 4:1 image letterboxes inside it.
	if !bytes.Contains(out, []byte("50.00 0 0 12.50 61.20 730.76 cm")) {
		t.Error("expected the floored placement matrix in the content stream")
	}
}

func TestMergeTextPlacement(t *testing.T) {
	input := testpdf.Minimal()
	p := place("txt-1", 1, 0.2, 0.8, 0.5, 0.05)
	p.Text = "Jane Doe"
	p.FontSize = 14

	out, result, err := uncompressedMerger().MergeBytes(input, []placement.Placement{p})
	if err != nil {
		t.Fatal(err)
	}
	if result.Applied != 1 {
		t.Fatalf("got applied=%d", result.Applied)
	}

	if !bytes.Contains(out, []byte("(Jane Doe) Tj")) {
		t.Error("expected the text-showing operator")
	}
	if !bytes.Contains(out, []byte("/BaseFont /Helvetica")) {
		t.Error("expected a standard Helvetica font dictionary")
	}
	reparse(t, out)
}

func TestMergeIsDeterministic(t *testing.T) {
	input := testpdf.Minimal()
	p := place("sig-1", 1, 0.1, 0.1, 0.4, 0.2)
	p.Image = signatureImage(t, 100, 50)

	m := uncompressedMerger()
	first, _, err := m.MergeBytes(input, []placement.Placement{p})
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := uncompressedMerger().MergeBytes(input, []placement.Placement{p})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("merging the same inputs twice produced different bytes")
	}
}

func TestMergeReplacesByID(t *testing.T) {
	input := testpdf.Minimal()
	first := place("sig-1", 1, 0.1, 0.1, 0.4, 0.2)
	first.Image = signatureImage(t, 100, 50)
	second := place("sig-1", 1, 0.5, 0.5, 0.3, 0.1)
	second.Image = signatureImage(t, 100, 50)

	_, result, err := uncompressedMerger().MergeBytes(input, []placement.Placement{first, second})
	if err != nil {
		t.Fatal(err)
	}
	if result.Applied != 1 {
		t.Errorf("re-signing the same id should apply once, got %d", result.Applied)
	}
}

func TestMergeDeduplicatesImageData(t *testing.T) {
	input := testpdf.Minimal(testpdf.WithPages(2))
	img := signatureImage(t, 50, 20)

	p1 := place("a", 1, 0.1, 0.1, 0.3, 0.1)
	p1.Image = img
	p2 := place("b", 2, 0.5, 0.5, 0.3, 0.1)
	p2.Image = img

	out, result, err := uncompressedMerger().MergeBytes(input, []placement.Placement{p1, p2})
	if err != nil {
		t.Fatal(err)
	}
	if result.Applied != 2 {
		t.Fatalf("got applied=%d, want 2", result.Applied)
	}

	// Same capture on both pages embeds one image XObject.
	if n := bytes.Count(out, []byte("/ColorSpace /DeviceRGB")); n != 1 {
		t.Errorf("found %d image XObjects, want 1", n)
	}
	reparse(t, out)
}

func TestMergeSkipsMissingCoordinates(t *testing.T) {
	input := testpdf.Minimal()
	p := placement.Placement{
		ID: "no-coords", Page: 1,
		RelX: math.NaN(), RelY: math.NaN(), RelWidth: math.NaN(), RelHeight: math.NaN(),
		Image: signatureImage(t, 10, 10),
	}

	out, result, err := uncompressedMerger().MergeBytes(input, []placement.Placement{p})
	if err != nil {
		t.Fatalf("a skippable placement must not fail the merge: %v", err)
	}

	if result.Applied != 0 || result.Skipped != 1 {
		t.Errorf("got applied=%d skipped=%d, want 0/1", result.Applied, result.Skipped)
	}
	if result.Placements[0].Reason == "" {
		t.Error("expected a skip reason")
	}
	reparse(t, out)
}

func TestMergePageOutOfRange(t *testing.T) {
	input := testpdf.Minimal()
	p := place("sig-1", 5, 0.1, 0.1, 0.3, 0.1)
	p.Image = signatureImage(t, 10, 10)

	_, result, err := uncompressedMerger().MergeBytes(input, []placement.Placement{p})
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped != 1 {
		t.Errorf("got skipped=%d, want 1", result.Skipped)
	}
	if !strings.Contains(result.Placements[0].Reason, "out of range") {
		t.Errorf("got reason %q", result.Placements[0].Reason)
	}
}

func TestMergeSkipsPlacementWithoutContent(t *testing.T) {
	input := testpdf.Minimal()
	p := place("empty", 1, 0.1, 0.1, 0.3, 0.1)

	_, result, err := uncompressedMerger().MergeBytes(input, []placement.Placement{p})
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped != 1 {
		t.Errorf("got skipped=%d, want 1", result.Skipped)
	}
}

func TestMergeReportsImageDecodeFailure(t *testing.T) {
	input := testpdf.Minimal()
	records := `[{"id":"gif","page":1,"dataUrl":"data:image/gif;base64,R0lGOD",
		"relativeX":0.1,"relativeY":0.1,"relativeWidth":0.3,"relativeHeight":0.1}]`
	placements, err := placement.DecodeRecords([]byte(records))
	if err != nil {
		t.Fatal(err)
	}

	_, result, err := uncompressedMerger().MergeBytes(input, placements)
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped != 1 {
		t.Fatalf("got skipped=%d, want 1", result.Skipped)
	}
	if !strings.Contains(result.Placements[0].Reason, "unsupported image format") {
		t.Errorf("got reason %q, want the decode failure", result.Placements[0].Reason)
	}
}

func TestMergeCorruptDocumentFails(t *testing.T) {
	_, _, err := uncompressedMerger().MergeBytes([]byte("not a pdf at all"), nil)
	if !errors.Is(err, merge.ErrDocumentLoad) {
		t.Errorf("got %v, want ErrDocumentLoad", err)
	}
}

func TestMergeNoPlacementsPreservesDocument(t *testing.T) {
	input := testpdf.Minimal()
	out, result, err := uncompressedMerger().MergeBytes(input, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Applied != 0 {
		t.Errorf("got applied=%d", result.Applied)
	}
	if !bytes.HasPrefix(out, input) {
		t.Error("output lost the original bytes")
	}
	reparse(t, out)
}

func TestMergeMultiplePages(t *testing.T) {
	input := testpdf.Minimal(testpdf.WithPages(3))

	p1 := place("a", 1, 0.1, 0.1, 0.3, 0.1)
	p1.Image = signatureImage(t, 40, 20)
	p3 := place("c", 3, 0.5, 0.8, 0.3, 0.1)
	p3.Text = "Approved"

	out, result, err := uncompressedMerger().MergeBytes(input, []placement.Placement{p1, p3})
	if err != nil {
		t.Fatal(err)
	}
	if result.Applied != 2 {
		t.Fatalf("got applied=%d, want 2", result.Applied)
	}

	rdr := reparse(t, out)
	if rdr.NumPage() != 3 {
		t.Errorf("got %d pages, want 3", rdr.NumPage())
	}
}

func TestMergeDownsamplesOversizedCaptures(t *testing.T) {
	input := testpdf.Minimal()
	p := place("big", 1, 0.1, 0.1, 0.5, 0.2)
	p.Image = signatureImage(t, 400, 200)

	m := uncompressedMerger()
	m.MaxImagePixels = 10_000

	out, result, err := m.MergeBytes(input, []placement.Placement{p})
	if err != nil {
		t.Fatal(err)
	}
	if result.Applied != 1 {
		t.Fatalf("got applied=%d", result.Applied)
	}
	// 400x200 capped at 10k pixels scales to 141x70.
	if !bytes.Contains(out, []byte("/Width 141 /Height 70")) {
		t.Error("expected the downsampled image dimensions")
	}
}

func TestMergeRotatedPageKeepsUnrotatedPlacement(t *testing.T) {
	input := testpdf.Minimal(testpdf.WithRotation(90))
	p := place("sig-1", 1, 0, 0, 0.5, 0.2)
	p.Image = signatureImage(t, 100, 50)

	out, result, err := uncompressedMerger().MergeBytes(input, []placement.Placement{p})
	if err != nil {
		t.Fatal(err)
	}
	if result.Applied != 1 {
		t.Fatalf("got applied=%d", result.Applied)
	}
	// No rotation term appears in the placement matrix.
	if bytes.Contains(out, []byte("0 1 -1 0")) {
		t.Error("placement matrix must not compensate for /Rotate")
	}
	reparse(t, out)
}
