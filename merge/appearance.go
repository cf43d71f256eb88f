package merge

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG format
	_ "image/png"  // register PNG format
	"io"

	"github.com/firmadoc/pdfmerge/fonts"
	"github.com/firmadoc/pdfmerge/images"
	"github.com/firmadoc/pdfmerge/project"
)

// fitBox centers an image within the target box preserving its native
// aspect ratio: the constrained dimension fills the box, the other is
// scaled proportionally (letterbox/pillarbox). Pressure-pad captures in
// particular must not be stretched to the box shape.
func fitBox(aspect float64, box project.Box) project.Box {
	if aspect <= 0 || box.Width <= 0 || box.Height <= 0 {
		return box
	}

	drawn := project.Box{Width: box.Width, Height: box.Height}
	if aspect >= box.AspectRatio() {
		drawn.Width = box.Width
		drawn.Height = box.Width / aspect
	} else {
		drawn.Height = box.Height
		drawn.Width = box.Height * aspect
	}

	drawn.X = box.X + (box.Width-drawn.Width)/2
	drawn.Y = box.Y + (box.Height-drawn.Height)/2
	return drawn
}

// applyFloors enforces the minimum mark size so degenerate boxes do not
// produce invisible marks. Zero floors fall back to the package defaults.
func applyFloors(box project.Box, minWidth, minHeight float64) project.Box {
	if minWidth <= 0 {
		minWidth = project.MinBoxWidth
	}
	if minHeight <= 0 {
		minHeight = project.MinBoxHeight
	}
	if box.Width < minWidth {
		box.Width = minWidth
	}
	if box.Height < minHeight {
		box.Height = minHeight
	}
	return box
}

// registerImage encodes signature image bytes as a PDF image XObject and
// adds it to the document, deduplicating by content hash. Opaque JPEG data
// passes through as DCTDecode; everything else is re-encoded as
// FlateDecode RGB with an SMask when the capture has transparency.
func (context *Context) registerImage(img *images.Image) (uint32, error) {
	if id, ok := context.imageObjectIDs[img.Hash]; ok {
		return id, nil
	}

	srcImg, format, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return 0, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := srcImg.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var rgbBuf, alphaBuf bytes.Buffer
	useCompression := context.CompressLevel != zlib.NoCompression

	var rgbWriter, alphaWriter io.Writer = &rgbBuf, &alphaBuf
	var zlibRgb, zlibAlpha *zlib.Writer
	if useCompression {
		zlibRgb, _ = zlib.NewWriterLevel(&rgbBuf, context.CompressLevel)
		zlibAlpha, _ = zlib.NewWriterLevel(&alphaBuf, context.CompressLevel)
		rgbWriter, alphaWriter = zlibRgb, zlibAlpha
	}

	hasAlpha := false
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := srcImg.At(x, y).RGBA()
			a8 := uint8(a >> 8)
			if a8 < 255 {
				hasAlpha = true
			}
			alphaWriter.Write([]byte{a8})
			rgbWriter.Write([]byte{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)})
		}
	}

	if useCompression {
		zlibRgb.Close()
		zlibAlpha.Close()
	}

	var smaskID uint32
	if hasAlpha {
		filter := ""
		if useCompression {
			filter = "/Filter /FlateDecode "
		}
		smaskDict := fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8 %s/Length %d >>\nstream\n",
			width, height, filter, alphaBuf.Len())
		smaskData := append([]byte(smaskDict), alphaBuf.Bytes()...)
		smaskData = append(smaskData, []byte("\nendstream")...)
		if smaskID, err = context.addObject(smaskData); err != nil {
			return 0, err
		}
	}

	var objBuf bytes.Buffer
	objBuf.WriteString("<< /Type /XObject /Subtype /Image\n")
	fmt.Fprintf(&objBuf, "  /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8\n", width, height)
	if smaskID != 0 {
		fmt.Fprintf(&objBuf, "  /SMask %d 0 R\n", smaskID)
	}

	if format == "jpeg" && !hasAlpha {
		fmt.Fprintf(&objBuf, "  /Filter /DCTDecode /Length %d >>\nstream\n", len(img.Data))
		objBuf.Write(img.Data)
	} else {
		if useCompression {
			objBuf.WriteString("  /Filter /FlateDecode\n")
		}
		fmt.Fprintf(&objBuf, "  /Length %d >>\nstream\n", rgbBuf.Len())
		objBuf.Write(rgbBuf.Bytes())
	}
	objBuf.WriteString("\nendstream")

	id, err := context.addObject(objBuf.Bytes())
	if err != nil {
		return 0, err
	}
	context.imageObjectIDs[img.Hash] = id
	return id, nil
}

// addContentStream appends a content stream object wrapping the draw
// operators in a saved graphics state.
func (context *Context) addContentStream(ops []byte) (uint32, error) {
	stream := make([]byte, 0, len(ops)+4)
	stream = append(stream, "q\n"...)
	stream = append(stream, ops...)
	stream = append(stream, "Q"...)

	filter := ""
	if context.CompressLevel != zlib.NoCompression {
		encoded, err := flateEncode(stream)
		if err != nil {
			return 0, err
		}
		stream = encoded
		filter = "/Filter /FlateDecode "
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<< %s/Length %d >>\nstream\n", filter, len(stream))
	buf.Write(stream)
	buf.WriteString("\nendstream")
	return context.addObject(buf.Bytes())
}

// addStandardFont appends a non-embedded standard-14 font dictionary.
func (context *Context) addStandardFont(font *fonts.Font) (uint32, error) {
	dict := fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /%s /Encoding /WinAnsiEncoding >>", font.Name)
	return context.addObject([]byte(dict))
}

// drawImageOps emits the operators that place an image XObject at the
// drawn box. The cm matrix carries no rotation regardless of the page's
// /Rotate value.
func drawImageOps(buffer *bytes.Buffer, name string, drawn project.Box) {
	buffer.WriteString("q\n")
	fmt.Fprintf(buffer, "%.2f 0 0 %.2f %.2f %.2f cm\n", drawn.Width, drawn.Height, drawn.X, drawn.Y)
	fmt.Fprintf(buffer, "/%s Do\n", name)
	buffer.WriteString("Q\n")
}

// drawTextOps emits text-showing operators inside the target box. The
// baseline sits one em below the box top so the text reads from the same
// spot the browser showed it.
func drawTextOps(buffer *bytes.Buffer, fontName, text string, size float64, box project.Box, font *fonts.Font) {
	if size <= 0 {
		size = 12
	}
	// Shrink to keep the text inside the box width.
	for size > 4 && font.Metrics.StringWidth(text, size) > box.Width {
		size--
	}

	baselineY := box.Y + box.Height - size

	buffer.WriteString("q\nBT\n")
	fmt.Fprintf(buffer, "/%s %.2f Tf\n", fontName, size)
	buffer.WriteString("0.2 0.2 0.6 rg\n")
	fmt.Fprintf(buffer, "%.2f %.2f Td\n", box.X, baselineY)
	fmt.Fprintf(buffer, "%s Tj\n", pdfString(text))
	buffer.WriteString("ET\nQ\n")
}
