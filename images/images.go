// Package images provides image resources for PDF signature marks.
//
// Signature captures arrive either as raw PNG/JPEG bytes or as browser
// data URLs. Only those two formats are supported; anything else is
// rejected before it reaches the merge pipeline.
package images

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// ErrUnsupportedImageFormat indicates image bytes that are neither PNG nor JPEG.
var ErrUnsupportedImageFormat = errors.New("unsupported image format")

// Image represents a decoded signature capture ready for embedding.
type Image struct {
	Data   []byte // Raw image data (JPEG or PNG)
	Format string // "png" or "jpeg"
	Width  int    // Native pixel width
	Height int    // Native pixel height
	Hash   string // SHA256 hash of image data for deduplication
}

// AspectRatio returns the native width over height ratio.
func (i *Image) AspectRatio() float64 {
	if i.Height == 0 {
		return 0
	}
	return float64(i.Width) / float64(i.Height)
}

// DataURL re-encodes the image as a browser data URL.
func (i *Image) DataURL() string {
	mime := "image/png"
	if i.Format == "jpeg" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// From builds an Image from raw PNG or JPEG bytes.
func From(data []byte) (*Image, error) {
	format, err := Detect(data)
	if err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image configuration: %w", err)
	}

	sum := sha256.Sum256(data)
	return &Image{
		Data:   data,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Hash:   hex.EncodeToString(sum[:]),
	}, nil
}

// FromDataURL builds an Image from a browser data URL
// (data:image/png;base64,...). The declared MIME type must be PNG or JPEG
// and must match the payload.
func FromDataURL(url string) (*Image, error) {
	payload, declared, err := splitDataURL(url)
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL payload: %w", err)
	}

	img, err := From(data)
	if err != nil {
		return nil, err
	}
	if declared != "" && declared != img.Format {
		return nil, fmt.Errorf("data URL declares %s but payload is %s: %w", declared, img.Format, ErrUnsupportedImageFormat)
	}
	return img, nil
}

// Detect identifies PNG or JPEG from the magic bytes.
func Detect(data []byte) (string, error) {
	switch {
	case len(data) >= 8 && bytes.Equal(data[:8], []byte("\x89PNG\r\n\x1a\n")):
		return "png", nil
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "jpeg", nil
	default:
		return "", ErrUnsupportedImageFormat
	}
}

// splitDataURL separates the base64 payload and the declared format.
func splitDataURL(url string) (payload, format string, err error) {
	if !strings.HasPrefix(url, "data:") {
		// Not a data URL; treat the whole string as bare base64.
		return url, "", nil
	}

	comma := strings.IndexByte(url, ',')
	if comma < 0 {
		return "", "", fmt.Errorf("malformed data URL")
	}

	meta := url[len("data:"):comma]
	payload = url[comma+1:]

	mime := meta
	if semi := strings.IndexByte(meta, ';'); semi >= 0 {
		mime = meta[:semi]
	}
	switch mime {
	case "image/png":
		format = "png"
	case "image/jpeg", "image/jpg":
		format = "jpeg"
	case "":
		format = ""
	default:
		return "", "", fmt.Errorf("%s: %w", mime, ErrUnsupportedImageFormat)
	}
	return payload, format, nil
}

// Downsample scales an image down so its pixel count does not exceed
// maxPixels, re-encoding in the original format. Wacom pads in particular
// produce captures far larger than any plausible target box. Images already
// within the cap are returned unchanged.
func Downsample(img *Image, maxPixels int) (*Image, error) {
	if maxPixels <= 0 || img.Width*img.Height <= maxPixels {
		return img, nil
	}

	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image for downsampling: %w", err)
	}

	// Area scales by the square of the linear factor.
	factor := math.Sqrt(float64(maxPixels) / float64(img.Width*img.Height))
	w := int(float64(img.Width) * factor)
	h := int(float64(img.Height) * factor)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)

	var buf bytes.Buffer
	switch img.Format {
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode downsampled image: %w", err)
	}

	return From(buf.Bytes())
}
