package upload

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// DefaultThumbnailSize is the longest edge of generated thumbnails.
const DefaultThumbnailSize = 256

// Thumbnail decodes data and returns a JPEG no larger than maxSize on its
// longest edge. Smaller images are re-encoded at their own size.
func Thumbnail(data []byte, maxSize int) (Payload, error) {
	if maxSize <= 0 {
		maxSize = DefaultThumbnailSize
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := checkDimensions(cfg.Width, cfg.Height, DefaultMaxPixels); err != nil {
		return Payload{}, err
	}

	srcImg, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Payload{}, err
	}

	bounds := srcImg.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	scale := float64(maxSize) / float64(max(width, height))
	if scale > 1 {
		scale = 1
	}
	newW := max(int(float64(width)*scale), 1)
	newH := max(int(float64(height)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), srcImg, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 80}); err != nil {
		return Payload{}, err
	}
	return Payload{Data: buf.Bytes(), ContentType: "image/jpeg"}, nil
}
