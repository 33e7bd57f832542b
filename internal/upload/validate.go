// Package upload validates image payloads and stores them through an ordered
// chain of storage strategies, falling back to an inline data URL.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	_ "golang.org/x/image/webp"
)

// DefaultMaxBytes bounds accepted uploads.
const DefaultMaxBytes int64 = 3 << 20

// DefaultMaxPixels bounds the decoded size of an image. Compressed formats
// can declare far more pixels than their byte size suggests.
const DefaultMaxPixels int64 = 40_000_000

// DefaultAllowedTypes lists the accepted content types.
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/webp"}

var (
	ErrEmpty           = errors.New("file is empty")
	ErrTooLarge        = errors.New("file is too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTypeMismatch    = errors.New("file content does not match its declared type")
	ErrMalformed       = errors.New("file is not a readable image")
)

// Payload is an image to be stored.
type Payload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Validator checks payloads before any network call is made.
type Validator struct {
	MaxBytes     int64
	MaxPixels    int64
	AllowedTypes []string
}

// Validate returns the payload with a normalized content type, or an error
// wrapping one of the package sentinels.
func (v Validator) Validate(p Payload) (Payload, error) {
	maxBytes := v.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	allowed := v.AllowedTypes
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}

	if len(p.Data) == 0 {
		return p, ErrEmpty
	}
	if int64(len(p.Data)) > maxBytes {
		return p, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(p.Data), maxBytes)
	}

	declared := normalizeType(p.ContentType)
	sniffed := normalizeType(http.DetectContentType(p.Data))

	if declared != "" && !typeAllowed(declared, allowed) {
		return p, fmt.Errorf("%w: %s", ErrUnsupportedType, declared)
	}
	if !typeAllowed(sniffed, allowed) {
		return p, fmt.Errorf("%w: %s", ErrUnsupportedType, sniffed)
	}
	if declared != "" && declared != sniffed {
		return p, fmt.Errorf("%w: declared %s, detected %s", ErrTypeMismatch, declared, sniffed)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(p.Data))
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := checkDimensions(cfg.Width, cfg.Height, v.MaxPixels); err != nil {
		return p, err
	}

	p.ContentType = sniffed
	return p, nil
}

func checkDimensions(width, height int, maxPixels int64) error {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: invalid dimensions", ErrMalformed)
	}
	if pixels := int64(width) * int64(height); pixels > maxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, width, height, maxPixels)
	}
	return nil
}

// Extension returns the file extension for a supported content type.
func Extension(contentType string) string {
	switch normalizeType(contentType) {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}

func normalizeType(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	if value == "image/jpg" {
		value = "image/jpeg"
	}
	return value
}

func typeAllowed(value string, allowed []string) bool {
	for _, candidate := range allowed {
		if normalizeType(candidate) == value {
			return true
		}
	}
	return false
}
