package upload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const dataURLPrefix = "data:"

// InlineDataURL embeds the payload bytes as a base64 data URL.
func InlineDataURL(p Payload) string {
	return fmt.Sprintf("data:%s;base64,%s", normalizeType(p.ContentType), base64.StdEncoding.EncodeToString(p.Data))
}

// IsDataURL reports whether value is an inline data URL.
func IsDataURL(value string) bool {
	return strings.HasPrefix(value, dataURLPrefix)
}

// DecodeDataURL reverses InlineDataURL.
func DecodeDataURL(value string) (Payload, error) {
	if !IsDataURL(value) {
		return Payload{}, errors.New("not a data url")
	}
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(value, dataURLPrefix), ",")
	if !ok {
		return Payload{}, errors.New("malformed data url")
	}
	contentType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return Payload{}, errors.New("data url is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, fmt.Errorf("decode data url: %w", err)
	}
	return Payload{Data: data, ContentType: contentType}, nil
}
