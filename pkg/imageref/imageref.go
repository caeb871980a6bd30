// Package imageref holds validated image payloads that can be sent to a vision model.
package imageref

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	ErrEmpty          = errors.New("image payload is empty")
	ErrInvalidDataURL = errors.New("invalid data URL")
	ErrNotImage       = errors.New("payload is not a decodable still image")
)

// MaxImageBytes bounds a single decoded image payload.
const MaxImageBytes = 20 << 20

// ImageRef is an image whose bytes have been confirmed to decode as a still image.
// The zero value is not usable; build one with FromBytes, FromDataURL or FromFile.
type ImageRef struct {
	data     []byte
	mimeType string
	width    int
	height   int
}

// FromBytes validates raw image bytes. The MIME type is sniffed from the content.
func FromBytes(data []byte) (*ImageRef, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrNotImage, len(data), MaxImageBytes)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotImage, mtype.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: zero dimensions", ErrNotImage)
	}

	return &ImageRef{
		data:     data,
		mimeType: mtype.String(),
		width:    cfg.Width,
		height:   cfg.Height,
	}, nil
}

// FromDataURL parses a base64 "data:<mime>;base64,<payload>" URL as produced by
// browser FileReader.readAsDataURL.
func FromDataURL(dataURL string) (*ImageRef, error) {
	dataURL = strings.TrimSpace(dataURL)
	if dataURL == "" {
		return nil, ErrEmpty
	}
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, fmt.Errorf("%w: missing data: scheme", ErrInvalidDataURL)
	}

	header, payload, found := strings.Cut(dataURL, ",")
	if !found {
		return nil, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURL)
	}
	if !strings.HasSuffix(strings.ToLower(header), ";base64") {
		return nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return FromBytes(data)
}

// FromFile reads and validates an image file from disk.
func FromFile(path string) (*ImageRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat image %s: %w", path, err)
	}
	if info.Size() > MaxImageBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrNotImage, path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	ref, err := FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ref, nil
}

func decodeBase64(payload string) ([]byte, error) {
	payload = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, payload)

	data, err := base64.StdEncoding.DecodeString(payload)
	if err == nil {
		return data, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(payload); rawErr == nil {
		return raw, nil
	}
	return nil, err
}

// MIMEType returns the sniffed content type, e.g. "image/png".
func (r *ImageRef) MIMEType() string { return r.mimeType }

// Bytes returns the raw image bytes. Callers must not modify the slice.
func (r *ImageRef) Bytes() []byte { return r.data }

// Base64 returns the standard base64 encoding of the image bytes.
func (r *ImageRef) Base64() string {
	return base64.StdEncoding.EncodeToString(r.data)
}

// DataURL re-encodes the image as a data URL.
func (r *ImageRef) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", r.mimeType, r.Base64())
}

// Dimensions returns the decoded width and height in pixels.
func (r *ImageRef) Dimensions() (int, int) { return r.width, r.height }

// String describes the image without dumping its payload.
func (r *ImageRef) String() string {
	return fmt.Sprintf("%s %dx%d (%d bytes)", r.mimeType, r.width, r.height, len(r.data))
}
