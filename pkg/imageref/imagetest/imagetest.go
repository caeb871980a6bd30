// Package imagetest builds small in-memory images for tests.
package imagetest

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/alantheprice/yardcheck/pkg/imageref"
)

// PNGBytes encodes a w x h solid green PNG.
func PNGBytes(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{G: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// Ref returns a validated 4x4 PNG reference.
func Ref(t testing.TB) *imageref.ImageRef {
	t.Helper()
	ref, err := imageref.FromBytes(PNGBytes(t, 4, 4))
	if err != nil {
		t.Fatalf("image ref: %v", err)
	}
	return ref
}

// Refs returns n distinct image references (sizes differ so bytes differ).
func Refs(t testing.TB, n int) []*imageref.ImageRef {
	t.Helper()
	refs := make([]*imageref.ImageRef, n)
	for i := range refs {
		ref, err := imageref.FromBytes(PNGBytes(t, 2+i, 2+i))
		if err != nil {
			t.Fatalf("image ref %d: %v", i, err)
		}
		refs[i] = ref
	}
	return refs
}
