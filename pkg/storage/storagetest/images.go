package storagetest

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// SignaturePNG encodes an opaque PNG of the given size: a black stroke on
// white, written without an alpha channel.
func SignaturePNG(t testing.TB, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	for x := 0; x < width; x++ {
		img.Set(x, height/2, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// SignatureDataURL wraps SignaturePNG in a data URL as browsers send it.
func SignatureDataURL(t testing.TB) string {
	t.Helper()
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(SignaturePNG(t, 120, 40))
}
