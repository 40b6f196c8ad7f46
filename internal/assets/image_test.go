package assets

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/ledgerly-backend/pkg/errors"
	"github.com/angelmondragon/ledgerly-backend/pkg/security"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(1, 1, color.Black)
	return img
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage()); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeSignatureImageAcceptsDataURL(t *testing.T) {
	raw := pngBytes(t)
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	img, err := DecodeSignatureImage(encoded, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.ContentType != "image/png" || img.Extension != ".png" {
		t.Fatalf("unexpected type %s %s", img.ContentType, img.Extension)
	}
	if img.SHA256 != security.SHA256Hex(raw) {
		t.Fatalf("unexpected digest %s", img.SHA256)
	}
	if img.Filename("client") != "client.png" {
		t.Fatalf("unexpected filename %s", img.Filename("client"))
	}
}

func TestDecodeSignatureImageSniffsJPEGRegardlessOfPrefix(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	img, err := DecodeSignatureImage(encoded, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.ContentType != "image/jpeg" {
		t.Fatalf("expected jpeg, got %s", img.ContentType)
	}
}

func TestDecodeSignatureImageRejections(t *testing.T) {
	var gifBuf bytes.Buffer
	if err := gif.Encode(&gifBuf, testImage(), nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	raw := pngBytes(t)

	cases := map[string]struct {
		input    string
		maxBytes int
	}{
		"empty":          {input: "  "},
		"not base64":     {input: "%%%not-base64%%%"},
		"data url plain": {input: "data:image/png," + string(raw)},
		"gif":            {input: base64.StdEncoding.EncodeToString(gifBuf.Bytes())},
		"text":           {input: base64.StdEncoding.EncodeToString([]byte("hello there"))},
		"too large":      {input: base64.StdEncoding.EncodeToString(raw), maxBytes: len(raw) - 1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSignatureImage(tc.input, tc.maxBytes)
			if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDecodeSignatureImageOversizedPayloadShortCircuits(t *testing.T) {
	huge := strings.Repeat("A", 4*1024)
	_, err := DecodeSignatureImage(huge, 1024)
	if err == nil || !strings.Contains(err.Error(), "exceeds 1024 bytes") {
		t.Fatalf("expected size error, got %v", err)
	}
}
