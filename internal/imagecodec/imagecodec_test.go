package imagecodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeRGBAImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 40), B: 128, A: 200})
		}
	}

	frame, err := Decode(encodePNG(t, src))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got := frame.Bounds(); got.Dx() != 8 || got.Dy() != 6 {
		t.Fatalf("unexpected bounds: %v", got)
	}
	if !frame.Opaque() {
		t.Fatal("expected alpha to be flattened to an opaque frame")
	}
}

func TestDecodeGrayscaleImage(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 16)
	}

	frame, err := Decode(encodePNG(t, src))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !frame.Opaque() {
		t.Fatal("expected opaque frame")
	}

	// Gray pixels must land on all three channels equally.
	r, g, b, _ := frame.At(2, 2).RGBA()
	if r != g || g != b {
		t.Fatalf("expected equal channels, got r=%d g=%d b=%d", r, g, b)
	}
}

func TestDecodeStripsDataURLPrefix(t *testing.T) {
	payload := encodePNG(t, image.NewRGBA(image.Rect(0, 0, 2, 2)))

	frame, err := Decode("data:image/png;base64," + payload)
	if err != nil {
		t.Fatalf("decode with data-URL prefix failed: %v", err)
	}
	if frame.Bounds().Dx() != 2 {
		t.Fatalf("unexpected width: %d", frame.Bounds().Dx())
	}
}

func TestDecodeInvalidBase64(t *testing.T) {
	_, err := Decode("not-valid-base64!!!")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestDecodeInvalidImagePayload(t *testing.T) {
	garbage := base64.StdEncoding.EncodeToString([]byte("definitely not an image"))
	_, err := Decode(garbage)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestEncodeJPEGRoundTrip(t *testing.T) {
	frame, err := Decode(encodePNG(t, image.NewRGBA(image.Rect(0, 0, 16, 16))))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	jpegBytes, err := EncodeJPEG(frame)
	if err != nil {
		t.Fatalf("encode jpeg failed: %v", err)
	}
	if len(jpegBytes) == 0 {
		t.Fatal("expected non-empty jpeg payload")
	}
	if _, _, err := image.Decode(bytes.NewReader(jpegBytes)); err != nil {
		t.Fatalf("re-encoded frame is not decodable: %v", err)
	}
}
