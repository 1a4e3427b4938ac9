// Package imagecodec turns transport-encoded still images into pixel
// buffers suitable for face embedding extraction.
package imagecodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"
)

// ErrDecode indicates the payload was not valid base64 or not a decodable
// image container.
var ErrDecode = errors.New("image decode failed")

// Decode decodes a base64 image payload into an opaque RGB-ordered frame.
//
// The payload may carry a data-URL style prefix ("data:image/png;base64,...");
// everything up to and including the first comma is stripped before decoding.
// Grayscale and RGBA inputs are flattened onto a 3-channel layout, which the
// extractor requires.
func Decode(encoded string) (*image.RGBA, error) {
	if idx := strings.IndexByte(encoded, ','); idx >= 0 {
		encoded = encoded[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 payload: %v", ErrDecode, err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return normalize(img), nil
}

// normalize redraws the source onto an opaque RGBA buffer so grayscale and
// alpha-carrying inputs end up in the channel layout the extractor expects.
func normalize(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	frame := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(frame, frame.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(frame, frame.Bounds(), img, bounds.Min, draw.Over)
	return frame
}

// EncodeJPEG re-encodes a normalized frame for extractors that consume
// compressed image bytes.
func EncodeJPEG(frame *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
