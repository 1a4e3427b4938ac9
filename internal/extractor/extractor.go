// Package extractor defines the face embedding capability used by the
// matching pipeline.
package extractor

import (
	"context"
	"errors"
	"image"
)

// DescriptorSize is the dimensionality of the embeddings produced by every
// extractor implementation. All vectors in the template store share it.
const DescriptorSize = 128

// ErrNoFaceDetected is returned when the detector finds zero faces in the
// frame. It is a data-quality condition, never retried.
var ErrNoFaceDetected = errors.New("no face detected in the image")

// ErrExtraction is returned when detection succeeded but descriptor
// computation failed.
var ErrExtraction = errors.New("could not extract face encoding")

// Extractor computes a fixed-dimension embedding for the first face detected
// in a normalized frame.
type Extractor interface {
	Extract(ctx context.Context, frame *image.RGBA) ([]float32, error)
}
