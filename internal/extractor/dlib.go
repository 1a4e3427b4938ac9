package extractor

import (
	"context"
	"fmt"
	"image"

	"github.com/Kagami/go-face"
	"go.uber.org/zap"

	"github.com/example/faceid/internal/imagecodec"
)

// Dlib extracts embeddings locally with the dlib ResNet face encoder.
//
// The model directory must contain shape_predictor_5_face_landmarks.dat and
// dlib_face_recognition_resnet_model_v1.dat.
type Dlib struct {
	rec    *face.Recognizer
	logger *zap.Logger
}

// NewDlib loads the recognizer models from modelDir.
func NewDlib(modelDir string, logger *zap.Logger) (*Dlib, error) {
	rec, err := face.NewRecognizer(modelDir)
	if err != nil {
		return nil, fmt.Errorf("load face models from %s: %w", modelDir, err)
	}
	return &Dlib{rec: rec, logger: logger.Named("extractor.dlib")}, nil
}

// Extract returns the 128-d descriptor of the first detected face.
// The first-result policy is deliberate; no largest-box selection is applied.
func (d *Dlib) Extract(ctx context.Context, frame *image.RGBA) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jpegBytes, err := imagecodec.EncodeJPEG(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	faces, err := d.rec.Recognize(jpegBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	if len(faces) == 0 {
		return nil, ErrNoFaceDetected
	}

	d.logger.Debug("faces detected", zap.Int("count", len(faces)))

	descriptor := faces[0].Descriptor
	embedding := make([]float32, DescriptorSize)
	copy(embedding, descriptor[:])
	return embedding, nil
}

// Close releases the underlying dlib resources.
func (d *Dlib) Close() {
	d.rec.Close()
}
