package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/example/faceid/internal/imagecodec"
)

// Remote calls an external embedding service over HTTP. The service accepts
// a JPEG body and responds with one embedding per detected face, in
// detection order.
type Remote struct {
	url    *url.URL
	client *http.Client
	logger *zap.Logger
}

// NewRemote builds a client for the embedding service at rawURL. A nil
// http.Client falls back to http.DefaultClient.
func NewRemote(rawURL string, client *http.Client, logger *zap.Logger) (*Remote, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid extractor url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{url: u, client: client, logger: logger.Named("extractor.remote")}, nil
}

type embeddingsResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Extract posts the frame to the remote service and returns the first
// embedding.
func (r *Remote) Extract(ctx context.Context, frame *image.RGBA) ([]float32, error) {
	jpegBytes, err := imagecodec.EncodeJPEG(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url.JoinPath("/v1/embeddings").String(), bytes.NewReader(jpegBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: embedding service returned %s", ErrExtraction, resp.Status)
	}

	var payload embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrExtraction, err)
	}
	if len(payload.Embeddings) == 0 {
		return nil, ErrNoFaceDetected
	}

	r.logger.Debug("remote faces detected", zap.Int("count", len(payload.Embeddings)))
	return payload.Embeddings[0], nil
}
