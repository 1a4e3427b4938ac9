// Package matcher implements the face recognition operations: enrolling a
// subject's template, identifying an unknown image against the enrolled set,
// and revoking a template.
package matcher

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/faceid/internal/audit"
	"github.com/example/faceid/internal/extractor"
	"github.com/example/faceid/internal/imagecodec"
	"github.com/example/faceid/internal/logging"
	"github.com/example/faceid/internal/store"
)

const (
	// SimilarityThreshold is the acceptance cutoff for identification.
	SimilarityThreshold = 0.6

	// UnknownSubject is the sentinel returned for every rejected match.
	UnknownSubject = "unknown"

	embeddingCacheTTL = 5 * time.Minute
)

// Matcher composes the codec, extractor, and template store into the three
// business operations. It holds no per-request state; templates are loaded
// fresh from the store on every Identify.
type Matcher struct {
	store     store.TemplateStore
	extractor extractor.Extractor
	cache     Cache
	recorder  audit.Recorder
	logger    *zap.Logger
	threshold float64
}

// New constructs a matcher. A nil cache or recorder degrades to a no-op.
func New(templates store.TemplateStore, ext extractor.Extractor, cache Cache, recorder audit.Recorder, logger *zap.Logger) *Matcher {
	if cache == nil {
		cache = NopCache{}
	}
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Matcher{
		store:     templates,
		extractor: ext,
		cache:     cache,
		recorder:  recorder,
		logger:    logger.Named("matcher"),
		threshold: SimilarityThreshold,
	}
}

// Enroll registers the face in imageBase64 under subjectID. A later enroll
// for the same ID overwrites the stored template. The subject ID is accepted
// as-is; no format validation is applied.
func (m *Matcher) Enroll(ctx context.Context, subjectID, imageBase64 string) (bool, string) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(m.logger, "matcher.enroll", requestID)

	embedding, ok, msg := m.queryEmbedding(ctx, opLogger, imageBase64)
	if !ok {
		m.record(ctx, requestID, audit.OpEnroll, subjectID, 0, false, msg)
		return false, msg
	}

	if err := m.store.Upsert(ctx, subjectID, embedding); err != nil {
		opLogger.Error("failed to save embedding", zap.Error(err), zap.String("subject_id", subjectID))
		msg := "Failed to save embedding to database"
		m.record(ctx, requestID, audit.OpEnroll, subjectID, 0, false, msg)
		return false, msg
	}

	opLogger.Info("face registered", zap.String("subject_id", subjectID))
	msg = fmt.Sprintf("Successfully registered face for student %s", subjectID)
	m.record(ctx, requestID, audit.OpEnroll, subjectID, 0, true, msg)
	return true, msg
}

// Identify matches the face in imageBase64 against every enrolled template
// and returns the best subject, the similarity score, whether the match was
// accepted, and a human-readable message. Rejected matches always report
// UnknownSubject, never the nearest below-threshold ID.
func (m *Matcher) Identify(ctx context.Context, imageBase64 string) (string, float64, bool, string) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(m.logger, "matcher.identify", requestID)

	embedding, ok, msg := m.queryEmbedding(ctx, opLogger, imageBase64)
	if !ok {
		m.record(ctx, requestID, audit.OpIdentify, UnknownSubject, 0, false, msg)
		return UnknownSubject, 0, false, msg
	}

	templates, err := m.store.All(ctx)
	if err != nil {
		opLogger.Error("failed to load templates", zap.Error(err))
		msg := "Failed to load registered faces"
		m.record(ctx, requestID, audit.OpIdentify, UnknownSubject, 0, false, msg)
		return UnknownSubject, 0, false, msg
	}
	if len(templates) == 0 {
		msg := "No registered faces in database"
		m.record(ctx, requestID, audit.OpIdentify, UnknownSubject, 0, false, msg)
		return UnknownSubject, 0, false, msg
	}

	best, minDistance, err := nearest(embedding, templates)
	if err != nil {
		opLogger.Error("template scan failed", zap.Error(err))
		m.record(ctx, requestID, audit.OpIdentify, UnknownSubject, 0, false, err.Error())
		return UnknownSubject, 0, false, err.Error()
	}

	confidence := similarity(minDistance)
	if confidence >= m.threshold {
		opLogger.Info("face identified", zap.String("subject_id", best), zap.Float64("confidence", confidence))
		msg := "Face identified successfully"
		m.record(ctx, requestID, audit.OpIdentify, best, confidence, true, msg)
		return best, confidence, true, msg
	}

	opLogger.Warn("no match above threshold", zap.Float64("confidence", confidence), zap.Float64("threshold", m.threshold))
	msg = "No matching face found"
	m.record(ctx, requestID, audit.OpIdentify, UnknownSubject, confidence, false, msg)
	return UnknownSubject, confidence, false, msg
}

// Revoke deletes the subject's template. Revoking a never-enrolled ID is a
// business failure, not an error.
func (m *Matcher) Revoke(ctx context.Context, subjectID string) (bool, string) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(m.logger, "matcher.revoke", requestID)

	deleted, err := m.store.Delete(ctx, subjectID)
	if err != nil {
		opLogger.Error("failed to delete embedding", zap.Error(err), zap.String("subject_id", subjectID))
		msg := fmt.Sprintf("Error deleting face: %v", err)
		m.record(ctx, requestID, audit.OpRevoke, subjectID, 0, false, msg)
		return false, msg
	}
	if !deleted {
		msg := fmt.Sprintf("Failed to delete face for student %s", subjectID)
		m.record(ctx, requestID, audit.OpRevoke, subjectID, 0, false, msg)
		return false, msg
	}

	opLogger.Info("face deleted", zap.String("subject_id", subjectID))
	msg := fmt.Sprintf("Successfully deleted face for student %s", subjectID)
	m.record(ctx, requestID, audit.OpRevoke, subjectID, 0, true, msg)
	return true, msg
}

// queryEmbedding runs the decode → extract half of the pipeline, consulting
// the embedding cache keyed by a digest of the decoded pixels. The cache only
// ever holds query embeddings, which are a pure function of the input image;
// stored templates are never cached.
func (m *Matcher) queryEmbedding(ctx context.Context, opLogger *zap.Logger, imageBase64 string) ([]float32, bool, string) {
	frame, err := imagecodec.Decode(imageBase64)
	if err != nil {
		opLogger.Warn("image decode failed", zap.Error(err))
		return nil, false, err.Error()
	}

	digest := sha1.Sum(frame.Pix)
	cacheKey := fmt.Sprintf("embedding:%s", hex.EncodeToString(digest[:]))

	if cached, err := m.cache.Get(ctx, cacheKey); err == nil {
		var embedding []float32
		if err := json.Unmarshal([]byte(cached), &embedding); err != nil {
			opLogger.Warn("failed to decode cached embedding", zap.Error(err))
		} else {
			opLogger.Debug("embedding cache hit")
			return embedding, true, ""
		}
	} else if !errors.Is(err, redis.Nil) {
		opLogger.Warn("failed to read embedding cache", zap.Error(err))
	}

	embedding, err := m.extractor.Extract(ctx, frame)
	if err != nil {
		if errors.Is(err, extractor.ErrNoFaceDetected) {
			opLogger.Warn("no face detected")
			return nil, false, "No face detected in the image"
		}
		opLogger.Error("embedding extraction failed", zap.Error(err))
		return nil, false, err.Error()
	}

	if serialized, err := json.Marshal(embedding); err == nil {
		if err := m.cache.Set(ctx, cacheKey, string(serialized), embeddingCacheTTL); err != nil {
			opLogger.Warn("failed to cache embedding", zap.Error(err))
		}
	}

	return embedding, true, ""
}

func (m *Matcher) record(ctx context.Context, requestID, operation, subjectID string, confidence float64, success bool, message string) {
	entry := &audit.RecognitionLog{
		RequestID:  requestID,
		Operation:  operation,
		SubjectID:  subjectID,
		Confidence: confidence,
		Success:    success,
		Message:    message,
	}
	if err := m.recorder.Record(ctx, entry); err != nil {
		wrapped := logging.NewOperationError("matcher.audit_record", requestID, err)
		m.logger.Warn("failed to record audit entry", zap.Error(wrapped))
	}
}
