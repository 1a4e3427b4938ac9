// Package audit persists one row per recognition operation outcome and
// aggregates them into service metrics.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Operation labels for recognition log rows.
const (
	OpEnroll   = "enroll"
	OpIdentify = "identify"
	OpRevoke   = "revoke"
)

// RecognitionLog represents a persisted recognition outcome.
type RecognitionLog struct {
	ID         uint      `gorm:"primaryKey"`
	RequestID  string    `gorm:"column:request_id;uniqueIndex;size:64"`
	Operation  string    `gorm:"column:operation;size:16"`
	SubjectID  string    `gorm:"column:subject_id;size:64"`
	Confidence float64   `gorm:"column:confidence"`
	Success    bool      `gorm:"column:success"`
	Message    string    `gorm:"column:message;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (RecognitionLog) TableName() string {
	return "recognition_logs"
}

// Recorder receives recognition outcomes. Recording is best-effort for
// callers; a failed write never fails the operation that produced it.
type Recorder interface {
	Record(ctx context.Context, log *RecognitionLog) error
}

// Repository is the gorm-backed recorder.
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRepository creates a new repository instance.
func NewRepository(db *gorm.DB, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger.Named("audit")}
}

// AutoMigrate ensures the schema is available.
func (r *Repository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&RecognitionLog{})
}

// Record persists a recognition log entry.
func (r *Repository) Record(ctx context.Context, log *RecognitionLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return err
	}
	r.logger.Debug("recorded outcome",
		zap.String("request_id", log.RequestID),
		zap.String("operation", log.Operation),
		zap.Bool("success", log.Success))
	return nil
}

// Aggregation holds raw counters computed over identify rows.
type Aggregation struct {
	TotalCount        int64
	SuccessCount      int64
	AverageConfidence float64
}

// AggregateMetrics computes counters over persisted identify outcomes.
func (r *Repository) AggregateMetrics(ctx context.Context) (*Aggregation, error) {
	var agg Aggregation
	err := r.db.WithContext(ctx).
		Model(&RecognitionLog{}).
		Select("count(*) as total_count, coalesce(sum(case when success then 1 else 0 end), 0) as success_count, coalesce(avg(confidence), 0) as average_confidence").
		Where("operation = ?", OpIdentify).
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

// MetricsSummary represents aggregated identification insights.
type MetricsSummary struct {
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	SuccessRate        float64 `json:"success_rate"`
	AverageConfidence  float64 `json:"average_confidence"`
}

// Summary builds a metrics summary from the aggregated counters.
func (r *Repository) Summary(ctx context.Context) (*MetricsSummary, error) {
	agg, err := r.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}
	return summarize(agg), nil
}

func summarize(agg *Aggregation) *MetricsSummary {
	summary := &MetricsSummary{
		TotalRequests:      agg.TotalCount,
		SuccessfulRequests: agg.SuccessCount,
		AverageConfidence:  agg.AverageConfidence,
	}
	if agg.TotalCount > 0 {
		summary.SuccessRate = float64(agg.SuccessCount) / float64(agg.TotalCount)
	}
	return summary
}

// Nop discards every log entry. Used when no audit database is configured.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, *RecognitionLog) error { return nil }

var (
	_ Recorder = (*Repository)(nil)
	_ Recorder = Nop{}
)
