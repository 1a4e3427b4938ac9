// Package store persists subject face templates.
package store

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the backing database could not be reached.
var ErrUnavailable = errors.New("template store unavailable")

// Template is one enrolled subject: a unique subject ID and its embedding.
// One template per subject; re-enrollment replaces the vector.
type Template struct {
	SubjectID string    `bson:"subject_id"`
	Embedding []float32 `bson:"embedding"`
}

// TemplateStore is the persistence contract for the matcher.
//
// All returns templates in ascending subject ID order so that scans over the
// template set are reproducible across calls and backends.
type TemplateStore interface {
	// Upsert atomically inserts or replaces the template for subjectID.
	Upsert(ctx context.Context, subjectID string, embedding []float32) error
	// All returns every persisted template; an empty slice when none exist.
	All(ctx context.Context) ([]Template, error)
	// Delete removes the template for subjectID, reporting whether a record
	// existed. An absent ID is not an error.
	Delete(ctx context.Context, subjectID string) (bool, error)
}
