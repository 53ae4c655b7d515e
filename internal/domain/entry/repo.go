package entry

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("entry not found")

// Repository persists entries of every kind. Save inserts or, for an
// existing id, overwrites the mutable fields only.
type Repository interface {
	Save(ctx context.Context, e Entry) error
	FindByID(ctx context.Context, id uuid.UUID) (Entry, error)
	FindByPatientFileID(ctx context.Context, patientFileID string) ([]Entry, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteAllByPatientFileID(ctx context.Context, patientFileID string) (int64, error)
}
