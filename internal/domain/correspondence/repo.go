package correspondence

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("correspondence not found")

type Repository interface {
	Save(ctx context.Context, c *Correspondence) error
	FindByID(ctx context.Context, id uuid.UUID) (*Correspondence, error)
	FindByPatientFileID(ctx context.Context, patientFileID string) ([]*Correspondence, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteAllByPatientFileID(ctx context.Context, patientFileID string) (int64, error)
}
