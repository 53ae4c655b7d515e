package patientfile

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("patient file not found")
	ErrDuplicate = errors.New("patient file already exists")
)

type Repository interface {
	Create(ctx context.Context, f *PatientFile) error
	GetByID(ctx context.Context, id string) (*PatientFile, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	Update(ctx context.Context, f *PatientFile) error
	UpdateReferringDoctor(ctx context.Context, id, doctorID string) error
	Delete(ctx context.Context, id string) error
	CountByReferringDoctor(ctx context.Context, doctorID string) (int, error)
}
