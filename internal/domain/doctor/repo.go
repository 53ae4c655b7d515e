package doctor

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("doctor not found")
	ErrDuplicate = errors.New("doctor already exists")
)

type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id string) (*Doctor, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id string) error
}

// ReferralCounter counts the patient files a doctor is referring doctor of.
type ReferralCounter interface {
	CountByReferringDoctor(ctx context.Context, doctorID string) (int, error)
}
