package doctor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medrecord/medrecord/internal/platform/apperr"
	"github.com/medrecord/medrecord/internal/platform/auth"
	"github.com/medrecord/medrecord/internal/platform/idp"
)

type Service struct {
	repo      Repository
	referrals ReferralCounter
	idp       *idp.Sync
	logger    zerolog.Logger
}

func NewService(repo Repository, referrals ReferralCounter, sync *idp.Sync, logger zerolog.Logger) *Service {
	return &Service{repo: repo, referrals: referrals, idp: sync, logger: logger}
}

func (s *Service) Create(ctx context.Context, d *Doctor, secret string) error {
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		return apperr.BadRequest("id is required")
	}
	if d.LastName == "" {
		return apperr.BadRequest("last_name is required")
	}
	hash, err := auth.HashSecret(secret)
	if errors.Is(err, auth.ErrSecretTooShort) {
		return apperr.BadRequest(err.Error())
	}
	if err != nil {
		return apperr.CreateFailed("doctor", err)
	}
	d.SecretHash = hash

	err = s.repo.Create(ctx, d)
	if errors.Is(err, ErrDuplicate) {
		return apperr.DuplicateKey("doctor", d.ID)
	}
	if err != nil {
		return apperr.CreateFailed("doctor", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("doctor", id)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	items, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return items, total, nil
}

// Update changes the doctor's profile and pushes it to the identity provider.
func (s *Service) Update(ctx context.Context, id string, p Profile) (*Doctor, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.LastName == "" {
		return nil, apperr.BadRequest("last_name is required")
	}
	d.Apply(p)
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, apperr.UpdateFailed("doctor", err)
	}
	s.idp.Updated(ctx, d.identity())
	return d, nil
}

// Delete removes a doctor who no longer refers any patient file. The
// identity provider account is removed afterwards, best effort.
func (s *Service) Delete(ctx context.Context, id string) error {
	exists, err := s.repo.ExistsByID(ctx, id)
	if err != nil {
		return apperr.DeleteFailed("doctor", err)
	}
	if !exists {
		return apperr.NotFound("doctor", id)
	}

	n, err := s.referrals.CountByReferringDoctor(ctx, id)
	if err != nil {
		return apperr.DeleteFailed("doctor", err)
	}
	if n > 0 {
		return apperr.Conflict(fmt.Sprintf("doctor is still referring doctor of %d patient files", n))
	}

	err = s.repo.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("doctor", id)
	}
	if err != nil {
		return apperr.DeleteFailed("doctor", err)
	}
	s.idp.Removed(ctx, id)
	return nil
}

// Authenticate checks a doctor's secret for token issuance.
func (s *Service) Authenticate(ctx context.Context, id, secret string) ([]string, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if !auth.CheckSecret(d.SecretHash, secret) {
		s.logger.Debug().Str("doctor", id).Msg("secret mismatch")
		return nil, apperr.Unauthorized("invalid credentials")
	}
	roles := []string{auth.RoleDoctor}
	if d.Admin {
		roles = append(roles, auth.RoleAdmin)
	}
	return roles, nil
}
