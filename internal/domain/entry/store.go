package entry

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/medrecord/medrecord/internal/domain/catalog"
	"github.com/medrecord/medrecord/internal/platform/apperr"
	"github.com/medrecord/medrecord/internal/platform/metrics"
)

// ExistenceChecker is satisfied by the doctor and patient file repositories.
type ExistenceChecker interface {
	ExistsByID(ctx context.Context, id string) (bool, error)
}

// Store is the only way the rest of the service reads or writes entries. It
// converts through the registry and resolves every reference an entry holds
// before persisting it.
type Store struct {
	repo         Repository
	doctors      ExistenceChecker
	patientFiles ExistenceChecker
	catalog      catalog.Repository
}

func NewStore(repo Repository, doctors, patientFiles ExistenceChecker, cat catalog.Repository) *Store {
	return &Store{repo: repo, doctors: doctors, patientFiles: patientFiles, catalog: cat}
}

func (s *Store) Create(ctx context.Context, w Wire) (Wire, error) {
	e := ToEntity(w)
	e.Common().ID = uuid.New()

	if err := s.resolve(ctx, e, apperr.CreateFailed); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, e); err != nil {
		return nil, apperr.CreateFailed("entry", err)
	}
	metrics.RecordEntryWritten(string(e.Kind()), "create")
	return ToWire(e), nil
}

func (s *Store) Find(ctx context.Context, id uuid.UUID) (Wire, error) {
	e, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("entry", id.String())
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return ToWire(e), nil
}

// FindAllForPatientFile returns the entries of a patient file ordered by
// entry date, then insertion order.
func (s *Store) FindAllForPatientFile(ctx context.Context, patientFileID string) ([]Wire, error) {
	entries, err := s.repo.FindByPatientFileID(ctx, patientFileID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]Wire, 0, len(entries))
	for _, e := range entries {
		out = append(out, ToWire(e))
	}
	return out, nil
}

// Update applies the mutable fields of w to the persisted entry with the
// same id. Id, date, author and patient file are kept from storage whatever
// w carries.
func (s *Store) Update(ctx context.Context, w Wire) (Wire, error) {
	incoming := ToEntity(w)
	id := incoming.Common().ID

	persisted, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("entry", id.String())
	}
	if err != nil {
		return nil, apperr.UpdateFailed("entry", err)
	}

	merged, err := merge(persisted, incoming)
	if err != nil {
		return nil, err
	}
	if err := s.resolve(ctx, merged, apperr.UpdateFailed); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, merged); err != nil {
		return nil, apperr.UpdateFailed("entry", err)
	}
	metrics.RecordEntryWritten(string(merged.Kind()), "update")
	return ToWire(merged), nil
}

// Delete removes the entry. A missing id is not an error.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return apperr.DeleteFailed("entry", err)
	}
	return nil
}

// DeleteAllForPatientFile removes every entry of a patient file and returns
// how many were deleted.
func (s *Store) DeleteAllForPatientFile(ctx context.Context, patientFileID string) (int64, error) {
	n, err := s.repo.DeleteAllByPatientFileID(ctx, patientFileID)
	if err != nil {
		return 0, apperr.DeleteFailed("entries", err)
	}
	return n, nil
}

// merge returns a copy of persisted carrying the mutable fields of incoming.
// Both must be the same variant.
func merge(persisted, incoming Entry) (Entry, error) {
	switch in := incoming.(type) {
	case *Act:
		if p, ok := persisted.(*Act); ok {
			out := *p
			out.Comments = in.Comments
			out.ActCode = in.ActCode
			return &out, nil
		}
	case *Diagnosis:
		if p, ok := persisted.(*Diagnosis); ok {
			out := *p
			out.Comments = in.Comments
			out.DiseaseCode = in.DiseaseCode
			return &out, nil
		}
	case *Mail:
		if p, ok := persisted.(*Mail); ok {
			out := *p
			out.Comments = in.Comments
			out.Text = in.Text
			out.RecipientDoctorID = in.RecipientDoctorID
			return &out, nil
		}
	case *Prescription:
		if p, ok := persisted.(*Prescription); ok {
			out := *p
			out.Comments = in.Comments
			out.Description = in.Description
			return &out, nil
		}
	case *Symptom:
		if p, ok := persisted.(*Symptom); ok {
			out := *p
			out.Comments = in.Comments
			out.Description = in.Description
			return &out, nil
		}
	}
	return nil, apperr.TypeMismatch(string(persisted.Kind()), string(incoming.Kind()))
}

type reference struct {
	resource string
	id       string
	exists   func(context.Context, string) (bool, error)
}

// resolve checks that every id e refers to exists. Lookup failures are
// reported through failed so they carry the kind of the calling operation.
func (s *Store) resolve(ctx context.Context, e Entry, failed func(string, error) *apperr.Error) error {
	b := e.Common()
	refs := []reference{
		{"patient file", b.PatientFileID, s.patientFiles.ExistsByID},
		{"doctor", b.AuthoringDoctorID, s.doctors.ExistsByID},
	}
	switch v := e.(type) {
	case *Act:
		refs = append(refs, reference{"medical act", v.ActCode, s.catalog.ActExists})
	case *Diagnosis:
		refs = append(refs, reference{"disease", v.DiseaseCode, s.catalog.DiseaseExists})
	case *Mail:
		refs = append(refs, reference{"recipient doctor", v.RecipientDoctorID, s.doctors.ExistsByID})
	}

	for _, r := range refs {
		if r.id == "" {
			return apperr.BadRequest(r.resource + " is required")
		}
		ok, err := r.exists(ctx, r.id)
		if err != nil {
			return failed("entry", err)
		}
		if !ok {
			return apperr.NotFound(r.resource, r.id)
		}
	}
	return nil
}
