package patientfile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medrecord/medrecord/internal/domain/access"
	"github.com/medrecord/medrecord/internal/domain/correspondence"
	"github.com/medrecord/medrecord/internal/domain/entry"
	"github.com/medrecord/medrecord/internal/platform/apperr"
	"github.com/medrecord/medrecord/internal/platform/auth"
	"github.com/medrecord/medrecord/internal/platform/db"
	"github.com/medrecord/medrecord/internal/platform/idp"
	"github.com/medrecord/medrecord/internal/platform/metrics"
	"github.com/medrecord/medrecord/internal/platform/registry"
)

// Service implements every operation on a patient file and its clinical
// entries and correspondences. Each doctor-facing operation resolves the
// caller's relationship to the file and authorizes before touching storage.
type Service struct {
	files    Repository
	entries  *entry.Store
	corrs    correspondence.Repository
	doctors  entry.ExistenceChecker
	tx       db.Transactor
	registry registry.Verifier
	idp      *idp.Sync
	logger   zerolog.Logger

	now func() time.Time
	loc *time.Location
}

func NewService(
	files Repository,
	entries *entry.Store,
	corrs correspondence.Repository,
	doctors entry.ExistenceChecker,
	tx db.Transactor,
	verifier registry.Verifier,
	sync *idp.Sync,
	logger zerolog.Logger,
) *Service {
	return &Service{
		files:    files,
		entries:  entries,
		corrs:    corrs,
		doctors:  doctors,
		tx:       tx,
		registry: verifier,
		idp:      sync,
		logger:   logger,
		now:      time.Now,
		loc:      time.UTC,
	}
}

// SetClock replaces the wall clock and the zone in which "today" is taken.
func (s *Service) SetClock(now func() time.Time, loc *time.Location) {
	s.now = now
	s.loc = loc
}

func (s *Service) today() civil.Date {
	return civil.DateOf(s.now().In(s.loc))
}

func (s *Service) loadFile(ctx context.Context, id string) (*PatientFile, error) {
	f, err := s.files.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("patient file", id)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return f, nil
}

// scope is a patient file together with what access decisions need to know
// about it.
type scope struct {
	file  *PatientFile
	corrs []*correspondence.Correspondence
	today civil.Date
}

func (s *Service) loadScope(ctx context.Context, patientFileID string) (*scope, error) {
	f, err := s.loadFile(ctx, patientFileID)
	if err != nil {
		return nil, err
	}
	corrs, err := s.corrs.FindByPatientFileID(ctx, patientFileID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &scope{file: f, corrs: corrs, today: s.today()}, nil
}

func (sc *scope) request(op access.Operation, doctorID string) access.Request {
	return access.Request{
		Operation:       op,
		DoctorID:        doctorID,
		ReferringID:     sc.file.ReferringDoctorID,
		Correspondences: sc.corrs,
		Today:           sc.today,
	}
}

func (s *Service) authorize(req access.Request) error {
	d := access.Authorize(req)
	if !d.Allowed {
		s.logger.Debug().
			Str("operation", string(req.Operation)).
			Str("doctor", req.DoctorID).
			Stringer("relationship", d.Relationship).
			Str("reason", string(d.Reason)).
			Msg("access denied")
	}
	return d.Err()
}

// ---- clinical entries ----

func (s *Service) ListEntries(ctx context.Context, doctorID, patientFileID string) ([]entry.Wire, error) {
	sc, err := s.loadScope(ctx, patientFileID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(sc.request(access.ListEntries, doctorID)); err != nil {
		return nil, err
	}
	return s.entries.FindAllForPatientFile(ctx, patientFileID)
}

// CreateEntry stores w on the patient file with doctorID as author. An
// entry without a date is dated today.
func (s *Service) CreateEntry(ctx context.Context, doctorID, patientFileID string, w entry.Wire) (entry.Wire, error) {
	sc, err := s.loadScope(ctx, patientFileID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(sc.request(access.CreateEntry, doctorID)); err != nil {
		return nil, err
	}

	h := w.Header()
	h.ID = uuid.Nil
	h.AuthoringDoctor = doctorID
	h.PatientFile = patientFileID
	if h.Date == (civil.Date{}) {
		h.Date = sc.today
	}
	return s.entries.Create(ctx, w)
}

// entryInScope resolves an entry for a mutation. Visibility is decided
// before existence so unrelated doctors cannot probe entry ids.
func (s *Service) entryInScope(ctx context.Context, op access.Operation, doctorID, patientFileID string, entryID uuid.UUID) (entry.Wire, error) {
	sc, err := s.loadScope(ctx, patientFileID)
	if err != nil {
		return nil, err
	}

	var lookupErr error
	existing, err := s.entries.Find(ctx, entryID)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		lookupErr = err
	case err != nil:
		return nil, err
	case existing.Header().PatientFile != patientFileID:
		lookupErr = apperr.NotFoundForPatientFile("entry", entryID.String(), patientFileID)
	}

	req := sc.request(op, doctorID)
	if lookupErr == nil {
		req.HasEntry = true
		req.EntryAuthorID = existing.Header().AuthoringDoctor
	}
	d := access.Authorize(req)
	if d.Reason == access.ReasonNotVisible {
		return nil, d.Err()
	}
	if lookupErr != nil {
		return nil, lookupErr
	}
	if !d.Allowed {
		s.logger.Debug().Str("operation", string(op)).Str("doctor", doctorID).
			Str("entry", entryID.String()).Msg("not the author")
		return nil, d.Err()
	}
	return existing, nil
}

// UpdateEntry applies w to the entry. Its id, date, author and patient file
// never change.
func (s *Service) UpdateEntry(ctx context.Context, doctorID, patientFileID string, entryID uuid.UUID, w entry.Wire) (entry.Wire, error) {
	if _, err := s.entryInScope(ctx, access.UpdateEntry, doctorID, patientFileID, entryID); err != nil {
		return nil, err
	}
	w.Header().ID = entryID
	return s.entries.Update(ctx, w)
}

func (s *Service) DeleteEntry(ctx context.Context, doctorID, patientFileID string, entryID uuid.UUID) error {
	existing, err := s.entryInScope(ctx, access.DeleteEntry, doctorID, patientFileID, entryID)
	if err != nil {
		return err
	}
	if err := s.entries.Delete(ctx, entryID); err != nil {
		return err
	}
	metrics.RecordEntryWritten(string(existing.Header().Type), "delete")
	return nil
}

// ---- correspondences ----

func (s *Service) ListCorrespondences(ctx context.Context, doctorID, patientFileID string) ([]*correspondence.Correspondence, error) {
	sc, err := s.loadScope(ctx, patientFileID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(sc.request(access.ListCorrespondences, doctorID)); err != nil {
		return nil, err
	}
	if sc.corrs == nil {
		return []*correspondence.Correspondence{}, nil
	}
	return sc.corrs, nil
}

// CreateCorrespondence lets the referring doctor delegate the file to
// targetDoctorID until validUntil, inclusive.
func (s *Service) CreateCorrespondence(ctx context.Context, doctorID, patientFileID, targetDoctorID string, validUntil civil.Date) (*correspondence.Correspondence, error) {
	sc, err := s.loadScope(ctx, patientFileID)
	if err != nil {
		return nil, err
	}
	req := sc.request(access.CreateCorrespondence, doctorID)
	req.TargetDoctorID = targetDoctorID
	if err := s.authorize(req); err != nil {
		return nil, err
	}

	c, err := correspondence.New(patientFileID, sc.file.ReferringDoctorID, targetDoctorID, validUntil)
	if err != nil {
		return nil, err
	}
	exists, err := s.doctors.ExistsByID(ctx, targetDoctorID)
	if err != nil {
		return nil, apperr.CreateFailed("correspondence", err)
	}
	if !exists {
		return nil, apperr.NotFound("doctor", targetDoctorID)
	}
	if err := s.corrs.Save(ctx, c); err != nil {
		return nil, apperr.CreateFailed("correspondence", err)
	}
	return c, nil
}

func (s *Service) DeleteCorrespondence(ctx context.Context, doctorID, patientFileID string, correspondenceID uuid.UUID) error {
	sc, err := s.loadScope(ctx, patientFileID)
	if err != nil {
		return err
	}
	if err := s.authorize(sc.request(access.DeleteCorrespondence, doctorID)); err != nil {
		return err
	}

	c, err := s.corrs.FindByID(ctx, correspondenceID)
	if errors.Is(err, correspondence.ErrNotFound) {
		return apperr.NotFound("correspondence", correspondenceID.String())
	}
	if err != nil {
		return apperr.DeleteFailed("correspondence", err)
	}
	if c.PatientFileID != patientFileID {
		return apperr.NotFoundForPatientFile("correspondence", correspondenceID.String(), patientFileID)
	}
	if err := s.corrs.DeleteByID(ctx, correspondenceID); err != nil {
		return apperr.DeleteFailed("correspondence", err)
	}
	return nil
}

// ---- patient file administration ----

// CreatePatientFile verifies the declared identity with the national
// registry and stores the file with a hashed secret.
func (s *Service) CreatePatientFile(ctx context.Context, f *PatientFile, secret string) error {
	f.ID = strings.TrimSpace(f.ID)
	switch {
	case f.ID == "":
		return apperr.BadRequest("id is required")
	case f.ReferringDoctorID == "":
		return apperr.BadRequest("referring_doctor is required")
	case f.LastName == "":
		return apperr.BadRequest("last_name is required")
	case !f.BirthDate.IsValid():
		return apperr.BadRequest("birth_date must be a valid date")
	}

	exists, err := s.files.ExistsByID(ctx, f.ID)
	if err != nil {
		return apperr.CreateFailed("patient file", err)
	}
	if exists {
		return apperr.DuplicateKey("patient file", f.ID)
	}
	ok, err := s.doctors.ExistsByID(ctx, f.ReferringDoctorID)
	if err != nil {
		return apperr.CreateFailed("patient file", err)
	}
	if !ok {
		return apperr.NotFound("doctor", f.ReferringDoctorID)
	}

	if err := s.registry.Verify(ctx, f.identity()); err != nil {
		var rej *registry.Rejection
		if errors.As(err, &rej) {
			return apperr.ExternalRejection("identity rejected by the national registry", rej.Reasons)
		}
		return apperr.CreateFailed("patient file", err)
	}

	hash, err := auth.HashSecret(secret)
	if errors.Is(err, auth.ErrSecretTooShort) {
		return apperr.BadRequest(err.Error())
	}
	if err != nil {
		return apperr.CreateFailed("patient file", err)
	}
	f.SecretHash = hash

	err = s.files.Create(ctx, f)
	if errors.Is(err, ErrDuplicate) {
		return apperr.DuplicateKey("patient file", f.ID)
	}
	if err != nil {
		return apperr.CreateFailed("patient file", err)
	}
	return nil
}

// GetPatientFile is open to administrators, the patient themself and any
// doctor who can see the file's entries.
func (s *Service) GetPatientFile(ctx context.Context, caller Caller, id string) (*PatientFile, error) {
	if caller.Is(auth.RoleAdmin) || (caller.Is(auth.RolePatient) && caller.ID == id) {
		return s.loadFile(ctx, id)
	}
	if !caller.Is(auth.RoleDoctor) {
		return nil, apperr.Forbidden("patients can only read their own file")
	}
	sc, err := s.loadScope(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(sc.request(access.ReadPatientFile, caller.ID)); err != nil {
		return nil, err
	}
	return sc.file, nil
}

// UpdatePatientFile changes demographic fields. The referring doctor is
// not part of Demographics and cannot change here.
func (s *Service) UpdatePatientFile(ctx context.Context, caller Caller, id string, d Demographics) (*PatientFile, error) {
	if !caller.Is(auth.RoleAdmin) && !(caller.Is(auth.RolePatient) && caller.ID == id) {
		return nil, apperr.Forbidden("only the patient or an administrator can edit a patient file")
	}
	if d.LastName == "" {
		return nil, apperr.BadRequest("last_name is required")
	}
	if !d.BirthDate.IsValid() {
		return nil, apperr.BadRequest("birth_date must be a valid date")
	}

	f, err := s.loadFile(ctx, id)
	if err != nil {
		return nil, err
	}
	f.Apply(d)
	if err := s.files.Update(ctx, f); err != nil {
		return nil, apperr.UpdateFailed("patient file", err)
	}
	s.idp.Updated(ctx, f.profile())
	return f, nil
}

func (s *Service) ChangeReferringDoctor(ctx context.Context, id, doctorID string) (*PatientFile, error) {
	if doctorID == "" {
		return nil, apperr.BadRequest("referring_doctor is required")
	}
	f, err := s.loadFile(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.doctors.ExistsByID(ctx, doctorID)
	if err != nil {
		return nil, apperr.UpdateFailed("patient file", err)
	}
	if !ok {
		return nil, apperr.NotFound("doctor", doctorID)
	}
	if err := s.files.UpdateReferringDoctor(ctx, id, doctorID); err != nil {
		return nil, apperr.UpdateFailed("patient file", err)
	}
	f.ReferringDoctorID = doctorID
	return f, nil
}

// DeletePatientFile removes the file with its entries and correspondences
// in one transaction. The identity provider account goes after commit.
func (s *Service) DeletePatientFile(ctx context.Context, id string) error {
	exists, err := s.files.ExistsByID(ctx, id)
	if err != nil {
		return apperr.DeleteFailed("patient file", err)
	}
	if !exists {
		return apperr.NotFound("patient file", id)
	}

	var entries, corrs int64
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if entries, err = s.entries.DeleteAllForPatientFile(ctx, id); err != nil {
			return err
		}
		if corrs, err = s.corrs.DeleteAllByPatientFileID(ctx, id); err != nil {
			return err
		}
		return s.files.Delete(ctx, id)
	})
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("patient file", id)
	}
	if err != nil {
		if apperr.KindOf(err) == apperr.KindDeleteFailed {
			return err
		}
		return apperr.DeleteFailed("patient file", err)
	}

	s.logger.Info().Str("patient_file", id).Int64("entries", entries).Int64("correspondences", corrs).
		Msg("patient file deleted")
	s.idp.Removed(ctx, id)
	return nil
}

// Authenticate checks a patient's secret for token issuance.
func (s *Service) Authenticate(ctx context.Context, id, secret string) ([]string, error) {
	f, err := s.files.GetByID(ctx, id)
	if err != nil || !auth.CheckSecret(f.SecretHash, secret) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	return []string{auth.RolePatient}, nil
}
