package patientfile

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medrecord/medrecord/internal/domain/catalog"
	"github.com/medrecord/medrecord/internal/domain/correspondence"
	"github.com/medrecord/medrecord/internal/domain/entry"
	"github.com/medrecord/medrecord/internal/platform/idp"
	"github.com/medrecord/medrecord/internal/platform/registry"
)

// =========== Mock Repositories ===========

type mockFileRepo struct {
	files map[string]*PatientFile
}

func (m *mockFileRepo) Create(_ context.Context, f *PatientFile) error {
	if _, ok := m.files[f.ID]; ok {
		return ErrDuplicate
	}
	cp := *f
	m.files[f.ID] = &cp
	return nil
}

func (m *mockFileRepo) GetByID(_ context.Context, id string) (*PatientFile, error) {
	f, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *mockFileRepo) ExistsByID(_ context.Context, id string) (bool, error) {
	_, ok := m.files[id]
	return ok, nil
}

func (m *mockFileRepo) Update(_ context.Context, f *PatientFile) error {
	if _, ok := m.files[f.ID]; !ok {
		return ErrNotFound
	}
	cp := *f
	m.files[f.ID] = &cp
	return nil
}

func (m *mockFileRepo) UpdateReferringDoctor(_ context.Context, id, doctorID string) error {
	f, ok := m.files[id]
	if !ok {
		return ErrNotFound
	}
	f.ReferringDoctorID = doctorID
	return nil
}

func (m *mockFileRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.files[id]; !ok {
		return ErrNotFound
	}
	delete(m.files, id)
	return nil
}

func (m *mockFileRepo) CountByReferringDoctor(_ context.Context, doctorID string) (int, error) {
	n := 0
	for _, f := range m.files {
		if f.ReferringDoctorID == doctorID {
			n++
		}
	}
	return n, nil
}

type mockCorrRepo struct {
	items map[uuid.UUID]*correspondence.Correspondence
}

func (m *mockCorrRepo) Save(_ context.Context, c *correspondence.Correspondence) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.items[c.ID] = c
	return nil
}

func (m *mockCorrRepo) FindByID(_ context.Context, id uuid.UUID) (*correspondence.Correspondence, error) {
	c, ok := m.items[id]
	if !ok {
		return nil, correspondence.ErrNotFound
	}
	return c, nil
}

func (m *mockCorrRepo) FindByPatientFileID(_ context.Context, patientFileID string) ([]*correspondence.Correspondence, error) {
	var out []*correspondence.Correspondence
	for _, c := range m.items {
		if c.PatientFileID == patientFileID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCorrRepo) DeleteByID(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockCorrRepo) DeleteAllByPatientFileID(_ context.Context, patientFileID string) (int64, error) {
	var n int64
	for id, c := range m.items {
		if c.PatientFileID == patientFileID {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

type mockEntryRepo struct {
	entries map[uuid.UUID]entry.Entry
	seq     map[uuid.UUID]int
	next    int
}

func (m *mockEntryRepo) Save(_ context.Context, e entry.Entry) error {
	id := e.Common().ID
	if _, ok := m.seq[id]; !ok {
		m.next++
		m.seq[id] = m.next
	}
	m.entries[id] = e
	return nil
}

func (m *mockEntryRepo) FindByID(_ context.Context, id uuid.UUID) (entry.Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, entry.ErrNotFound
	}
	return e, nil
}

func (m *mockEntryRepo) FindByPatientFileID(_ context.Context, patientFileID string) ([]entry.Entry, error) {
	var out []entry.Entry
	for _, e := range m.entries {
		if e.Common().PatientFileID == patientFileID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Common(), out[j].Common()
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		return m.seq[a.ID] < m.seq[b.ID]
	})
	return out, nil
}

func (m *mockEntryRepo) DeleteByID(_ context.Context, id uuid.UUID) error {
	delete(m.entries, id)
	return nil
}

func (m *mockEntryRepo) DeleteAllByPatientFileID(_ context.Context, patientFileID string) (int64, error) {
	var n int64
	for id, e := range m.entries {
		if e.Common().PatientFileID == patientFileID {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

type doctorSet map[string]bool

func (d doctorSet) ExistsByID(_ context.Context, id string) (bool, error) { return d[id], nil }

type mockCatalog struct{}

func (mockCatalog) ActExists(_ context.Context, code string) (bool, error) {
	return code == "DEQP003", nil
}
func (mockCatalog) DiseaseExists(_ context.Context, code string) (bool, error) {
	return code == "J45", nil
}
func (mockCatalog) ListActs(context.Context, string, int, int) ([]*catalog.MedicalAct, int, error) {
	return nil, 0, nil
}
func (mockCatalog) ListDiseases(context.Context, string, int, int) ([]*catalog.Disease, int, error) {
	return nil, 0, nil
}

// inlineTx runs fn without a database; a failing fn leaves whatever it
// already changed, so tests only assert the committed path.
type inlineTx struct{ calls int }

func (t *inlineTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type stubVerifier struct{ err error }

func (s stubVerifier) Verify(context.Context, registry.Identity) error { return s.err }

type recordingIDP struct {
	deleted []string
	updated []idp.Profile
	res     idp.Result
}

func (r *recordingIDP) UserExists(context.Context, string) (bool, error) { return true, nil }
func (r *recordingIDP) DeleteUser(_ context.Context, id string) idp.Result {
	r.deleted = append(r.deleted, id)
	return r.res
}
func (r *recordingIDP) UpdateUser(_ context.Context, p idp.Profile) idp.Result {
	r.updated = append(r.updated, p)
	return r.res
}

// =========== Fixture ===========

// fixedNow is 2026-10-18 23:30 UTC, already the 19th two hours east.
var fixedNow = time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	files    *mockFileRepo
	corrs    *mockCorrRepo
	entries  *mockEntryRepo
	tx       *inlineTx
	remote   *recordingIDP
	verifier *stubVerifier
}

func newFixture() *fixture {
	f := &fixture{
		files:    &mockFileRepo{files: map[string]*PatientFile{}},
		corrs:    &mockCorrRepo{items: map[uuid.UUID]*correspondence.Correspondence{}},
		entries:  &mockEntryRepo{entries: map[uuid.UUID]entry.Entry{}, seq: map[uuid.UUID]int{}},
		tx:       &inlineTx{},
		remote:   &recordingIDP{},
		verifier: &stubVerifier{},
	}
	doctors := doctorSet{"D001": true, "D002": true, "D003": true, "D004": true}
	store := entry.NewStore(f.entries, doctors, f.files, mockCatalog{})
	f.svc = NewService(f.files, store, f.corrs, doctors, f.tx, f.verifier, idp.NewSync(f.remote, zerolog.Nop()), zerolog.Nop())
	f.svc.SetClock(func() time.Time { return fixedNow }, time.UTC)

	f.files.files["P001"] = &PatientFile{ID: "P001", LastName: "Durand", ReferringDoctorID: "D001"}
	f.files.files["P002"] = &PatientFile{ID: "P002", LastName: "Petit", ReferringDoctorID: "D003"}
	return f
}
