package doctor

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/medrecord/medrecord/internal/platform/apperr"
	"github.com/medrecord/medrecord/internal/platform/auth"
	"github.com/medrecord/medrecord/internal/platform/idp"
)

// =========== Mock Repository ===========

type mockRepo struct {
	doctors   map[string]*Doctor
	deleteErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{doctors: make(map[string]*Doctor)}
}

func (m *mockRepo) Create(_ context.Context, d *Doctor) error {
	if _, ok := m.doctors[d.ID]; ok {
		return ErrDuplicate
	}
	m.doctors[d.ID] = d
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockRepo) ExistsByID(_ context.Context, id string) (bool, error) {
	_, ok := m.doctors[id]
	return ok, nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Doctor, int, error) {
	var out []*Doctor
	for _, d := range m.doctors {
		out = append(out, d)
	}
	return out, len(out), nil
}

func (m *mockRepo) Update(_ context.Context, d *Doctor) error {
	if _, ok := m.doctors[d.ID]; !ok {
		return ErrNotFound
	}
	m.doctors[d.ID] = d
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.doctors[id]; !ok {
		return ErrNotFound
	}
	delete(m.doctors, id)
	return nil
}

type referrals map[string]int

func (r referrals) CountByReferringDoctor(_ context.Context, id string) (int, error) {
	return r[id], nil
}

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

func newTestService() (*Service, *mockRepo, referrals, *recordingIDP) {
	repo := newMockRepo()
	refs := referrals{}
	remote := &recordingIDP{}
	return NewService(repo, refs, idp.NewSync(remote, zerolog.Nop()), zerolog.Nop()), repo, refs, remote
}

func seed(t *testing.T, s *Service, id string, admin bool) {
	t.Helper()
	if err := s.Create(context.Background(), &Doctor{ID: id, LastName: "Martin", Admin: admin}, "long-enough-secret"); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

// =========== Tests ===========

func TestCreate_HashesSecret(t *testing.T) {
	s, repo, _, _ := newTestService()
	seed(t, s, "D001", false)
	d := repo.doctors["D001"]
	if d.SecretHash == "" || d.SecretHash == "long-enough-secret" {
		t.Fatalf("secret not hashed: %q", d.SecretHash)
	}
	if !auth.CheckSecret(d.SecretHash, "long-enough-secret") {
		t.Error("hash does not verify")
	}
}

func TestCreate_Duplicate(t *testing.T) {
	s, _, _, _ := newTestService()
	seed(t, s, "D001", false)
	err := s.Create(context.Background(), &Doctor{ID: "D001", LastName: "Other"}, "long-enough-secret")
	if !apperr.Is(err, apperr.KindConflictDuplicateKey) {
		t.Fatalf("expected duplicate key, got %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		doctor Doctor
		secret string
	}{
		{"missing id", Doctor{LastName: "Martin"}, "long-enough-secret"},
		{"blank id", Doctor{ID: "  ", LastName: "Martin"}, "long-enough-secret"},
		{"missing last name", Doctor{ID: "D009"}, "long-enough-secret"},
		{"short secret", Doctor{ID: "D009", LastName: "Martin"}, "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _, _ := newTestService()
			d := tt.doctor
			if err := s.Create(context.Background(), &d, tt.secret); !apperr.Is(err, apperr.KindBadRequest) {
				t.Errorf("expected bad request, got %v", err)
			}
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	s, _, _, _ := newTestService()
	if _, err := s.Get(context.Background(), "D404"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdate_PushesProfile(t *testing.T) {
	s, repo, _, remote := newTestService()
	seed(t, s, "D001", false)

	d, err := s.Update(context.Background(), "D001", Profile{FirstName: "Ada", LastName: "Lovelace", Specialties: []string{"cardiology"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.FirstName != "Ada" || repo.doctors["D001"].LastName != "Lovelace" {
		t.Errorf("profile not applied: %+v", d)
	}
	if len(remote.updated) != 1 || remote.updated[0].LastName != "Lovelace" {
		t.Errorf("expected profile pushed to identity provider, got %+v", remote.updated)
	}
}

func TestUpdate_IdentityProviderFailureIgnored(t *testing.T) {
	s, _, _, remote := newTestService()
	seed(t, s, "D001", false)
	remote.res = idp.Result{Status: idp.StatusFailed, Err: errors.New("timeout")}

	if _, err := s.Update(context.Background(), "D001", Profile{LastName: "Lovelace"}); err != nil {
		t.Fatalf("identity provider failure must not surface, got %v", err)
	}
}

func TestDelete_GuardedWhileReferring(t *testing.T) {
	s, repo, refs, remote := newTestService()
	seed(t, s, "D001", false)
	refs["D001"] = 2

	err := s.Delete(context.Background(), "D001")
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err.Error() != "doctor is still referring doctor of 2 patient files" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if _, ok := repo.doctors["D001"]; !ok {
		t.Error("doctor must not be deleted")
	}
	if len(remote.deleted) != 0 {
		t.Error("identity provider must not be called")
	}
}

func TestDelete_SucceedsDespiteIdentityProviderFailure(t *testing.T) {
	s, repo, _, remote := newTestService()
	seed(t, s, "D002", false)
	remote.res = idp.Result{Status: idp.StatusFailed, Err: errors.New("keycloak unreachable")}

	if err := s.Delete(context.Background(), "D002"); err != nil {
		t.Fatalf("expected local delete to succeed, got %v", err)
	}
	if _, ok := repo.doctors["D002"]; ok {
		t.Error("doctor still present")
	}
	if len(remote.deleted) != 1 || remote.deleted[0] != "D002" {
		t.Errorf("expected one identity provider delete, got %v", remote.deleted)
	}
}

func TestDelete_NotFound(t *testing.T) {
	s, _, _, _ := newTestService()
	if err := s.Delete(context.Background(), "D404"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDelete_StorageFailure(t *testing.T) {
	s, repo, _, _ := newTestService()
	seed(t, s, "D001", false)
	repo.deleteErr = errors.New("fk violation")
	if err := s.Delete(context.Background(), "D001"); !apperr.Is(err, apperr.KindDeleteFailed) {
		t.Fatalf("expected delete failed, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	s, _, _, _ := newTestService()
	seed(t, s, "D001", false)
	seed(t, s, "A001", true)
	ctx := context.Background()

	roles, err := s.Authenticate(ctx, "D001", "long-enough-secret")
	if err != nil || len(roles) != 1 || roles[0] != auth.RoleDoctor {
		t.Errorf("expected [doctor], got %v (%v)", roles, err)
	}
	roles, err = s.Authenticate(ctx, "A001", "long-enough-secret")
	if err != nil || len(roles) != 2 || roles[1] != auth.RoleAdmin {
		t.Errorf("expected [doctor admin], got %v (%v)", roles, err)
	}
	if _, err := s.Authenticate(ctx, "D001", "wrong-secret"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
	if _, err := s.Authenticate(ctx, "D404", "long-enough-secret"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("expected unauthorized for unknown doctor, got %v", err)
	}
}
