package accessgrants

import (
	"context"
	"errors"
	"testing"
	"time"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

var errRepoNotFound = errors.New("repo: not found")

type testRepo struct {
	byID map[string]Grant

	failUpdateOn map[string]bool
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Grant{}, failUpdateOn: map[string]bool{}}
}

func (r *testRepo) Create(ctx context.Context, g Grant) error {
	if g.ID == "" {
		return errors.New("repo: id required")
	}
	if _, ok := r.byID[g.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[g.ID] = g
	return nil
}

func (r *testRepo) Update(ctx context.Context, g Grant) error {
	if r.failUpdateOn[g.ID] {
		return errors.New("repo: update failed")
	}
	if _, ok := r.byID[g.ID]; !ok {
		return errRepoNotFound
	}
	r.byID[g.ID] = g
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Grant, error) {
	g, ok := r.byID[id]
	if !ok {
		return Grant{}, errRepoNotFound
	}
	return g, nil
}

func (r *testRepo) ListByPair(ctx context.Context, patientID, doctorID string) ([]Grant, error) {
	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.PatientID == patientID && g.DoctorID == doctorID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *testRepo) ListByPatient(ctx context.Context, patientID string) ([]Grant, error) {
	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.PatientID == patientID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *testRepo) ListByDoctor(ctx context.Context, doctorID string) ([]Grant, error) {
	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.DoctorID == doctorID {
			out = append(out, g)
		}
	}
	return out, nil
}

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestService(repo *testRepo) *Service {
	svc := NewService(repo, nil, nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

// -------------------------
// Tests
// -------------------------

func TestService_Create_SetsActiveWithExpiry(t *testing.T) {
	svc := newTestService(newTestRepo())
	expires := testNow.AddDate(0, 0, 30)

	g, err := svc.Create(context.Background(), "pat-1", "doc-1", AccessViewRecords, expires)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if g.Status != StatusActive || !g.ExpiresAt.Equal(expires) || !g.GrantedAt.Equal(testNow) {
		t.Fatalf("unexpected grant %+v", g)
	}
}

func TestService_Create_RejectsUnknownType(t *testing.T) {
	svc := newTestService(newTestRepo())

	_, err := svc.Create(context.Background(), "pat-1", "doc-1", AccessType("root"), testNow.AddDate(0, 0, 1))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestService_IsAuthorized_TypeMatchOrAll(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)
	expires := testNow.AddDate(0, 0, 30)

	if _, err := svc.Create(context.Background(), "pat-1", "doc-1", AccessViewRecords, expires); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := svc.IsAuthorized(context.Background(), "pat-1", "doc-1", AccessViewRecords, testNow)
	if err != nil || !ok {
		t.Fatalf("expected authorized for matching type, ok=%v err=%v", ok, err)
	}

	ok, err = svc.IsAuthorized(context.Background(), "pat-1", "doc-1", AccessViewPrescriptions, testNow)
	if err != nil || ok {
		t.Fatalf("expected NOT authorized for other type, ok=%v err=%v", ok, err)
	}

	// `all` cubre cualquier tipo.
	if _, err := svc.Create(context.Background(), "pat-2", "doc-1", AccessAll, expires); err != nil {
		t.Fatalf("Create all: %v", err)
	}
	ok, err = svc.IsAuthorized(context.Background(), "pat-2", "doc-1", AccessViewNotes, testNow)
	if err != nil || !ok {
		t.Fatalf("expected `all` to cover notes, ok=%v err=%v", ok, err)
	}
}

func TestService_IsAuthorized_ExpiryIsComputed(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	expires := testNow.AddDate(0, 0, 7)
	if _, err := svc.Create(context.Background(), "pat-1", "doc-1", AccessViewRecords, expires); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// El status almacenado sigue siendo active, pero ya venció:
	// la autorización se computa contra ExpiresAt, no contra el status.
	after := expires.Add(time.Minute)
	ok, err := svc.IsAuthorized(context.Background(), "pat-1", "doc-1", AccessViewRecords, after)
	if err != nil {
		t.Fatalf("IsAuthorized: %v", err)
	}
	if ok {
		t.Fatalf("expected NOT authorized past expiry even while status reads active")
	}

	// Justo en el límite sigue vigente (at <= expiresAt).
	ok, err = svc.IsAuthorized(context.Background(), "pat-1", "doc-1", AccessViewRecords, expires)
	if err != nil || !ok {
		t.Fatalf("expected authorized exactly at expiry, ok=%v err=%v", ok, err)
	}
}

func TestService_RevokeFor_FlipsAllActive(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)
	expires := testNow.AddDate(0, 0, 30)

	if _, err := svc.Create(context.Background(), "pat-1", "doc-1", AccessViewRecords, expires); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(context.Background(), "pat-1", "doc-1", AccessViewPrescriptions, expires); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Grant de otro doctor no debe tocarse.
	other, err := svc.Create(context.Background(), "pat-1", "doc-2", AccessViewRecords, expires)
	if err != nil {
		t.Fatalf("Create other: %v", err)
	}

	n, err := svc.RevokeFor(context.Background(), "pat-1", "doc-1")
	if err != nil {
		t.Fatalf("RevokeFor: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 revoked, got %d", n)
	}

	for _, g := range repo.byID {
		if g.DoctorID == "doc-1" && g.Status != StatusRevoked {
			t.Fatalf("grant %s not revoked", g.ID)
		}
	}
	if repo.byID[other.ID].Status != StatusActive {
		t.Fatalf("doc-2's grant must stay active")
	}

	ok, err := svc.IsAuthorized(context.Background(), "pat-1", "doc-1", AccessViewRecords, testNow)
	if err != nil || ok {
		t.Fatalf("expected NOT authorized after revoke, ok=%v err=%v", ok, err)
	}
}

func TestService_RevokeFor_SurfacesPartialFailure(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)
	expires := testNow.AddDate(0, 0, 30)

	a, err := svc.Create(context.Background(), "pat-1", "doc-1", AccessViewRecords, expires)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	repo.failUpdateOn[a.ID] = true

	// Un grant activo que no se pudo revocar es un riesgo: el error debe
	// llegar al caller para reintentar, no taparse.
	if _, err := svc.RevokeFor(context.Background(), "pat-1", "doc-1"); err == nil {
		t.Fatalf("expected error when a grant update fails")
	}
}
