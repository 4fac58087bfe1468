package consents

import (
	"context"
	"errors"
	"testing"
	"time"
)

// -------------------------
// Test repo + grant store (in-memory)
// -------------------------

var errRepoNotFound = errors.New("repo: not found")

type testRepo struct {
	byID map[string]Request
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Request{}}
}

func (r *testRepo) Create(ctx context.Context, req Request) error {
	if req.ID == "" {
		return errors.New("repo: id required")
	}
	r.byID[req.ID] = req
	return nil
}

func (r *testRepo) Update(ctx context.Context, req Request) error {
	if _, ok := r.byID[req.ID]; !ok {
		return errRepoNotFound
	}
	r.byID[req.ID] = req
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Request, error) {
	req, ok := r.byID[id]
	if !ok {
		return Request{}, errRepoNotFound
	}
	return req, nil
}

func (r *testRepo) ListByPatient(ctx context.Context, patientID string) ([]Request, error) {
	out := make([]Request, 0)
	for _, req := range r.byID {
		if req.PatientID == patientID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *testRepo) ListByRequester(ctx context.Context, requesterID string) ([]Request, error) {
	out := make([]Request, 0)
	for _, req := range r.byID {
		if req.RequesterID == requesterID {
			out = append(out, req)
		}
	}
	return out, nil
}

type createdGrant struct {
	PatientID string
	DoctorID  string
	DataType  DataType
	ExpiresAt time.Time
}

type testGrantStore struct {
	created []createdGrant
	revoked []string // "patient/doctor"

	failTypes  map[DataType]bool
	failRevoke bool
}

func newTestGrantStore() *testGrantStore {
	return &testGrantStore{failTypes: map[DataType]bool{}}
}

func (g *testGrantStore) CreateGrant(ctx context.Context, patientID, doctorID string, dt DataType, expiresAt time.Time) error {
	if g.failTypes[dt] {
		return errors.New("grant store: create failed")
	}
	g.created = append(g.created, createdGrant{patientID, doctorID, dt, expiresAt})
	return nil
}

func (g *testGrantStore) RevokeGrants(ctx context.Context, patientID, doctorID string) error {
	if g.failRevoke {
		return errors.New("grant store: revoke failed")
	}
	g.revoked = append(g.revoked, patientID+"/"+doctorID)
	return nil
}

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestService(repo *testRepo, grants *testGrantStore) *Service {
	svc := NewService(repo, grants, nil, nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

func pendingRequest(t *testing.T, svc *Service, dataTypes ...DataType) Request {
	t.Helper()
	if len(dataTypes) == 0 {
		dataTypes = []DataType{DataViewRecords}
	}
	r, err := svc.Create(context.Background(), CreateInput{
		PatientID:    "pat-1",
		RequesterID:  "doc-1",
		Purpose:      "ongoing treatment",
		DataTypes:    dataTypes,
		DurationDays: 30,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return r
}

// -------------------------
// Tests
// -------------------------

func TestService_Create_Pending(t *testing.T) {
	svc := newTestService(newTestRepo(), newTestGrantStore())

	r := pendingRequest(t, svc, DataViewRecords, DataViewRecords, DataViewNotes)

	if r.Status != StatusPending {
		t.Fatalf("expected pending, got %s", r.Status)
	}
	if r.RespondedAt != nil || r.ExpiresAt != nil {
		t.Fatalf("pending must not carry respondedAt/expiresAt")
	}
	// Duplicados colapsados.
	if len(r.DataTypes) != 2 {
		t.Fatalf("expected deduped data types, got %#v", r.DataTypes)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc := newTestService(newTestRepo(), newTestGrantStore())

	cases := []CreateInput{
		{PatientID: "p", RequesterID: "p", Purpose: "x", DataTypes: []DataType{DataAll}, DurationDays: 10},   // self
		{PatientID: "p", RequesterID: "d", DataTypes: []DataType{DataAll}, DurationDays: 10},                 // sin purpose
		{PatientID: "p", RequesterID: "d", Purpose: "x", DurationDays: 10},                                   // sin data types
		{PatientID: "p", RequesterID: "d", Purpose: "x", DataTypes: []DataType{"backdoor"}, DurationDays: 5}, // tipo inválido
		{PatientID: "p", RequesterID: "d", Purpose: "x", DataTypes: []DataType{DataAll}, DurationDays: 0},
		{PatientID: "p", RequesterID: "d", Purpose: "x", DataTypes: []DataType{DataAll}, DurationDays: 9999},
	}
	for i, in := range cases {
		if _, err := svc.Create(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestService_Approve_CreatesOneGrantPerType(t *testing.T) {
	repo := newTestRepo()
	grants := newTestGrantStore()
	svc := newTestService(repo, grants)

	r := pendingRequest(t, svc, DataViewRecords, DataViewPrescriptions)

	got, err := svc.Approve(context.Background(), r.ID, "pat-1")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if got.Status != StatusApproved {
		t.Fatalf("expected approved, got %s", got.Status)
	}
	if got.RespondedAt == nil || !got.RespondedAt.Equal(testNow) {
		t.Fatalf("expected respondedAt = now")
	}
	wantExpiry := testNow.AddDate(0, 0, 30)
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected expiresAt %v, got %v", wantExpiry, got.ExpiresAt)
	}

	// Exactamente dos grants, con el expiry copiado del request.
	if len(grants.created) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(grants.created))
	}
	for _, g := range grants.created {
		if !g.ExpiresAt.Equal(wantExpiry) {
			t.Fatalf("grant expiry %v != request expiry %v", g.ExpiresAt, wantExpiry)
		}
	}
}

func TestService_Approve_PartialGrantFailureContinues(t *testing.T) {
	repo := newTestRepo()
	grants := newTestGrantStore()
	grants.failTypes[DataViewPrescriptions] = true
	svc := newTestService(repo, grants)

	r := pendingRequest(t, svc, DataViewRecords, DataViewPrescriptions)

	got, err := svc.Approve(context.Background(), r.ID, "pat-1")
	if err != nil {
		t.Fatalf("Approve with one failing type must still succeed, got %v", err)
	}
	if got.Status != StatusApproved {
		t.Fatalf("expected approved, got %s", got.Status)
	}
	if len(grants.created) != 1 {
		t.Fatalf("expected 1 grant created, got %d", len(grants.created))
	}
}

func TestService_Approve_AllGrantsFailRollsBackToPending(t *testing.T) {
	repo := newTestRepo()
	grants := newTestGrantStore()
	grants.failTypes[DataViewRecords] = true
	svc := newTestService(repo, grants)

	r := pendingRequest(t, svc, DataViewRecords)

	_, err := svc.Approve(context.Background(), r.ID, "pat-1")
	if !errors.Is(err, ErrGrantCreation) {
		t.Fatalf("expected ErrGrantCreation, got %v", err)
	}

	// approved con cero grants sería inconsistente: vuelve a pending.
	stored := repo.byID[r.ID]
	if stored.Status != StatusPending || stored.RespondedAt != nil || stored.ExpiresAt != nil {
		t.Fatalf("expected rollback to clean pending, got %+v", stored)
	}
}

func TestService_Approve_WrongPatientForbidden(t *testing.T) {
	svc := newTestService(newTestRepo(), newTestGrantStore())
	r := pendingRequest(t, svc)

	if _, err := svc.Approve(context.Background(), r.ID, "someone-else"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestService_NoResurrection(t *testing.T) {
	repo := newTestRepo()
	grants := newTestGrantStore()
	svc := newTestService(repo, grants)

	// denied -> approve debe fallar.
	r1 := pendingRequest(t, svc)
	if _, err := svc.Deny(context.Background(), r1.ID, "pat-1"); err != nil {
		t.Fatalf("Deny: %v", err)
	}
	if _, err := svc.Approve(context.Background(), r1.ID, "pat-1"); !errors.Is(err, ErrBadState) {
		t.Fatalf("denied -> approved must be ErrBadState, got %v", err)
	}

	// revoked -> approve debe fallar.
	r2 := pendingRequest(t, svc)
	if _, err := svc.Approve(context.Background(), r2.ID, "pat-1"); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := svc.Revoke(context.Background(), r2.ID, "pat-1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.Approve(context.Background(), r2.ID, "pat-1"); !errors.Is(err, ErrBadState) {
		t.Fatalf("revoked -> approved must be ErrBadState, got %v", err)
	}
}

func TestService_Deny_NoGrants(t *testing.T) {
	grants := newTestGrantStore()
	svc := newTestService(newTestRepo(), grants)
	r := pendingRequest(t, svc)

	got, err := svc.Deny(context.Background(), r.ID, "pat-1")
	if err != nil {
		t.Fatalf("Deny: %v", err)
	}
	if got.Status != StatusDenied || got.RespondedAt == nil {
		t.Fatalf("unexpected denied request %+v", got)
	}
	if got.ExpiresAt != nil {
		t.Fatalf("denied must not carry expiresAt")
	}
	if len(grants.created) != 0 {
		t.Fatalf("deny must not create grants")
	}
}

func TestService_Revoke_CascadesToGrants(t *testing.T) {
	grants := newTestGrantStore()
	svc := newTestService(newTestRepo(), grants)
	r := pendingRequest(t, svc, DataViewRecords, DataViewNotes)

	if _, err := svc.Approve(context.Background(), r.ID, "pat-1"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	got, err := svc.Revoke(context.Background(), r.ID, "pat-1")
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if got.Status != StatusRevoked {
		t.Fatalf("expected revoked, got %s", got.Status)
	}
	if len(grants.revoked) != 1 || grants.revoked[0] != "pat-1/doc-1" {
		t.Fatalf("expected cascade to pair grants, got %#v", grants.revoked)
	}
}

func TestService_Revoke_GrantFailureIsLoudButConsentStaysRevoked(t *testing.T) {
	repo := newTestRepo()
	grants := newTestGrantStore()
	svc := newTestService(repo, grants)
	r := pendingRequest(t, svc)

	if _, err := svc.Approve(context.Background(), r.ID, "pat-1"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	grants.failRevoke = true
	_, err := svc.Revoke(context.Background(), r.ID, "pat-1")
	if !errors.Is(err, ErrGrantRevocation) {
		t.Fatalf("expected ErrGrantRevocation, got %v", err)
	}

	// El consentimiento queda revocado igual; el caller reintenta los grants.
	if repo.byID[r.ID].Status != StatusRevoked {
		t.Fatalf("consent must stay revoked even if grant revocation failed")
	}

	grants.failRevoke = false
	if err := svc.RetryGrantRevocation(context.Background(), r.ID); err != nil {
		t.Fatalf("RetryGrantRevocation: %v", err)
	}
	if len(grants.revoked) != 1 {
		t.Fatalf("expected retry to revoke grants")
	}
}

func TestService_Revoke_OnlyFromApproved(t *testing.T) {
	svc := newTestService(newTestRepo(), newTestGrantStore())
	r := pendingRequest(t, svc)

	if _, err := svc.Revoke(context.Background(), r.ID, "pat-1"); !errors.Is(err, ErrBadState) {
		t.Fatalf("pending -> revoked must be ErrBadState, got %v", err)
	}
}

func TestService_Revoke_OnRevokedRetriesGrants(t *testing.T) {
	grants := newTestGrantStore()
	svc := newTestService(newTestRepo(), grants)
	r := pendingRequest(t, svc)

	if _, err := svc.Approve(context.Background(), r.ID, "pat-1"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	grants.failRevoke = true
	if _, err := svc.Revoke(context.Background(), r.ID, "pat-1"); !errors.Is(err, ErrGrantRevocation) {
		t.Fatalf("expected ErrGrantRevocation, got %v", err)
	}

	// Repetir el mismo Revoke sobre un consent ya revocado reintenta el
	// segundo paso en lugar de rechazar con ErrBadState.
	grants.failRevoke = false
	got, err := svc.Revoke(context.Background(), r.ID, "pat-1")
	if err != nil {
		t.Fatalf("Revoke retry: %v", err)
	}
	if got.Status != StatusRevoked {
		t.Fatalf("expected revoked, got %s", got.Status)
	}
	if len(grants.revoked) != 1 {
		t.Fatalf("expected retry to revoke grants, got %#v", grants.revoked)
	}
}

func TestService_ExpiredIsDerivedOnRead(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo, newTestGrantStore())
	r := pendingRequest(t, svc)

	if _, err := svc.Approve(context.Background(), r.ID, "pat-1"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	// Avanzamos el reloj más allá del expiry; la fila sigue approved.
	svc.now = func() time.Time { return testNow.AddDate(0, 0, 31) }

	got, err := svc.GetByID(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusExpired {
		t.Fatalf("expected derived expired, got %s", got.Status)
	}
	if repo.byID[r.ID].Status != StatusApproved {
		t.Fatalf("stored status must remain approved (expiry never mutated eagerly)")
	}
}
