package schedule

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
	byID map[string]Consultation

	// failCreateWith simula el rechazo del store (exclusion constraint).
	failCreateWith error
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Consultation{}}
}

func (r *testRepo) Create(ctx context.Context, c Consultation) error {
	if r.failCreateWith != nil {
		return r.failCreateWith
	}
	if c.ID == "" {
		return errors.New("repo: id required")
	}
	if _, ok := r.byID[c.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[c.ID] = c
	return nil
}

func (r *testRepo) Update(ctx context.Context, c Consultation) error {
	if _, ok := r.byID[c.ID]; !ok {
		return errRepoNotFound
	}
	r.byID[c.ID] = c
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Consultation, error) {
	c, ok := r.byID[id]
	if !ok {
		return Consultation{}, errRepoNotFound
	}
	return c, nil
}

func (r *testRepo) ListByDoctorBetween(ctx context.Context, doctorID string, from, to time.Time) ([]Consultation, error) {
	out := make([]Consultation, 0)
	for _, c := range r.byID {
		if doctorID != "" && c.DoctorID != doctorID && c.DoctorID != "" {
			continue
		}
		iv := c.Interval()
		if iv.Start.Before(to) && from.Before(iv.End) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *testRepo) ListByPatientBetween(ctx context.Context, patientID string, from, to time.Time) ([]Consultation, error) {
	out := make([]Consultation, 0)
	for _, c := range r.byID {
		if c.PatientID == nil || *c.PatientID != patientID {
			continue
		}
		iv := c.Interval()
		if iv.Start.Before(to) && from.Before(iv.End) {
			out = append(out, c)
		}
	}
	return out, nil
}

func newTestService(repo *testRepo) *Service {
	svc := NewService(repo, testGrid(), nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

// -------------------------
// Tests
// -------------------------

func TestService_Book_OK(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	c, err := svc.Book(context.Background(), BookInput{
		DoctorID:        "doc-1",
		PatientID:       "pat-1",
		Start:           time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
		Reason:          "checkup",
	})
	if err != nil {
		t.Fatalf("Book returned error: %v", err)
	}
	if c.Status != StatusScheduled || c.Kind != KindAppointment {
		t.Fatalf("unexpected consultation %+v", c)
	}
	if c.PatientID == nil || *c.PatientID != "pat-1" {
		t.Fatalf("expected patient id set")
	}
	if _, ok := repo.byID[c.ID]; !ok {
		t.Fatalf("consultation not persisted")
	}
}

func TestService_Book_AuthoritativeRecheckRejectsStaleSlot(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	start := time.Date(2026, 4, 6, 10, 0, 0, 0, time.UTC)

	if _, err := svc.Book(context.Background(), BookInput{
		DoctorID: "doc-1", PatientID: "pat-1", Start: start, DurationMinutes: 30, Reason: "first",
	}); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	// Otro paciente eligió el mismo slot con una lectura vieja. El re-chequeo
	// en el write es el que manda.
	_, err := svc.Book(context.Background(), BookInput{
		DoctorID: "doc-1", PatientID: "pat-2", Start: start, DurationMinutes: 30, Reason: "second",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestService_Book_StoreConflictSurfaces(t *testing.T) {
	repo := newTestRepo()
	repo.failCreateWith = ErrConflict
	svc := newTestService(repo)

	_, err := svc.Book(context.Background(), BookInput{
		DoctorID: "doc-1", PatientID: "pat-1",
		Start: time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC), DurationMinutes: 30, Reason: "x",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict from store constraint, got %v", err)
	}
}

func TestService_Book_ValidationErrors(t *testing.T) {
	svc := newTestService(newTestRepo())
	start := time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)

	cases := []BookInput{
		{PatientID: "p", Start: start, DurationMinutes: 30, Reason: "r"}, // sin doctor
		{DoctorID: "d", Start: start, DurationMinutes: 30, Reason: "r"}, // sin paciente
		{DoctorID: "d", PatientID: "p", DurationMinutes: 30, Reason: "r"},
		{DoctorID: "d", PatientID: "p", Start: start, Reason: "r"},
		{DoctorID: "d", PatientID: "p", Start: start, DurationMinutes: 30}, // sin reason
	}
	for i, in := range cases {
		if _, err := svc.Book(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestService_BlockTime_BlocksAvailability(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	_, err := svc.BlockTime(context.Background(), BlockInput{
		DoctorID:        "doc-1",
		Start:           time.Date(2026, 4, 6, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
		Reason:          "lunch",
	})
	if err != nil {
		t.Fatalf("BlockTime: %v", err)
	}

	slots, err := svc.Availability(context.Background(), time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC), 60, "doc-1")
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	if slotStarting(t, slots, 9, 30).Available {
		t.Fatalf("09:30/60min must be blocked by the 10:00 block")
	}
	if !slotStarting(t, slots, 9, 0).Available {
		t.Fatalf("09:00/60min must stay free")
	}
}

func TestService_CancelledConsultationFreesSlot(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)
	start := time.Date(2026, 4, 6, 10, 0, 0, 0, time.UTC)

	c, err := svc.Book(context.Background(), BookInput{
		DoctorID: "doc-1", PatientID: "pat-1", Start: start, DurationMinutes: 30, Reason: "x",
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), c.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	// La fila cancelada se destruye/ignora como fuente de busy.
	if _, err := svc.Book(context.Background(), BookInput{
		DoctorID: "doc-1", PatientID: "pat-2", Start: start, DurationMinutes: 30, Reason: "y",
	}); err != nil {
		t.Fatalf("rebooking a cancelled slot: %v", err)
	}
}

func TestService_Cancel_Idempotent(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	c, err := svc.Book(context.Background(), BookInput{
		DoctorID: "doc-1", PatientID: "pat-1",
		Start: time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC), DurationMinutes: 30, Reason: "x",
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), c.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), c.ID); err != nil {
		t.Fatalf("second cancel must be idempotent, got %v", err)
	}
}

func TestService_Reschedule_SelfExcluded(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)
	start := time.Date(2026, 4, 6, 10, 0, 0, 0, time.UTC)

	c, err := svc.Book(context.Background(), BookInput{
		DoctorID: "doc-1", PatientID: "pat-1", Start: start, DurationMinutes: 30, Reason: "x",
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	// Mismo horario, más duración: solapa solo consigo misma => permitido.
	got, err := svc.Reschedule(context.Background(), c.ID, RescheduleInput{
		Start:           start,
		DurationMinutes: 60,
	})
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if got.DurationMinutes != 60 {
		t.Fatalf("expected duration updated, got %d", got.DurationMinutes)
	}
}

func TestService_Reschedule_ConflictWithOther(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	a, err := svc.Book(context.Background(), BookInput{
		DoctorID: "doc-1", PatientID: "pat-1",
		Start: time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC), DurationMinutes: 30, Reason: "a",
	})
	if err != nil {
		t.Fatalf("Book a: %v", err)
	}
	if _, err := svc.Book(context.Background(), BookInput{
		DoctorID: "doc-1", PatientID: "pat-2",
		Start: time.Date(2026, 4, 6, 10, 0, 0, 0, time.UTC), DurationMinutes: 30, Reason: "b",
	}); err != nil {
		t.Fatalf("Book b: %v", err)
	}

	_, err = svc.Reschedule(context.Background(), a.ID, RescheduleInput{
		Start:           time.Date(2026, 4, 6, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestService_Complete_OnlyFromScheduled(t *testing.T) {
	repo := newTestRepo()
	svc := newTestService(repo)

	c, err := svc.Book(context.Background(), BookInput{
		DoctorID: "doc-1", PatientID: "pat-1",
		Start: time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC), DurationMinutes: 30, Reason: "x",
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), c.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := svc.Complete(context.Background(), c.ID); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState completing a cancelled consultation, got %v", err)
	}
}
