package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"patient-portal/internal/domain/schedule"
)

func newMockRepo(t *testing.T) (*ConsultationsRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewConsultationsRepo(db), mock
}

func TestCreateMapeaExclusionAConflict(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO consultations").
		WillReturnError(&pgconn.PgError{Code: "23P01"})

	patient := "pat-1"
	err := repo.Create(context.Background(), schedule.Consultation{
		ID:              "con-1",
		DoctorID:        "doc-1",
		PatientID:       &patient,
		Start:           time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
		Kind:            schedule.KindAppointment,
		Status:          schedule.StatusScheduled,
	})
	if !errors.Is(err, schedule.ErrConflict) {
		t.Fatalf("esperaba schedule.ErrConflict, hubo %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateOtroErrorNoSeMapea(t *testing.T) {
	repo, mock := newMockRepo(t)

	boom := errors.New("conexión caída")
	mock.ExpectExec("INSERT INTO consultations").WillReturnError(boom)

	err := repo.Create(context.Background(), schedule.Consultation{ID: "con-1", DoctorID: "doc-1"})
	if errors.Is(err, schedule.ErrConflict) {
		t.Fatal("un error genérico no debe reportarse como conflicto")
	}
	if err == nil {
		t.Fatal("esperaba error")
	}
}

func TestGetByIDNoEncontrado(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT").
		WithArgs("con-x").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "con-x")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("esperaba ErrNotFound, hubo %v", err)
	}
}

func TestListByDoctorBetweenEscaneaFilas(t *testing.T) {
	repo, mock := newMockRepo(t)

	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	cols := []string{
		"id", "doctor_id", "patient_id",
		"start_at", "duration_minutes",
		"kind", "reason", "notes", "status",
		"created_at", "updated_at",
	}
	rows := sqlmock.NewRows(cols).
		AddRow("con-1", "doc-1", "pat-1", start, 30, "appointment", "control", "", "scheduled", start, start).
		AddRow("blk-1", "", nil, start.Add(time.Hour), 60, "blocked", "mantenimiento", "", "scheduled", start, start)

	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	out, err := repo.ListByDoctorBetween(context.Background(), "doc-1", start, start.Add(8*time.Hour))
	if err != nil {
		t.Fatalf("error inesperado: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("filas = %d", len(out))
	}
	if out[0].PatientID == nil || *out[0].PatientID != "pat-1" {
		t.Fatalf("patientId mal escaneado: %+v", out[0])
	}
	if out[1].PatientID != nil || out[1].DoctorID != "" {
		t.Fatalf("bloqueo global mal escaneado: %+v", out[1])
	}
	if out[1].Kind != schedule.KindBlocked {
		t.Fatalf("kind = %q", out[1].Kind)
	}
}
