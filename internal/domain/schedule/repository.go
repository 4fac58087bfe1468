package schedule

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, c Consultation) error
	Update(ctx context.Context, c Consultation) error
	GetByID(ctx context.Context, id string) (Consultation, error)

	// ListByDoctorBetween devuelve consultas del doctor cuyo intervalo cae
	// (total o parcialmente) dentro de [from, to). Incluye canceladas; el
	// caller filtra con BusyEntriesOf.
	ListByDoctorBetween(ctx context.Context, doctorID string, from, to time.Time) ([]Consultation, error)

	// ListByPatientBetween lista las consultas de un paciente (agenda propia).
	ListByPatientBetween(ctx context.Context, patientID string, from, to time.Time) ([]Consultation, error)
}
