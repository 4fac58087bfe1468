package accessgrants

import "context"

type Repository interface {
	Create(ctx context.Context, g Grant) error
	Update(ctx context.Context, g Grant) error
	GetByID(ctx context.Context, id string) (Grant, error)

	// ListByPair devuelve todos los grants del par (paciente, doctor),
	// cualquier status.
	ListByPair(ctx context.Context, patientID, doctorID string) ([]Grant, error)

	ListByPatient(ctx context.Context, patientID string) ([]Grant, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]Grant, error)
}
