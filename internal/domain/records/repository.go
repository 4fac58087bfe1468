package records

import "context"

// Repository abstrae la persistencia de documentos clínicos.
type Repository interface {
	Create(ctx context.Context, r *HealthRecord) error
	GetByID(ctx context.Context, id string) (*HealthRecord, error)
	ListByPatient(ctx context.Context, patientID string) ([]*HealthRecord, error)
}
