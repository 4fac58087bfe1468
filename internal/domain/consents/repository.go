package consents

import "context"

type Repository interface {
	Create(ctx context.Context, r Request) error
	Update(ctx context.Context, r Request) error
	GetByID(ctx context.Context, id string) (Request, error)
	ListByPatient(ctx context.Context, patientID string) ([]Request, error)
	ListByRequester(ctx context.Context, requesterID string) ([]Request, error)
}
