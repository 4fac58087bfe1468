package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"patient-portal/internal/domain/records"
)

type recordsRepo struct {
	mu   sync.RWMutex
	byID map[string]records.HealthRecord
}

func NewRecordsRepo() records.Repository {
	return &recordsRepo{
		byID: make(map[string]records.HealthRecord),
	}
}

func (r *recordsRepo) Create(ctx context.Context, rec *records.HealthRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == "" {
		return errors.New("record id required")
	}
	if _, exists := r.byID[rec.ID]; exists {
		return errors.New("record already exists")
	}
	r.byID[rec.ID] = *rec
	return nil
}

func (r *recordsRepo) GetByID(ctx context.Context, id string) (*records.HealthRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r *recordsRepo) ListByPatient(ctx context.Context, patientID string) ([]*records.HealthRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*records.HealthRecord, 0)
	for _, rec := range r.byID {
		if rec.PatientID == patientID {
			cp := rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
