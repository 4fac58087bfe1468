package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"patient-portal/internal/domain/consents"
)

type consentRepo struct {
	mu   sync.RWMutex
	byID map[string]consents.Request
}

func NewConsentsRepo() consents.Repository {
	return &consentRepo{
		byID: make(map[string]consents.Request),
	}
}

func (r *consentRepo) Create(ctx context.Context, c consents.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		return errors.New("consent id required")
	}
	if _, exists := r.byID[c.ID]; exists {
		return errors.New("consent already exists")
	}
	r.byID[c.ID] = c
	return nil
}

func (r *consentRepo) Update(ctx context.Context, c consents.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		return errors.New("consent id required")
	}
	if _, exists := r.byID[c.ID]; !exists {
		return ErrNotFound
	}
	r.byID[c.ID] = c
	return nil
}

func (r *consentRepo) GetByID(ctx context.Context, id string) (consents.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return consents.Request{}, ErrNotFound
	}
	return c, nil
}

func (r *consentRepo) ListByPatient(ctx context.Context, patientID string) ([]consents.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]consents.Request, 0)
	for _, c := range r.byID {
		if c.PatientID == patientID {
			out = append(out, c)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (r *consentRepo) ListByRequester(ctx context.Context, requesterID string) ([]consents.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]consents.Request, 0)
	for _, c := range r.byID {
		if c.RequesterID == requesterID {
			out = append(out, c)
		}
	}
	sortByCreated(out)
	return out, nil
}

func sortByCreated(cs []consents.Request) {
	sort.Slice(cs, func(i, j int) bool {
		return cs[i].RequestedAt.Before(cs[j].RequestedAt)
	})
}
