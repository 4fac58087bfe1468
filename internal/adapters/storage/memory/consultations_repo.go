package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"patient-portal/internal/domain/schedule"
)

var (
	ErrNotFound = errors.New("not found")
)

type consultationRepo struct {
	mu   sync.RWMutex
	byID map[string]schedule.Consultation
}

func NewConsultationsRepo() schedule.Repository {
	return &consultationRepo{
		byID: make(map[string]schedule.Consultation),
	}
}

func (r *consultationRepo) Create(ctx context.Context, c schedule.Consultation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		return errors.New("consultation id required")
	}
	if _, exists := r.byID[c.ID]; exists {
		return errors.New("consultation already exists")
	}
	r.byID[c.ID] = c
	return nil
}

func (r *consultationRepo) Update(ctx context.Context, c schedule.Consultation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		return errors.New("consultation id required")
	}
	if _, exists := r.byID[c.ID]; !exists {
		return ErrNotFound
	}
	r.byID[c.ID] = c
	return nil
}

func (r *consultationRepo) GetByID(ctx context.Context, id string) (schedule.Consultation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return schedule.Consultation{}, ErrNotFound
	}
	return c, nil
}

func (r *consultationRepo) ListByDoctorBetween(ctx context.Context, doctorID string, from, to time.Time) ([]schedule.Consultation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]schedule.Consultation, 0)
	for _, c := range r.byID {
		// Los bloqueos globales (doctorID vacío) aplican a toda agenda.
		if c.DoctorID != doctorID && c.DoctorID != "" {
			continue
		}
		if !intersects(c, from, to) {
			continue
		}
		out = append(out, c)
	}
	sortByStart(out)
	return out, nil
}

func (r *consultationRepo) ListByPatientBetween(ctx context.Context, patientID string, from, to time.Time) ([]schedule.Consultation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]schedule.Consultation, 0)
	for _, c := range r.byID {
		if c.PatientID == nil || *c.PatientID != patientID {
			continue
		}
		if !intersects(c, from, to) {
			continue
		}
		out = append(out, c)
	}
	sortByStart(out)
	return out, nil
}

func intersects(c schedule.Consultation, from, to time.Time) bool {
	iv := c.Interval()
	return iv.Start.Before(to) && from.Before(iv.End)
}

func sortByStart(cs []schedule.Consultation) {
	sort.Slice(cs, func(i, j int) bool {
		return cs[i].Start.Before(cs[j].Start)
	})
}
