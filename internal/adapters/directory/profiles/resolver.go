package profiles

import (
	"context"
	"sync"

	"patient-portal/internal/ports/directory"
)

// Resolver implementa directory.Resolver contra el servicio de perfiles.
type Resolver struct {
	client *Client
}

func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client}
}

func (r *Resolver) PatientByID(ctx context.Context, patientID string) (directory.PatientProfile, error) {
	if r == nil || r.client == nil || !r.client.IsConfigured() {
		// Preferimos fallar explícito antes que sanitizar con datos inventados.
		return directory.PatientProfile{}, ErrDirectoryNotConfigured
	}
	return r.client.GetPatientProfile(ctx, patientID)
}

func (r *Resolver) DoctorByID(ctx context.Context, doctorID string) (directory.DoctorProfile, error) {
	if r == nil || r.client == nil || !r.client.IsConfigured() {
		return directory.DoctorProfile{}, ErrDirectoryNotConfigured
	}
	return r.client.GetDoctorProfile(ctx, doctorID)
}

// MemoryResolver es el resolver para dev/tests: perfiles sembrados a mano.
type MemoryResolver struct {
	mu       sync.RWMutex
	patients map[string]directory.PatientProfile
	doctors  map[string]directory.DoctorProfile
}

func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{
		patients: map[string]directory.PatientProfile{},
		doctors:  map[string]directory.DoctorProfile{},
	}
}

func (m *MemoryResolver) SeedPatient(p directory.PatientProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.PatientID] = p
}

func (m *MemoryResolver) SeedDoctor(d directory.DoctorProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[d.DoctorID] = d
}

func (m *MemoryResolver) PatientByID(_ context.Context, patientID string) (directory.PatientProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[patientID]
	if !ok {
		return directory.PatientProfile{}, ErrProfileNotFound
	}
	return p, nil
}

func (m *MemoryResolver) DoctorByID(_ context.Context, doctorID string) (directory.DoctorProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.doctors[doctorID]
	if !ok {
		return directory.DoctorProfile{}, ErrProfileNotFound
	}
	return d, nil
}
