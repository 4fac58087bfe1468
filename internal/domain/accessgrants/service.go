package accessgrants

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"patient-portal/internal/observability/metrics"
	"patient-portal/internal/platform/logger"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

type Service struct {
	repo    Repository
	log     logger.Logger
	metrics *metrics.PortalMetrics
	now     func() time.Time
}

func NewService(repo Repository, log logger.Logger, m *metrics.PortalMetrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:    repo,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// Create emite un grant activo derivado de un consentimiento aprobado.
// ExpiresAt se copia del request; el grant nunca decide su propia vigencia.
func (s *Service) Create(ctx context.Context, patientID, doctorID string, accessType AccessType, expiresAt time.Time) (Grant, error) {
	patientID = strings.TrimSpace(patientID)
	doctorID = strings.TrimSpace(doctorID)

	if patientID == "" || doctorID == "" || expiresAt.IsZero() {
		return Grant{}, ErrInvalidInput
	}
	if !ValidAccessType(accessType) {
		return Grant{}, ErrInvalidInput
	}

	g := Grant{
		ID:         uuid.NewString(),
		PatientID:  patientID,
		DoctorID:   doctorID,
		AccessType: accessType,
		Status:     StatusActive,
		GrantedAt:  s.now(),
		ExpiresAt:  expiresAt,
	}

	if err := s.repo.Create(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// RevokeFor pasa a revoked todos los grants activos del par (paciente,
// doctor). Devuelve cuántos revocó; un error a mitad de camino se reporta
// (el caller reintenta: un grant activo colgado es un riesgo de seguridad,
// no un detalle).
func (s *Service) RevokeFor(ctx context.Context, patientID, doctorID string) (int, error) {
	patientID = strings.TrimSpace(patientID)
	doctorID = strings.TrimSpace(doctorID)
	if patientID == "" || doctorID == "" {
		return 0, ErrInvalidInput
	}

	items, err := s.repo.ListByPair(ctx, patientID, doctorID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	revoked := 0
	for _, g := range items {
		if g.Status != StatusActive {
			continue
		}
		g.Status = StatusRevoked
		g.RevokedAt = &now

		if err := s.repo.Update(ctx, g); err != nil {
			s.log.Error("grant revocation failed", map[string]any{
				"grant_id":   g.ID,
				"patient_id": patientID,
				"doctor_id":  doctorID,
				"error":      err.Error(),
			})
			return revoked, err
		}
		revoked++
		s.metrics.ObserveGrantRevoked()
	}
	return revoked, nil
}

// IsAuthorized responde si el doctor tiene hoy un acceso vigente del tipo
// pedido sobre el paciente: existe grant activo, tipo igual o `all`, y
// at <= ExpiresAt. La expiración se computa acá siempre; el status
// almacenado solo no alcanza.
func (s *Service) IsAuthorized(ctx context.Context, patientID, doctorID string, accessType AccessType, at time.Time) (bool, error) {
	patientID = strings.TrimSpace(patientID)
	doctorID = strings.TrimSpace(doctorID)
	if patientID == "" || doctorID == "" || !ValidAccessType(accessType) {
		return false, ErrInvalidInput
	}
	if at.IsZero() {
		at = s.now()
	}

	items, err := s.repo.ListByPair(ctx, patientID, doctorID)
	if err != nil {
		return false, err
	}

	for _, g := range items {
		if g.Status != StatusActive {
			continue
		}
		if g.AccessType != accessType && g.AccessType != AccessAll {
			continue
		}
		if at.After(g.ExpiresAt) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Grant, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID string) ([]Grant, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByDoctor(ctx, doctorID)
}
