package consents

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
	ErrInvalidInput    = errors.New("invalid input")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrBadState        = errors.New("invalid state")
	ErrGrantCreation   = errors.New("no access grant could be created")
	ErrGrantRevocation = errors.New("grant revocation incomplete, retry")
)

// GrantStore es lo que consents necesita del módulo accessgrants.
// La interfaz vive acá para no importar el paquete (rompe ciclos), igual que
// PetOwnerLookup en el esqueleto original de grants.
type GrantStore interface {
	CreateGrant(ctx context.Context, patientID, doctorID string, dataType DataType, expiresAt time.Time) error
	RevokeGrants(ctx context.Context, patientID, doctorID string) error
}

const (
	minDurationDays = 1
	maxDurationDays = 365
)

type Service struct {
	repo    Repository
	grants  GrantStore
	log     logger.Logger
	metrics *metrics.PortalMetrics
	now     func() time.Time
}

func NewService(repo Repository, grants GrantStore, log logger.Logger, m *metrics.PortalMetrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:    repo,
		grants:  grants,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

type CreateInput struct {
	PatientID    string
	RequesterID  string
	Purpose      string
	Message      string
	DataTypes    []DataType
	DurationDays int
}

// Create registra una solicitud en pending.
func (s *Service) Create(ctx context.Context, in CreateInput) (Request, error) {
	patientID := strings.TrimSpace(in.PatientID)
	requesterID := strings.TrimSpace(in.RequesterID)

	if patientID == "" || requesterID == "" || patientID == requesterID {
		return Request{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Purpose) == "" {
		return Request{}, ErrInvalidInput
	}
	if in.DurationDays < minDurationDays || in.DurationDays > maxDurationDays {
		return Request{}, ErrInvalidInput
	}

	dataTypes, err := normalizeDataTypes(in.DataTypes)
	if err != nil {
		return Request{}, err
	}

	r := Request{
		ID:           uuid.NewString(),
		PatientID:    patientID,
		RequesterID:  requesterID,
		Purpose:      strings.TrimSpace(in.Purpose),
		Message:      strings.TrimSpace(in.Message),
		DataTypes:    dataTypes,
		DurationDays: in.DurationDays,
		Status:       StatusPending,
		RequestedAt:  s.now(),
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return Request{}, err
	}
	s.metrics.ObserveConsentTransition(string(StatusPending))
	return r, nil
}

// Approve: pending -> approved. Crea un grant por cada data type pedido.
//
// Política de falla parcial: un data type que falla se loguea y se sigue con
// el resto. Pero "approved con cero grants" sería inconsistente, así que si
// ninguno se pudo crear, el request vuelve a pending y se devuelve
// ErrGrantCreation.
func (s *Service) Approve(ctx context.Context, id, patientID string) (Request, error) {
	r, err := s.loadForResponse(ctx, id, patientID)
	if err != nil {
		return Request{}, err
	}

	now := s.now()
	expiresAt := now.AddDate(0, 0, r.DurationDays)

	r.Status = StatusApproved
	r.RespondedAt = &now
	r.ExpiresAt = &expiresAt

	// Persistimos primero la aprobación; si los grants fallan todos,
	// compensamos volviendo a pending (el store no nos da transacción
	// multi-fila entre tablas).
	if err := s.repo.Update(ctx, r); err != nil {
		return Request{}, err
	}

	created := 0
	for _, dt := range r.DataTypes {
		if err := s.grants.CreateGrant(ctx, r.PatientID, r.RequesterID, dt, expiresAt); err != nil {
			s.log.Error("grant creation failed for data type", map[string]any{
				"consent_id": r.ID,
				"data_type":  string(dt),
				"error":      err.Error(),
			})
			continue
		}
		created++
	}

	if created == 0 {
		// Compensación: sin ningún grant no hay aprobación válida.
		r.Status = StatusPending
		r.RespondedAt = nil
		r.ExpiresAt = nil
		if rbErr := s.repo.Update(ctx, r); rbErr != nil {
			s.log.Error("rollback to pending failed", map[string]any{
				"consent_id": r.ID,
				"error":      rbErr.Error(),
			})
		}
		return Request{}, ErrGrantCreation
	}

	if created < len(r.DataTypes) {
		s.log.Warn("consent approved with partial grants", map[string]any{
			"consent_id": r.ID,
			"created":    created,
			"requested":  len(r.DataTypes),
		})
	}

	s.metrics.ObserveConsentTransition(string(StatusApproved))
	return r, nil
}

// Deny: pending -> denied. No se crea ningún grant. Terminal.
func (s *Service) Deny(ctx context.Context, id, patientID string) (Request, error) {
	r, err := s.loadForResponse(ctx, id, patientID)
	if err != nil {
		return Request{}, err
	}

	now := s.now()
	r.Status = StatusDenied
	r.RespondedAt = &now

	if err := s.repo.Update(ctx, r); err != nil {
		return Request{}, err
	}
	s.metrics.ObserveConsentTransition(string(StatusDenied))
	return r, nil
}

// Revoke: approved -> revoked. Operación en dos pasos: primero el request,
// después los grants. Si el segundo paso falla, el consentimiento ya quedó
// revocado y se devuelve ErrGrantRevocation: el caller DEBE reintentar hasta
// que los grants queden revocados; un grant activo colgado es un riesgo de
// seguridad, no se sigue en silencio.
func (s *Service) Revoke(ctx context.Context, id, patientID string) (Request, error) {
	id = strings.TrimSpace(id)
	patientID = strings.TrimSpace(patientID)
	if id == "" || patientID == "" {
		return Request{}, ErrInvalidInput
	}

	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Request{}, ErrNotFound
	}
	if r.PatientID != patientID {
		return Request{}, ErrForbidden
	}

	// Revocable solo desde approved. Un approved ya vencido también se puede
	// revocar explícitamente (limpia los grants); pending/denied no.
	// Sobre un revoked, el mismo endpoint reintenta el segundo paso: así un
	// 502 de revocación de grants se resuelve repitiendo el POST.
	if r.Status == StatusRevoked {
		if err := s.RetryGrantRevocation(ctx, r.ID); err != nil {
			return r, err
		}
		return r, nil
	}
	if r.Status != StatusApproved {
		return Request{}, ErrBadState
	}

	r.Status = StatusRevoked

	if err := s.repo.Update(ctx, r); err != nil {
		return Request{}, err
	}
	s.metrics.ObserveConsentTransition(string(StatusRevoked))

	if err := s.grants.RevokeGrants(ctx, r.PatientID, r.RequesterID); err != nil {
		s.log.Error("grant revocation failed after consent revoke", map[string]any{
			"consent_id": r.ID,
			"error":      err.Error(),
		})
		return r, ErrGrantRevocation
	}
	return r, nil
}

// RetryGrantRevocation reintenta la revocación de grants de un consentimiento
// ya revocado (segundo paso de Revoke que quedó colgado).
func (s *Service) RetryGrantRevocation(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidInput
	}
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if r.Status != StatusRevoked {
		return ErrBadState
	}
	if err := s.grants.RevokeGrants(ctx, r.PatientID, r.RequesterID); err != nil {
		return ErrGrantRevocation
	}
	return nil
}

// GetByID devuelve la solicitud con el status efectivo ya derivado.
func (s *Service) GetByID(ctx context.Context, id string) (Request, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Request{}, ErrInvalidInput
	}
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Request{}, ErrNotFound
	}
	r.Status = EffectiveStatus(r, s.now())
	return r, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Request, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.withEffectiveStatus(items), nil
}

func (s *Service) ListByRequester(ctx context.Context, requesterID string) ([]Request, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return nil, ErrInvalidInput
	}
	items, err := s.repo.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	return s.withEffectiveStatus(items), nil
}

func (s *Service) withEffectiveStatus(items []Request) []Request {
	now := s.now()
	out := make([]Request, 0, len(items))
	for _, r := range items {
		r.Status = EffectiveStatus(r, now)
		out = append(out, r)
	}
	return out
}

// loadForResponse valida que la solicitud exista, pertenezca al paciente y
// siga en pending (responder es una acción única: sin resurrección desde
// denied/revoked/expired).
func (s *Service) loadForResponse(ctx context.Context, id, patientID string) (Request, error) {
	id = strings.TrimSpace(id)
	patientID = strings.TrimSpace(patientID)
	if id == "" || patientID == "" {
		return Request{}, ErrInvalidInput
	}

	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Request{}, ErrNotFound
	}
	if r.PatientID != patientID {
		return Request{}, ErrForbidden
	}
	if r.Status != StatusPending {
		return Request{}, ErrBadState
	}
	return r, nil
}

func normalizeDataTypes(in []DataType) ([]DataType, error) {
	if len(in) == 0 {
		return nil, ErrInvalidInput
	}

	seen := map[DataType]struct{}{}
	out := make([]DataType, 0, len(in))

	for _, raw := range in {
		dt := DataType(strings.TrimSpace(string(raw)))
		if dt == "" {
			continue
		}
		if !ValidDataType(dt) {
			return nil, ErrInvalidInput
		}
		if _, ok := seen[dt]; ok {
			continue
		}
		seen[dt] = struct{}{}
		out = append(out, dt)
	}

	if len(out) == 0 {
		return nil, ErrInvalidInput
	}
	return out, nil
}
