package schedule

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"patient-portal/internal/observability/metrics"
	"patient-portal/internal/platform/logger"
	"patient-portal/internal/platform/timewindow"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("schedule conflict")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrBadState     = errors.New("invalid state")
)

type Service struct {
	repo    Repository
	grid    GridConfig
	log     logger.Logger
	metrics *metrics.PortalMetrics
	now     func() time.Time
}

func NewService(repo Repository, grid GridConfig, log logger.Logger, m *metrics.PortalMetrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:    repo,
		grid:    grid,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

func (s *Service) Grid() GridConfig { return s.grid }

// Availability calcula la grilla del día para un doctor.
// Lee busy del repo y delega en AvailableSlots (pura).
func (s *Service) Availability(ctx context.Context, day time.Time, durationMinutes int, doctorID string) ([]Slot, error) {
	doctorID = strings.TrimSpace(doctorID)
	if day.IsZero() {
		return nil, ErrInvalidInput
	}

	busy, err := s.dayBusy(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}
	return AvailableSlots(s.grid, day, durationMinutes, doctorID, busy)
}

type BookInput struct {
	DoctorID        string
	PatientID       string
	Start           time.Time
	DurationMinutes int
	Reason          string
	Notes           string
}

// Book agenda una consulta. El chequeo de solape se corre acá contra datos
// recién leídos: es el chequeo autoritativo, aunque la UI ya haya validado el
// slot al seleccionarlo. El último chequeo antes del commit gana.
func (s *Service) Book(ctx context.Context, in BookInput) (Consultation, error) {
	doctorID := strings.TrimSpace(in.DoctorID)
	patientID := strings.TrimSpace(in.PatientID)

	if doctorID == "" || patientID == "" || in.Start.IsZero() || in.DurationMinutes <= 0 {
		return Consultation{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Reason) == "" {
		return Consultation{}, ErrInvalidInput
	}

	c := Consultation{
		ID:              uuid.NewString(),
		DoctorID:        doctorID,
		PatientID:       &patientID,
		Start:           in.Start,
		DurationMinutes: in.DurationMinutes,
		Kind:            KindAppointment,
		Reason:          strings.TrimSpace(in.Reason),
		Notes:           strings.TrimSpace(in.Notes),
		Status:          StatusScheduled,
	}

	return s.persistNew(ctx, c)
}

type BlockInput struct {
	DoctorID        string
	Start           time.Time
	DurationMinutes int
	Reason          string
}

// BlockTime crea un intervalo bloqueado del doctor (fila sin paciente).
func (s *Service) BlockTime(ctx context.Context, in BlockInput) (Consultation, error) {
	doctorID := strings.TrimSpace(in.DoctorID)
	if doctorID == "" || in.Start.IsZero() || in.DurationMinutes <= 0 {
		return Consultation{}, ErrInvalidInput
	}

	c := Consultation{
		ID:              uuid.NewString(),
		DoctorID:        doctorID,
		PatientID:       nil,
		Start:           in.Start,
		DurationMinutes: in.DurationMinutes,
		Kind:            KindBlocked,
		Reason:          strings.TrimSpace(in.Reason),
		Status:          StatusScheduled,
	}

	return s.persistNew(ctx, c)
}

func (s *Service) persistNew(ctx context.Context, c Consultation) (Consultation, error) {
	busy, err := s.dayBusy(ctx, c.DoctorID, c.Start)
	if err != nil {
		return Consultation{}, err
	}

	if CheckConflict(c.Interval(), c.DoctorID, busy, "") {
		s.metrics.ObserveBookingConflict()
		s.metrics.ObserveBooking("conflict")
		return Consultation{}, ErrConflict
	}

	now := s.now()
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := s.repo.Create(ctx, c); err != nil {
		// El store puede cerrar la ventana de carrera con su exclusion
		// constraint; ese rechazo llega como ErrConflict del adapter.
		if errors.Is(err, ErrConflict) {
			s.metrics.ObserveBookingConflict()
			s.metrics.ObserveBooking("conflict")
			return Consultation{}, ErrConflict
		}
		s.metrics.ObserveBooking("error")
		return Consultation{}, err
	}

	s.metrics.ObserveBooking("booked")
	s.log.Info("consultation persisted", map[string]any{
		"consultation_id": c.ID,
		"doctor_id":       c.DoctorID,
		"kind":            string(c.Kind),
	})
	return c, nil
}

type RescheduleInput struct {
	Start           time.Time
	DurationMinutes int
}

// Reschedule mueve una consulta existente. El guard excluye la propia fila
// para que la edición no conflictúe consigo misma.
func (s *Service) Reschedule(ctx context.Context, id string, in RescheduleInput) (Consultation, error) {
	id = strings.TrimSpace(id)
	if id == "" || in.Start.IsZero() || in.DurationMinutes <= 0 {
		return Consultation{}, ErrInvalidInput
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Consultation{}, ErrNotFound
	}
	if c.Status != StatusScheduled {
		return Consultation{}, ErrBadState
	}

	candidate := timewindow.Interval{
		Start: in.Start,
		End:   timewindow.AddMinutes(in.Start, in.DurationMinutes),
	}

	busy, err := s.dayBusy(ctx, c.DoctorID, in.Start)
	if err != nil {
		return Consultation{}, err
	}
	if CheckConflict(candidate, c.DoctorID, busy, c.ID) {
		s.metrics.ObserveBookingConflict()
		return Consultation{}, ErrConflict
	}

	c.Start = in.Start
	c.DurationMinutes = in.DurationMinutes
	c.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, c); err != nil {
		if errors.Is(err, ErrConflict) {
			s.metrics.ObserveBookingConflict()
			return Consultation{}, ErrConflict
		}
		return Consultation{}, err
	}
	return c, nil
}

// Cancel marca la consulta como cancelada; deja de bloquear agenda.
// Idempotente.
func (s *Service) Cancel(ctx context.Context, id string) (Consultation, error) {
	return s.setStatus(ctx, id, StatusCancelled)
}

// Complete marca la consulta como completada. Sigue bloqueando el intervalo
// (ya ocurrió; el pasado no se re-agenda).
func (s *Service) Complete(ctx context.Context, id string) (Consultation, error) {
	return s.setStatus(ctx, id, StatusCompleted)
}

func (s *Service) setStatus(ctx context.Context, id string, to Status) (Consultation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Consultation{}, ErrInvalidInput
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Consultation{}, ErrNotFound
	}

	if c.Status == to {
		return c, nil
	}
	if c.Status != StatusScheduled {
		return Consultation{}, ErrBadState
	}

	c.Status = to
	c.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, c); err != nil {
		return Consultation{}, err
	}
	return c, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Consultation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Consultation{}, ErrInvalidInput
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Consultation{}, ErrNotFound
	}
	return c, nil
}

func (s *Service) ListForDoctorDay(ctx context.Context, doctorID string, day time.Time) ([]Consultation, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" || day.IsZero() {
		return nil, ErrInvalidInput
	}
	from, to := s.dayBounds(day)
	return s.repo.ListByDoctorBetween(ctx, doctorID, from, to)
}

func (s *Service) ListForPatientDay(ctx context.Context, patientID string, day time.Time) ([]Consultation, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" || day.IsZero() {
		return nil, ErrInvalidInput
	}
	from, to := s.dayBounds(day)
	return s.repo.ListByPatientBetween(ctx, patientID, from, to)
}

// dayBusy trae las entradas ocupadas del día civil completo del doctor.
// Día completo y no solo la ventana de atención: un bloqueo fuera de horario
// igual debe contar si una duración larga lo alcanza.
func (s *Service) dayBusy(ctx context.Context, doctorID string, day time.Time) ([]BusyEntry, error) {
	from, to := s.dayBounds(day)
	items, err := s.repo.ListByDoctorBetween(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	return BusyEntriesOf(items), nil
}

func (s *Service) dayBounds(day time.Time) (time.Time, time.Time) {
	loc := s.grid.location()
	y, m, d := day.In(loc).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, 1)
}
