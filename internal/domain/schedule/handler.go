package schedule

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"patient-portal/internal/middleware"
	"patient-portal/internal/ports/auth"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/doctors/{doctorID}", func(dr chi.Router) {
		dr.Get("/availability", availabilityHandler(svc))
		dr.Get("/consultations", listDoctorDayHandler(svc))
		dr.Post("/blocks", blockTimeHandler(svc))
	})

	r.Route("/consultations", func(cr chi.Router) {
		cr.Post("/", bookHandler(svc))
		cr.Get("/{consultationID}", getConsultationHandler(svc))
		cr.Patch("/{consultationID}", rescheduleHandler(svc))
		cr.Post("/{consultationID}/cancel", cancelHandler(svc))
		cr.Post("/{consultationID}/complete", completeHandler(svc))
	})
}

type slotResponse struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

type bookRequest struct {
	DoctorID        string `json:"doctor_id"`
	Start           string `json:"start"` // RFC3339
	DurationMinutes int    `json:"duration_minutes"`
	Reason          string `json:"reason"`
	Notes           string `json:"notes"`
}

type blockRequest struct {
	Start           string `json:"start"` // RFC3339
	DurationMinutes int    `json:"duration_minutes"`
	Reason          string `json:"reason"`
}

type rescheduleRequest struct {
	Start           string `json:"start"` // RFC3339
	DurationMinutes int    `json:"duration_minutes"`
}

type consultationResponse struct {
	ID              string    `json:"id"`
	DoctorID        string    `json:"doctor_id"`
	PatientID       *string   `json:"patient_id,omitempty"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
	Kind            Kind      `json:"kind"`
	Reason          string    `json:"reason"`
	Notes           string    `json:"notes,omitempty"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// availabilityHandler godoc
// @Summary Disponibilidad de un doctor
// @Description Grilla de slots del día para el doctor, marcando cuáles se pueden reservar con la duración pedida.
// @Tags schedule
// @Produce json
// @Param doctorID path string true "ID del doctor"
// @Param date query string true "Día (YYYY-MM-DD)"
// @Param duration query int false "Duración en minutos (default: granularidad de la grilla)"
// @Success 200 {array} slotResponse
// @Failure 400 {string} string "date inválida / duration inválida"
// @Router /doctors/{doctorID}/availability [get]
func availabilityHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := chi.URLParam(r, "doctorID")

		day, err := parseDay(r.URL.Query().Get("date"), svc.Grid().location())
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		duration := svc.Grid().SlotMinutes
		if raw := strings.TrimSpace(r.URL.Query().Get("duration")); raw != "" {
			duration, err = strconv.Atoi(raw)
			if err != nil || duration <= 0 {
				http.Error(w, "duration must be a positive integer", http.StatusBadRequest)
				return
			}
		}

		slots, err := svc.Availability(r.Context(), day, duration, doctorID)
		if err != nil {
			writeScheduleError(w, err)
			return
		}

		out := make([]slotResponse, 0, len(slots))
		for _, s := range slots {
			out = append(out, slotResponse{
				Start:     s.Interval.Start,
				End:       s.Interval.End,
				Available: s.Available,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// bookHandler godoc
// @Summary Reservar consulta
// @Description Agenda una consulta para el paciente autenticado. El solape se re-valida contra datos frescos al persistir; un 409 acá es la respuesta autoritativa aunque la UI haya mostrado el slot libre.
// @Tags schedule
// @Accept json
// @Produce json
// @Param payload body bookRequest true "Datos de la reserva; start en RFC3339"
// @Success 201 {object} consultationResponse
// @Failure 400 {string} string "validación"
// @Failure 401 {string} string "unauthorized"
// @Failure 409 {string} string "slot ya ocupado"
// @Router /consultations [post]
func bookHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RolePatient {
			http.Error(w, "only patients can book consultations", http.StatusForbidden)
			return
		}

		var req bookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			http.Error(w, "start must be RFC3339", http.StatusBadRequest)
			return
		}

		c, err := svc.Book(r.Context(), BookInput{
			DoctorID:        req.DoctorID,
			PatientID:       claims.UserID,
			Start:           start,
			DurationMinutes: req.DurationMinutes,
			Reason:          req.Reason,
			Notes:           req.Notes,
		})
		if err != nil {
			writeScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toConsultationResponse(c))
	}
}

// blockTimeHandler godoc
// @Summary Bloquear agenda
// @Description Crea un intervalo bloqueado para el doctor autenticado (sin paciente).
// @Tags schedule
// @Accept json
// @Produce json
// @Param doctorID path string true "ID del doctor"
// @Param payload body blockRequest true "Intervalo a bloquear"
// @Success 201 {object} consultationResponse
// @Failure 403 {string} string "forbidden"
// @Failure 409 {string} string "solapa con agenda existente"
// @Router /doctors/{doctorID}/blocks [post]
func blockTimeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		doctorID := chi.URLParam(r, "doctorID")

		// Solo el propio doctor bloquea su agenda.
		if claims.Role != auth.RoleDoctor || claims.UserID != doctorID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		var req blockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			http.Error(w, "start must be RFC3339", http.StatusBadRequest)
			return
		}

		c, err := svc.BlockTime(r.Context(), BlockInput{
			DoctorID:        doctorID,
			Start:           start,
			DurationMinutes: req.DurationMinutes,
			Reason:          req.Reason,
		})
		if err != nil {
			writeScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toConsultationResponse(c))
	}
}

func listDoctorDayHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		doctorID := chi.URLParam(r, "doctorID")
		if claims.Role != auth.RoleDoctor || claims.UserID != doctorID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		day, err := parseDay(r.URL.Query().Get("date"), svc.Grid().location())
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		items, err := svc.ListForDoctorDay(r.Context(), doctorID, day)
		if err != nil {
			writeScheduleError(w, err)
			return
		}

		out := make([]consultationResponse, 0, len(items))
		for _, c := range items {
			out = append(out, toConsultationResponse(c))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getConsultationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		c, err := svc.GetByID(r.Context(), chi.URLParam(r, "consultationID"))
		if err != nil {
			writeScheduleError(w, err)
			return
		}

		if !canSeeConsultation(claims, c) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		writeJSON(w, http.StatusOK, toConsultationResponse(c))
	}
}

// rescheduleHandler godoc
// @Summary Reprogramar consulta
// @Description Mueve una consulta existente. La propia fila queda excluida del guard de solapes (editar no conflictúa consigo mismo).
// @Tags schedule
// @Accept json
// @Produce json
// @Param consultationID path string true "ID de la consulta"
// @Param payload body rescheduleRequest true "Nuevo horario"
// @Success 200 {object} consultationResponse
// @Failure 409 {string} string "nuevo horario ocupado"
// @Router /consultations/{consultationID} [patch]
func rescheduleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		id := chi.URLParam(r, "consultationID")

		existing, err := svc.GetByID(r.Context(), id)
		if err != nil {
			writeScheduleError(w, err)
			return
		}
		if !canEditConsultation(claims, existing) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		var req rescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			http.Error(w, "start must be RFC3339", http.StatusBadRequest)
			return
		}

		c, err := svc.Reschedule(r.Context(), id, RescheduleInput{
			Start:           start,
			DurationMinutes: req.DurationMinutes,
		})
		if err != nil {
			writeScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toConsultationResponse(c))
	}
}

func cancelHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		id := chi.URLParam(r, "consultationID")

		existing, err := svc.GetByID(r.Context(), id)
		if err != nil {
			writeScheduleError(w, err)
			return
		}
		if !canEditConsultation(claims, existing) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		c, err := svc.Cancel(r.Context(), id)
		if err != nil {
			writeScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toConsultationResponse(c))
	}
}

func completeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		id := chi.URLParam(r, "consultationID")

		existing, err := svc.GetByID(r.Context(), id)
		if err != nil {
			writeScheduleError(w, err)
			return
		}
		// Completar es acción del doctor.
		if claims.Role != auth.RoleDoctor || claims.UserID != existing.DoctorID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		c, err := svc.Complete(r.Context(), id)
		if err != nil {
			writeScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toConsultationResponse(c))
	}
}

func canSeeConsultation(claims auth.Claims, c Consultation) bool {
	if claims.Role == auth.RoleDoctor {
		return claims.UserID == c.DoctorID
	}
	return c.PatientID != nil && *c.PatientID == claims.UserID
}

func canEditConsultation(claims auth.Claims, c Consultation) bool {
	// Paciente dueño o doctor dueño; bloqueos solo el doctor.
	return canSeeConsultation(claims, c)
}

func toConsultationResponse(c Consultation) consultationResponse {
	iv := c.Interval()
	return consultationResponse{
		ID:              c.ID,
		DoctorID:        c.DoctorID,
		PatientID:       c.PatientID,
		Start:           iv.Start,
		End:             iv.End,
		DurationMinutes: c.DurationMinutes,
		Kind:            c.Kind,
		Reason:          c.Reason,
		Notes:           c.Notes,
		Status:          c.Status,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// writeScheduleError separa las clases de error:
// validación (400) != conflicto (409, accionable) != backend transitorio (502).
func writeScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidGrid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrConflict):
		http.Error(w, "the selected time is no longer available", http.StatusConflict)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrBadState):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "temporary backend error, retry", http.StatusBadGateway)
	}
}

func parseDay(raw string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), loc)
}

// writeJSON está duplicado en los handlers de cada módulo a propósito,
// igual que en el resto del repo: todavía no amerita un helper compartido.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
