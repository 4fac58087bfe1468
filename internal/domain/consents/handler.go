package consents

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"patient-portal/internal/middleware"
	"patient-portal/internal/ports/auth"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/consents", func(cr chi.Router) {
		cr.Post("/", createConsentHandler(svc))
		cr.Get("/{consentID}", getConsentHandler(svc))
		cr.Post("/{consentID}/approve", approveConsentHandler(svc))
		cr.Post("/{consentID}/deny", denyConsentHandler(svc))
		cr.Post("/{consentID}/revoke", revokeConsentHandler(svc))
	})

	r.Get("/patients/me/consents", listPatientConsentsHandler(svc))
	r.Get("/doctors/me/consents", listRequesterConsentsHandler(svc))
}

type createConsentRequest struct {
	PatientID    string     `json:"patient_id"`
	Purpose      string     `json:"purpose"`
	Message      string     `json:"message"`
	DataTypes    []DataType `json:"data_types" enums:"view_records,view_prescriptions,view_consultation_notes,all"`
	DurationDays int        `json:"duration_days"`
}

type consentResponse struct {
	ID           string     `json:"id"`
	PatientID    string     `json:"patient_id"`
	RequesterID  string     `json:"requester_id"`
	Purpose      string     `json:"purpose"`
	Message      string     `json:"message,omitempty"`
	DataTypes    []DataType `json:"data_types"`
	DurationDays int        `json:"duration_days"`
	Status       Status     `json:"status"`
	RequestedAt  time.Time  `json:"requested_at"`
	RespondedAt  *time.Time `json:"responded_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// createConsentHandler godoc
// @Summary Solicitar consentimiento
// @Description Un doctor solicita acceso a tipos de datos de un paciente. Arranca en pending.
// @Tags consents
// @Accept json
// @Produce json
// @Param payload body createConsentRequest true "Solicitud"
// @Success 201 {object} consentResponse
// @Failure 400 {string} string "validación"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "solo doctores solicitan"
// @Router /consents [post]
func createConsentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RoleDoctor {
			http.Error(w, "only doctors can request consent", http.StatusForbidden)
			return
		}

		var req createConsentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		c, err := svc.Create(r.Context(), CreateInput{
			PatientID:    req.PatientID,
			RequesterID:  claims.UserID,
			Purpose:      req.Purpose,
			Message:      req.Message,
			DataTypes:    req.DataTypes,
			DurationDays: req.DurationDays,
		})
		if err != nil {
			writeConsentError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toConsentResponse(c))
	}
}

func getConsentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		c, err := svc.GetByID(r.Context(), chi.URLParam(r, "consentID"))
		if err != nil {
			writeConsentError(w, err)
			return
		}

		// Solo las dos partes ven la solicitud.
		if claims.UserID != c.PatientID && claims.UserID != c.RequesterID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		writeJSON(w, http.StatusOK, toConsentResponse(c))
	}
}

// approveConsentHandler godoc
// @Summary Aprobar consentimiento
// @Description El paciente aprueba la solicitud: se crean los access grants derivados, uno por tipo pedido.
// @Tags consents
// @Produce json
// @Param consentID path string true "ID de la solicitud"
// @Success 200 {object} consentResponse
// @Failure 409 {string} string "la solicitud ya fue respondida"
// @Failure 502 {string} string "no se pudo crear ningún grant; la solicitud vuelve a pending"
// @Router /consents/{consentID}/approve [post]
func approveConsentHandler(svc *Service) http.HandlerFunc {
	return patientAction(svc, func(s *Service, r *http.Request, id, patientID string) (Request, error) {
		return s.Approve(r.Context(), id, patientID)
	})
}

func denyConsentHandler(svc *Service) http.HandlerFunc {
	return patientAction(svc, func(s *Service, r *http.Request, id, patientID string) (Request, error) {
		return s.Deny(r.Context(), id, patientID)
	})
}

// revokeConsentHandler godoc
// @Summary Revocar consentimiento aprobado
// @Description Revoca el consentimiento y cascadea la revocación a todos los grants del par. Si la revocación de grants queda incompleta responde 502 y el caller debe reintentar.
// @Tags consents
// @Produce json
// @Param consentID path string true "ID de la solicitud"
// @Success 200 {object} consentResponse
// @Failure 409 {string} string "solo approved se puede revocar"
// @Router /consents/{consentID}/revoke [post]
func revokeConsentHandler(svc *Service) http.HandlerFunc {
	return patientAction(svc, func(s *Service, r *http.Request, id, patientID string) (Request, error) {
		return s.Revoke(r.Context(), id, patientID)
	})
}

func patientAction(svc *Service, fn func(*Service, *http.Request, string, string) (Request, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RolePatient {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		c, err := fn(svc, r, chi.URLParam(r, "consentID"), claims.UserID)
		if err != nil {
			writeConsentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toConsentResponse(c))
	}
}

func listPatientConsentsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RolePatient {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		items, err := svc.ListByPatient(r.Context(), claims.UserID)
		if err != nil {
			writeConsentError(w, err)
			return
		}
		writeConsentList(w, items)
	}
}

func listRequesterConsentsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RoleDoctor {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		items, err := svc.ListByRequester(r.Context(), claims.UserID)
		if err != nil {
			writeConsentError(w, err)
			return
		}
		writeConsentList(w, items)
	}
}

func writeConsentList(w http.ResponseWriter, items []Request) {
	out := make([]consentResponse, 0, len(items))
	for _, c := range items {
		out = append(out, toConsentResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func toConsentResponse(c Request) consentResponse {
	return consentResponse{
		ID:           c.ID,
		PatientID:    c.PatientID,
		RequesterID:  c.RequesterID,
		Purpose:      c.Purpose,
		Message:      c.Message,
		DataTypes:    c.DataTypes,
		DurationDays: c.DurationDays,
		Status:       c.Status,
		RequestedAt:  c.RequestedAt,
		RespondedAt:  c.RespondedAt,
		ExpiresAt:    c.ExpiresAt,
	}
}

func writeConsentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrBadState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrGrantCreation), errors.Is(err, ErrGrantRevocation):
		// Falla de backend, no del usuario: se distingue de validación.
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, "temporary backend error, retry", http.StatusBadGateway)
	}
}

// writeJSON duplicado a propósito por módulo (ver nota en schedule/handler.go).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
