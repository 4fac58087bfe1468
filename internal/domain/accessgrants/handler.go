package accessgrants

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"patient-portal/internal/middleware"
	"patient-portal/internal/ports/auth"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	// Solo lectura: los grants se crean/revocan a través del ciclo de vida
	// del consentimiento, nunca por acción directa sobre este módulo.
	r.Get("/patients/me/grants", listMyGrantsHandler(svc))
	r.Get("/doctors/me/grants", listDoctorGrantsHandler(svc))
}

type grantResponse struct {
	ID         string     `json:"id"`
	PatientID  string     `json:"patient_id"`
	DoctorID   string     `json:"doctor_id"`
	AccessType AccessType `json:"access_type"`
	Status     Status     `json:"status"`
	GrantedAt  time.Time  `json:"granted_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// listMyGrantsHandler godoc
// @Summary Grants emitidos sobre mis datos
// @Description Lista los accesos (activos y revocados) que el paciente autenticado otorgó vía consentimientos.
// @Tags accessgrants
// @Produce json
// @Success 200 {array} grantResponse
// @Failure 401 {string} string "unauthorized"
// @Router /patients/me/grants [get]
func listMyGrantsHandler(svc *Service) http.HandlerFunc {
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
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeGrantList(w, items)
	}
}

func listDoctorGrantsHandler(svc *Service) http.HandlerFunc {
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

		items, err := svc.ListByDoctor(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeGrantList(w, items)
	}
}

func writeGrantList(w http.ResponseWriter, items []Grant) {
	out := make([]grantResponse, 0, len(items))
	for _, g := range items {
		out = append(out, grantResponse{
			ID:         g.ID,
			PatientID:  g.PatientID,
			DoctorID:   g.DoctorID,
			AccessType: g.AccessType,
			Status:     g.Status,
			GrantedAt:  g.GrantedAt,
			ExpiresAt:  g.ExpiresAt,
			RevokedAt:  g.RevokedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// writeJSON duplicado a propósito por módulo (ver nota en schedule/handler.go).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
