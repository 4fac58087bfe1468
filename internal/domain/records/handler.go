package records

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"patient-portal/internal/middleware"
	"patient-portal/internal/ports/auth"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Post("/records", createRecordHandler(svc))
	r.Get("/records/{recordID}", viewRecordHandler(svc))
	r.Get("/records/{recordID}/legacy", exportLegacyHandler(svc))
	r.Get("/patients/me/records", listMyRecordsHandler(svc))
	r.Get("/patients/{patientID}/records", listPatientRecordsHandler(svc))
}

type createRecordRequest struct {
	PatientID string   `json:"patient_id"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Summary   string   `json:"summary"`
	Tags      []string `json:"tags"`
}

type recordResponse struct {
	ID        string   `json:"id"`
	PatientID string   `json:"patient_id"`
	DoctorID  string   `json:"doctor_id"`
	Title     string   `json:"title"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"created_at"`
}

type viewResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	View  View   `json:"view"`
}

// createRecordHandler godoc
// @Summary      Registrar un documento clínico
// @Description  Solo médicos. La metadata de identidad se completa desde el directorio.
// @Tags         records
// @Accept       json
// @Produce      json
// @Param        payload  body  createRecordRequest  true  "Documento"
// @Success      201  {object}  recordResponse
// @Failure      400  {object}  map[string]string
// @Router       /records [post]
func createRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || claims.Role != auth.RoleDoctor {
			writeRecordsError(w, ErrForbidden)
			return
		}
		var req createRecordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeRecordsError(w, ErrInvalidInput)
			return
		}
		rec, err := svc.Create(r.Context(), CreateInput{
			PatientID: req.PatientID,
			DoctorID:  claims.UserID,
			Title:     req.Title,
			Body:      req.Body,
			Meta:      RecordMeta{Summary: req.Summary},
			Tags:      req.Tags,
		})
		if err != nil {
			writeRecordsError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toRecordResponse(rec))
	}
}

// viewRecordHandler godoc
// @Summary      Ver un documento clínico
// @Description  El titular recibe la vista completa; un médico autorizado recibe la vista de-identificada.
// @Tags         records
// @Produce      json
// @Param        recordID  path  string  true  "ID del documento"
// @Success      200  {object}  viewResponse
// @Failure      403  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /records/{recordID} [get]
func viewRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			writeRecordsError(w, ErrForbidden)
			return
		}
		view, rec, err := svc.View(r.Context(), chi.URLParam(r, "recordID"), claims.UserID, claims.Role == auth.RoleDoctor)
		if err != nil {
			writeRecordsError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewResponse{ID: rec.ID, Title: rec.Title, View: *view})
	}
}

func exportLegacyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || claims.Role != auth.RolePatient {
			writeRecordsError(w, ErrForbidden)
			return
		}
		packed, err := svc.ExportLegacy(r.Context(), chi.URLParam(r, "recordID"), claims.UserID)
		if err != nil {
			writeRecordsError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"description": packed})
	}
}

func listMyRecordsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || claims.Role != auth.RolePatient {
			writeRecordsError(w, ErrForbidden)
			return
		}
		items, err := svc.ListByPatient(r.Context(), claims.UserID, claims.UserID, false)
		if err != nil {
			writeRecordsError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// listPatientRecordsHandler godoc
// @Summary      Listar documentos de un paciente
// @Description  Proyección sin contenido. Un médico necesita un grant activo.
// @Tags         records
// @Produce      json
// @Param        patientID  path  string  true  "ID del paciente"
// @Success      200  {array}  ListItem
// @Failure      403  {object}  map[string]string
// @Router       /patients/{patientID}/records [get]
func listPatientRecordsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			writeRecordsError(w, ErrForbidden)
			return
		}
		items, err := svc.ListByPatient(r.Context(), chi.URLParam(r, "patientID"), claims.UserID, claims.Role == auth.RoleDoctor)
		if err != nil {
			writeRecordsError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func toRecordResponse(rec *HealthRecord) recordResponse {
	return recordResponse{
		ID:        rec.ID,
		PatientID: rec.PatientID,
		DoctorID:  rec.DoctorID,
		Title:     rec.Title,
		Tags:      rec.Tags,
		CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func writeRecordsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "no autorizado"})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "documento no encontrado"})
	case errors.Is(err, ErrUnsafeDisclosure):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "documento retenido"})
	case errors.Is(err, ErrUpstream):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "backend no disponible"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error interno"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
