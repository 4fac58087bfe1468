package records

import "time"

// Tags conocidos. Un registro puede llevar varios.
const (
	TagConsentForm      = "consent_form"
	TagPrescription     = "prescription"
	TagConsultationNote = "consultation_note"
	TagDeIdentified     = "de-identified"
	TagIdentified       = "identified"
)

// RecordMeta es el bloque de metadata del documento, almacenado estructurado
// (columna jsonb). Las filas legacy lo traen empacado dentro del body con el
// marcador [METADATA]; ver packed.go.
type RecordMeta struct {
	PatientID    string `json:"patient_id"`
	PatientName  string `json:"patient_name"`
	PatientRef   string `json:"patient_ref"` // identificador de historia clínica
	DoctorID     string `json:"doctor_id"`
	DoctorName   string `json:"doctor_name"`
	Summary      string `json:"summary"`
	DeIdentified bool   `json:"de_identified"`

	// SchemaVersion distingue metadata estructurada (>=1) de la decodificada
	// desde el formato empacado legacy (0).
	SchemaVersion int `json:"schema_version,omitempty"`
}

// HealthRecord es el documento divulgable: texto libre más metadata.
//
// Invariante de divulgación: el body renderizado para un viewer requester
// nunca contiene un token de identidad del paciente sin redactar. El registro
// almacenado es la fuente de verdad y jamás se redacta destructivamente; la
// redacción ocurre solo en la vista.
type HealthRecord struct {
	ID string

	PatientID string
	DoctorID  string

	Title string
	Body  string
	Meta  RecordMeta
	Tags  []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r HealthRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
