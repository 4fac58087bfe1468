package accessgrants

import "time"

// AccessType espeja los data types del consentimiento que lo origina.
type AccessType string

const (
	AccessViewRecords       AccessType = "view_records"
	AccessViewPrescriptions AccessType = "view_prescriptions"
	AccessViewNotes         AccessType = "view_consultation_notes"
	AccessAll               AccessType = "all"
)

func ValidAccessType(t AccessType) bool {
	switch t {
	case AccessViewRecords, AccessViewPrescriptions, AccessViewNotes, AccessAll:
		return true
	}
	return false
}

type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Grant es el registro derivado de un consentimiento aprobado: habilita a un
// doctor un tipo de acceso sobre los datos de un paciente, con vencimiento.
// Pertenece al par (paciente, doctor); lo lee cada chequeo de divulgación.
type Grant struct {
	ID string

	PatientID string
	DoctorID  string

	AccessType AccessType

	Status Status

	GrantedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}
