package consents

import "time"

// DataType es el tipo de dato cuyo acceso se solicita.
type DataType string

const (
	DataViewRecords       DataType = "view_records"
	DataViewPrescriptions DataType = "view_prescriptions"
	DataViewNotes         DataType = "view_consultation_notes"
	DataAll               DataType = "all"
)

func ValidDataType(t DataType) bool {
	switch t {
	case DataViewRecords, DataViewPrescriptions, DataViewNotes, DataAll:
		return true
	}
	return false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusRevoked  Status = "revoked"
	StatusExpired  Status = "expired"
)

// Request es la solicitud de consentimiento de un doctor sobre los datos de
// un paciente.
//
// Invariantes:
//   - ExpiresAt está seteado si y solo si el status es approved (hasta que
//     pase a revoked/expired).
//   - RespondedAt se setea una única vez, cuando el status deja pending.
//   - expired nunca se persiste: se deriva en lectura con EffectiveStatus.
type Request struct {
	ID string

	PatientID   string
	RequesterID string // doctor

	Purpose      string
	Message      string
	DataTypes    []DataType
	DurationDays int

	Status Status

	RequestedAt time.Time
	RespondedAt *time.Time
	ExpiresAt   *time.Time
}

// EffectiveStatus computa el status vigente: un approved vencido es expired
// aunque la fila siga diciendo approved. Nunca se muta eagerly.
func EffectiveStatus(r Request, now time.Time) Status {
	if r.Status == StatusApproved && r.ExpiresAt != nil && now.After(*r.ExpiresAt) {
		return StatusExpired
	}
	return r.Status
}

// HasDataType responde si la solicitud incluye el tipo (o `all`).
func HasDataType(r Request, t DataType) bool {
	for _, dt := range r.DataTypes {
		if dt == t || dt == DataAll {
			return true
		}
	}
	return false
}
