package directory

import "context"

// PatientProfile es el dato identitario del paciente tal como lo mantiene
// el servicio de perfiles (externo a este core). El sanitizador lo usa para
// re-identificar la vista del propio paciente.
type PatientProfile struct {
	PatientID           string
	FullName            string
	MedicalRecordNumber string
}

// DoctorProfile se usa solo para mostrar; la identidad del doctor nunca se redacta.
type DoctorProfile struct {
	DoctorID string
	FullName string
}

// Resolver expone lookups de perfiles contra el directorio.
type Resolver interface {
	PatientByID(ctx context.Context, patientID string) (PatientProfile, error)
	DoctorByID(ctx context.Context, doctorID string) (DoctorProfile, error)
}
