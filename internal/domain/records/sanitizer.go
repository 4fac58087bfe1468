package records

import (
	"errors"
	"regexp"
	"strings"
)

// ViewerRole decide qué rendición del documento se construye.
type ViewerRole string

const (
	// ViewerPatient: el titular del dato. Vista re-identificada completa.
	ViewerPatient ViewerRole = "patient"
	// ViewerRequester: un tercero autorizado por consentimiento. Vista
	// de-identificada: toda identidad del paciente redactada.
	ViewerRequester ViewerRole = "requester"
)

// RedactionToken reemplaza cada ocurrencia de identidad del paciente en la
// vista de requester.
const RedactionToken = "[REDACTED]"

// Placeholders que una rendición previa pudo haber dejado en el texto.
const (
	namePlaceholder = "[PATIENT_NAME]"
	refPlaceholder  = "[PATIENT_ID]"
)

// deidentifiedBanner marca, línea completa, las copias de-identificadas. La
// vista de paciente lo elimina; es una anotación de sanitización, no
// contenido clínico.
const deidentifiedBanner = "[DE-IDENTIFIED COPY]"

// ErrUnsafeDisclosure: la verificación posterior encontró identidad del
// paciente sobreviviendo en la salida. El documento se retiene; nunca se
// entrega una vista parcialmente redactada.
var ErrUnsafeDisclosure = errors.New("records: unsafe disclosure, document withheld")

// Identity son los valores reales del paciente y del médico contra los que
// se redacta o se re-identifica. El service la arma cruzando la metadata del
// registro con el perfil del directorio.
type Identity struct {
	PatientName string
	PatientRef  string
	DoctorName  string
}

// Field es un campo de identidad en la vista renderizada.
type Field struct {
	Value    string `json:"value"`
	Redacted bool   `json:"redacted"`
}

// View es la rendición de un documento para un viewer concreto. Siempre es
// una copia: Sanitize jamás muta el registro almacenado.
type View struct {
	Body        string `json:"body"`
	PatientName Field  `json:"patient_name"`
	PatientRef  Field  `json:"patient_ref"`
	DoctorName  Field  `json:"doctor_name"`
}

// Sanitize construye la vista del documento según el rol del viewer.
//
// Requester: cada ocurrencia del nombre del paciente (case-insensitive) y de
// su identificador (literal) en el body se reemplaza por RedactionToken, los
// placeholders también, y una pasada final verifica la salida: si sobrevive
// cualquier ocurrencia, se devuelve ErrUnsafeDisclosure y ninguna vista.
//
// Patient: placeholders y tokens remanentes de una rendición de requester se
// resuelven a los valores reales, y las líneas de banner se eliminan.
func Sanitize(rec HealthRecord, role ViewerRole, id Identity) (View, error) {
	switch role {
	case ViewerRequester:
		return requesterView(rec, id)
	case ViewerPatient:
		return patientView(rec, id), nil
	default:
		return View{}, ErrUnsafeDisclosure
	}
}

func requesterView(rec HealthRecord, id Identity) (View, error) {
	// Sin nombre conocido no hay forma de confirmar que el body está
	// limpio: se retiene.
	if strings.TrimSpace(id.PatientName) == "" {
		return View{}, ErrUnsafeDisclosure
	}

	body := rec.Body
	body = redactAll(body, id.PatientName)
	if id.PatientRef != "" {
		body = redactAll(body, id.PatientRef)
	}
	// Metadata y directorio pueden diferir: redactar ambas variantes.
	if rec.Meta.PatientName != "" && !strings.EqualFold(rec.Meta.PatientName, id.PatientName) {
		body = redactAll(body, rec.Meta.PatientName)
	}
	if rec.Meta.PatientRef != "" && rec.Meta.PatientRef != id.PatientRef {
		body = redactAll(body, rec.Meta.PatientRef)
	}
	body = strings.ReplaceAll(body, namePlaceholder, RedactionToken)
	body = strings.ReplaceAll(body, refPlaceholder, RedactionToken)

	if survivesIn(body, id.PatientName) || survivesIn(body, id.PatientRef) ||
		survivesIn(body, rec.Meta.PatientName) || survivesIn(body, rec.Meta.PatientRef) {
		return View{}, ErrUnsafeDisclosure
	}

	return View{
		Body:        body,
		PatientName: Field{Value: RedactionToken, Redacted: true},
		PatientRef:  Field{Value: RedactionToken, Redacted: true},
		DoctorName:  Field{Value: doctorName(rec, id)},
	}, nil
}

func patientView(rec HealthRecord, id Identity) View {
	body := rec.Body
	body = stripBannerLines(body)
	if id.PatientName != "" {
		body = strings.ReplaceAll(body, namePlaceholder, id.PatientName)
		// Un token genérico remanente no dice qué campo ocultaba; el
		// nombre es la resolución menos sorprendente para el titular.
		body = strings.ReplaceAll(body, RedactionToken, id.PatientName)
	}
	if id.PatientRef != "" {
		body = strings.ReplaceAll(body, refPlaceholder, id.PatientRef)
	}

	return View{
		Body:        body,
		PatientName: Field{Value: id.PatientName},
		PatientRef:  Field{Value: id.PatientRef},
		DoctorName:  Field{Value: doctorName(rec, id)},
	}
}

// redactAll reemplaza toda ocurrencia literal de value, sin distinguir
// mayúsculas. QuoteMeta evita que identificadores con metacaracteres
// (p.ej. "MRN-104(a)") se interpreten como regex.
func redactAll(body, value string) string {
	if value == "" {
		return body
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(value))
	return re.ReplaceAllString(body, RedactionToken)
}

func survivesIn(body, value string) bool {
	if value == "" {
		return false
	}
	return strings.Contains(strings.ToLower(body), strings.ToLower(value))
}

func stripBannerLines(body string) string {
	if !strings.Contains(body, deidentifiedBanner) {
		return body
	}
	lines := strings.Split(body, "\n")
	kept := lines[:0:0]
	for _, ln := range lines {
		if strings.Contains(ln, deidentifiedBanner) {
			continue
		}
		kept = append(kept, ln)
	}
	return strings.Join(kept, "\n")
}

func doctorName(rec HealthRecord, id Identity) string {
	if id.DoctorName != "" {
		return id.DoctorName
	}
	return rec.Meta.DoctorName
}
