package schedule

import (
	"time"

	"patient-portal/internal/platform/timewindow"
)

// Consultation refleja la fila `consultations` del store remoto.
// PatientID nil => intervalo bloqueado por el doctor (no hay paciente).
type Consultation struct {
	ID       string
	DoctorID string

	PatientID *string

	Start           time.Time
	DurationMinutes int

	Kind   Kind
	Reason string
	Notes  string
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interval devuelve el intervalo semiabierto ocupado por la consulta.
func (c Consultation) Interval() timewindow.Interval {
	return timewindow.Interval{
		Start: c.Start,
		End:   timewindow.AddMinutes(c.Start, c.DurationMinutes),
	}
}

// IsBlocking indica si la consulta ocupa agenda (cancelled no bloquea).
func (c Consultation) IsBlocking() bool {
	return c.Status != StatusCancelled
}

// BusyEntry es la vista mínima que consumen el motor de disponibilidad y el
// guard de solapes. DoctorID vacío => bloqueo global (cierre de clínica).
type BusyEntry struct {
	ID        string
	DoctorID  string
	PatientID *string
	Kind      Kind
	Interval  timewindow.Interval
}

// BusyEntriesOf proyecta las consultas no canceladas a BusyEntry.
func BusyEntriesOf(items []Consultation) []BusyEntry {
	out := make([]BusyEntry, 0, len(items))
	for _, c := range items {
		if !c.IsBlocking() {
			continue
		}
		out = append(out, BusyEntry{
			ID:        c.ID,
			DoctorID:  c.DoctorID,
			PatientID: c.PatientID,
			Kind:      c.Kind,
			Interval:  c.Interval(),
		})
	}
	return out
}
