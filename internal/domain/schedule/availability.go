package schedule

import (
	"errors"
	"fmt"
	"time"

	"patient-portal/internal/platform/timewindow"
)

var (
	ErrInvalidGrid = errors.New("invalid grid config")
)

// GridConfig define la ventana de atención y la granularidad de la grilla.
type GridConfig struct {
	OpenHour    int // hora de apertura (0-23)
	CloseHour   int // hora de cierre, exclusiva
	SlotMinutes int
	Location    *time.Location
}

func DefaultGrid() GridConfig {
	return GridConfig{
		OpenHour:    8,
		CloseHour:   20,
		SlotMinutes: 30,
		Location:    time.UTC,
	}
}

func (g GridConfig) validate() error {
	if g.OpenHour < 0 || g.CloseHour > 24 || g.OpenHour >= g.CloseHour {
		return fmt.Errorf("%w: open/close window", ErrInvalidGrid)
	}
	if g.SlotMinutes <= 0 || ((g.CloseHour-g.OpenHour)*60)%g.SlotMinutes != 0 {
		return fmt.Errorf("%w: slot minutes", ErrInvalidGrid)
	}
	return nil
}

func (g GridConfig) location() *time.Location {
	if g.Location == nil {
		return time.UTC
	}
	return g.Location
}

// Slot es un candidato de la grilla con su veredicto.
type Slot struct {
	Interval  timewindow.Interval
	Available bool
}

// AvailableSlots genera la grilla del día y marca cada slot.
//
// Reglas:
//   - El slot se extiende a durationMinutes desde su inicio y se compara con
//     timewindow.Overlaps contra cada BusyEntry del doctor (o global).
//   - doctorID vacío => todos los slots no disponibles. La selección de
//     recurso es obligatoria antes de ofrecer huecos; no se adivina.
//   - Un slot cuya extensión pasa la hora de cierre igual se ofrece: bloquea
//     la duración, no la alineación con la grilla.
//
// La función es pura: el caller es responsable de re-traer busy cuando cambie
// el contexto de selección (fecha, duración, doctor) y de invalidar un slot
// elegido que dejó de estar libre.
func AvailableSlots(cfg GridConfig, day time.Time, durationMinutes int, doctorID string, busy []BusyEntry) ([]Slot, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}

	loc := cfg.location()
	y, m, d := day.In(loc).Date()
	open := time.Date(y, m, d, cfg.OpenHour, 0, 0, 0, loc)
	close := time.Date(y, m, d, cfg.CloseHour, 0, 0, 0, loc)

	relevant := busyForDoctor(busy, doctorID)

	count := int(close.Sub(open)/time.Minute) / cfg.SlotMinutes
	out := make([]Slot, 0, count)

	for start := open; start.Before(close); start = timewindow.AddMinutes(start, cfg.SlotMinutes) {
		slot := timewindow.Interval{Start: start, End: timewindow.AddMinutes(start, cfg.SlotMinutes)}

		available := false
		if doctorID != "" {
			extended := timewindow.Interval{Start: start, End: timewindow.AddMinutes(start, durationMinutes)}
			available = !anyOverlap(extended, relevant)
		}

		out = append(out, Slot{Interval: slot, Available: available})
	}
	return out, nil
}

// busyForDoctor filtra entradas del doctor más las globales (DoctorID vacío),
// que bloquean a todos los recursos.
func busyForDoctor(busy []BusyEntry, doctorID string) []BusyEntry {
	if doctorID == "" {
		return busy
	}
	out := make([]BusyEntry, 0, len(busy))
	for _, b := range busy {
		if b.DoctorID == "" || b.DoctorID == doctorID {
			out = append(out, b)
		}
	}
	return out
}

func anyOverlap(candidate timewindow.Interval, busy []BusyEntry) bool {
	for _, b := range busy {
		if timewindow.Overlaps(candidate, b.Interval) {
			return true
		}
	}
	return false
}
