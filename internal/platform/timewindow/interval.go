package timewindow

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidInterval = errors.New("invalid interval")
)

// Interval es un intervalo semiabierto [Start, End).
// Invariante: Start < End. Se construye con New y no se muta después.
type Interval struct {
	Start time.Time
	End   time.Time
}

func New(start, end time.Time) (Interval, error) {
	if start.IsZero() || end.IsZero() {
		return Interval{}, ErrInvalidInterval
	}
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: start must be before end", ErrInvalidInterval)
	}
	return Interval{Start: start, End: end}, nil
}

// FromDuration construye un intervalo de `minutes` a partir de start.
func FromDuration(start time.Time, minutes int) (Interval, error) {
	if minutes <= 0 {
		return Interval{}, fmt.Errorf("%w: duration must be positive", ErrInvalidInterval)
	}
	return New(start, AddMinutes(start, minutes))
}

// Overlaps es EL predicado de solape de todo el sistema.
// Semiabierto: tocar bordes (a.End == b.Start) NO es solape.
// Cualquier otra comparación de intervalos en el repo debe pasar por acá;
// una segunda implementación se considera un defecto.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// AddMinutes suma n minutos a un instante.
func AddMinutes(t time.Time, n int) time.Time {
	return t.Add(time.Duration(n) * time.Minute)
}

// SameCalendarDay compara día civil en loc, no epoch.
// Comparar componentes evita bugs en bordes de timezone (un instante puede
// caer en días distintos según la zona).
func SameCalendarDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// Minutes devuelve la duración del intervalo en minutos enteros.
func Minutes(iv Interval) int {
	return int(iv.End.Sub(iv.Start) / time.Minute)
}
