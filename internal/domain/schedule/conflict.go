package schedule

import (
	"patient-portal/internal/platform/timewindow"
)

// CheckConflict devuelve true si el candidato solapa alguna entrada ocupada
// del mismo doctor (o global). excludeID salta la entrada que se está
// editando, para que una edición in-place no conflictúe consigo misma.
//
// Se corre dos veces por diseño: al elegir el slot (feedback inmediato) y de
// nuevo contra datos recién leídos en el momento de persistir, porque el set
// de entradas pudo cambiar entre la selección y el submit. Una lectura vieja
// no es garantía.
func CheckConflict(candidate timewindow.Interval, doctorID string, existing []BusyEntry, excludeID string) bool {
	for _, b := range existing {
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		if b.DoctorID != "" && b.DoctorID != doctorID {
			continue
		}
		if timewindow.Overlaps(candidate, b.Interval) {
			return true
		}
	}
	return false
}
