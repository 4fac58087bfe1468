package schedule

import "strings"

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Kind clasifica la entrada de agenda.
type Kind string

const (
	KindAppointment Kind = "appointment" // consulta con paciente
	KindBlocked     Kind = "blocked"     // tiempo bloqueado por el doctor
	KindMeeting     Kind = "meeting"     // evento interno, igual ocupa agenda
)

// kindKeywords define la precedencia de inferencia por título cuando el dato
// estructurado no existe (filas legacy). First-match-wins, en este orden:
// blocked > meeting > appointment. El orden es decisión de producto registrada
// en DESIGN.md, no un detalle heredado.
var kindKeywords = []struct {
	kind     Kind
	keywords []string
}{
	{KindBlocked, []string{"blocked", "block", "unavailable", "out of office", "bloqueo"}},
	{KindMeeting, []string{"meeting", "staff call", "reunion", "reunión"}},
}

// InferKind deduce el Kind desde el título. Solo para filas sin dato
// estructurado; las filas nuevas siempre persisten kind explícito.
func InferKind(title string) Kind {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return KindAppointment
	}
	for _, rule := range kindKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(t, kw) {
				return rule.kind
			}
		}
	}
	return KindAppointment
}
