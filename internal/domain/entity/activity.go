package entity

import "time"

// ActivityState estado del ciclo de vida de una actividad.
type ActivityState string

// Estados de actividad.
const (
	ActivityStatePending    ActivityState = "pendiente"
	ActivityStateInProgress ActivityState = "en_progreso"
	ActivityStateCompleted  ActivityState = "completada"
	ActivityStateCancelled  ActivityState = "cancelada"
)

// Prioridades de actividad.
const (
	PriorityHigh   = "alta"
	PriorityMedium = "media"
	PriorityLow    = "baja"
)

// Activity representa una labor agrícola programada que consume insumos y toma herramientas en préstamo.
// FechaFin es la fecha planificada al crear y se sobrescribe con la real al finalizar.
type Activity struct {
	ID                       string
	Descripcion              string
	FechaInicio              time.Time
	FechaFin                 time.Time
	TipoActividadID          int64
	CultivoID                int64
	Estado                   ActivityState
	Prioridad                string
	InstruccionesAdicionales string
	Usuarios                 []int64
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Valid indica si el estado es uno de los conocidos.
func (s ActivityState) Valid() bool {
	switch s {
	case ActivityStatePending, ActivityStateInProgress, ActivityStateCompleted, ActivityStateCancelled:
		return true
	}
	return false
}

// Terminal indica si el estado ya no admite transiciones (completada o cancelada).
func (s ActivityState) Terminal() bool {
	return s == ActivityStateCompleted || s == ActivityStateCancelled
}

// CanTransition reporta si la transición from -> to es legal.
//
//	pendiente   -> en_progreso | completada | cancelada
//	en_progreso -> completada | cancelada
//	completada, cancelada: terminales
func CanTransition(from, to ActivityState) bool {
	switch from {
	case ActivityStatePending:
		return to == ActivityStateInProgress || to == ActivityStateCompleted || to == ActivityStateCancelled
	case ActivityStateInProgress:
		return to == ActivityStateCompleted || to == ActivityStateCancelled
	}
	return false
}

// SourcesFor devuelve los estados desde los que se puede llegar a "to".
// Lo usan los repositorios para condicionar el UPDATE de estado.
func SourcesFor(to ActivityState) []ActivityState {
	var out []ActivityState
	for _, s := range []ActivityState{ActivityStatePending, ActivityStateInProgress, ActivityStateCompleted, ActivityStateCancelled} {
		if CanTransition(s, to) {
			out = append(out, s)
		}
	}
	return out
}

// ValidPriority indica si p es una prioridad conocida.
func ValidPriority(p string) bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}
