package repository

import (
	"context"
	"time"

	"github.com/jhoicas/agrosoft-api/internal/domain/entity"
)

// ActivityFilter filtros del listado de actividades.
type ActivityFilter struct {
	Estado entity.ActivityState // vacío = todos
	Limit  int
	Offset int
}

// ActivityRepository define el puerto de persistencia para Activity y sus usuarios asignados.
// GetByID y GetForUpdate devuelven (nil, nil) si la actividad no existe.
type ActivityRepository interface {
	Create(ctx context.Context, a *entity.Activity) error
	GetByID(ctx context.Context, id string) (*entity.Activity, error)
	// GetForUpdate bloquea la fila de la actividad hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, id string) (*entity.Activity, error)
	// Update actualiza los campos descriptivos y los usuarios asignados; nunca el estado.
	Update(ctx context.Context, a *entity.Activity) error
	// TransitionState cambia el estado solo si el actual está en from. Devuelve false si no aplicó.
	// fechaFin nil conserva la fecha actual.
	TransitionState(ctx context.Context, id string, from []entity.ActivityState, to entity.ActivityState, fechaFin *time.Time, now time.Time) (bool, error)
	List(ctx context.Context, filter ActivityFilter) ([]*entity.Activity, error)
	// Delete elimina la actividad y sus asignaciones de usuarios.
	Delete(ctx context.Context, id string) error
}
