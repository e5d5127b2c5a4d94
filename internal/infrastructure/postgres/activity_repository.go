package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/agrosoft-api/internal/domain"
	"github.com/jhoicas/agrosoft-api/internal/domain/entity"
	"github.com/jhoicas/agrosoft-api/internal/domain/repository"
)

var _ repository.ActivityRepository = (*ActivityRepo)(nil)

// ActivityRepo implementación de ActivityRepository sobre PostgreSQL (usable con pool o tx).
type ActivityRepo struct {
	q Querier
}

// NewActivityRepository construye el adaptador de actividades. Pasar pool o tx (Querier).
func NewActivityRepository(q Querier) *ActivityRepo {
	return &ActivityRepo{q: q}
}

const selectActivity = `
	SELECT a.id, a.descripcion, a.fecha_inicio, a.fecha_fin, a.tipo_actividad_id, a.cultivo_id,
		a.estado, a.prioridad, a.instrucciones_adicionales, a.created_at, a.updated_at,
		COALESCE((SELECT array_agg(u.usuario_id ORDER BY u.usuario_id)
			FROM actividad_usuarios u WHERE u.actividad_id = a.id), '{}')
	FROM actividades a`

func scanActivity(row pgx.Row) (*entity.Activity, error) {
	var a entity.Activity
	var estado string
	err := row.Scan(
		&a.ID, &a.Descripcion, &a.FechaInicio, &a.FechaFin, &a.TipoActividadID, &a.CultivoID,
		&estado, &a.Prioridad, &a.InstruccionesAdicionales, &a.CreatedAt, &a.UpdatedAt,
		&a.Usuarios,
	)
	if err != nil {
		return nil, err
	}
	a.Estado = entity.ActivityState(estado)
	return &a, nil
}

// Create inserta la actividad y sus usuarios asignados.
func (r *ActivityRepo) Create(ctx context.Context, a *entity.Activity) error {
	query := `
		INSERT INTO actividades (id, descripcion, fecha_inicio, fecha_fin, tipo_actividad_id, cultivo_id,
			estado, prioridad, instrucciones_adicionales, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		a.ID, a.Descripcion, a.FechaInicio, a.FechaFin, a.TipoActividadID, a.CultivoID,
		string(a.Estado), a.Prioridad, a.InstruccionesAdicionales, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("actividad %s ya existe: %w", a.ID, domain.ErrConflict)
		}
		return fmt.Errorf("insert actividad: %w", err)
	}
	return r.insertUsuarios(ctx, a.ID, a.Usuarios)
}

func (r *ActivityRepo) insertUsuarios(ctx context.Context, actividadID string, usuarios []int64) error {
	if len(usuarios) == 0 {
		return nil
	}
	query := `
		INSERT INTO actividad_usuarios (actividad_id, usuario_id)
		SELECT $1, u FROM unnest($2::bigint[]) AS u
		ON CONFLICT DO NOTHING`
	if _, err := r.q.Exec(ctx, query, actividadID, usuarios); err != nil {
		return fmt.Errorf("insert actividad_usuarios: %w", err)
	}
	return nil
}

// GetByID obtiene una actividad por ID. Devuelve (nil, nil) si no existe.
func (r *ActivityRepo) GetByID(ctx context.Context, id string) (*entity.Activity, error) {
	a, err := scanActivity(r.q.QueryRow(ctx, selectActivity+` WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get actividad: %w", err)
	}
	return a, nil
}

// GetForUpdate obtiene la actividad y bloquea su fila (SELECT FOR UPDATE).
func (r *ActivityRepo) GetForUpdate(ctx context.Context, id string) (*entity.Activity, error) {
	a, err := scanActivity(r.q.QueryRow(ctx, selectActivity+` WHERE a.id = $1 FOR UPDATE OF a`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get actividad for update: %w", err)
	}
	return a, nil
}

// Update actualiza campos descriptivos y reemplaza los usuarios asignados. No toca el estado.
func (r *ActivityRepo) Update(ctx context.Context, a *entity.Activity) error {
	query := `
		UPDATE actividades
		SET descripcion = $2, fecha_inicio = $3, fecha_fin = $4, tipo_actividad_id = $5, cultivo_id = $6,
			prioridad = $7, instrucciones_adicionales = $8, updated_at = $9
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		a.ID, a.Descripcion, a.FechaInicio, a.FechaFin, a.TipoActividadID, a.CultivoID,
		a.Prioridad, a.InstruccionesAdicionales, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update actividad: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM actividad_usuarios WHERE actividad_id = $1`, a.ID); err != nil {
		return fmt.Errorf("delete actividad_usuarios: %w", err)
	}
	return r.insertUsuarios(ctx, a.ID, a.Usuarios)
}

// TransitionState cambia el estado con un UPDATE condicionado al estado actual.
func (r *ActivityRepo) TransitionState(ctx context.Context, id string, from []entity.ActivityState, to entity.ActivityState, fechaFin *time.Time, now time.Time) (bool, error) {
	sources := make([]string, len(from))
	for i, s := range from {
		sources[i] = string(s)
	}
	query := `
		UPDATE actividades
		SET estado = $2, fecha_fin = COALESCE($3::timestamptz, fecha_fin), updated_at = $4
		WHERE id = $1 AND estado = ANY($5::text[])`
	tag, err := r.q.Exec(ctx, query, id, string(to), fechaFin, now, sources)
	if err != nil {
		return false, fmt.Errorf("transition actividad: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List lista actividades (más recientes primero), filtrando por estado si se indica.
func (r *ActivityRepo) List(ctx context.Context, filter repository.ActivityFilter) ([]*entity.Activity, error) {
	query := selectActivity + `
		WHERE ($1 = '' OR a.estado = $1)
		ORDER BY a.created_at DESC, a.id
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, string(filter.Estado), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list actividades: %w", err)
	}
	defer rows.Close()
	out := []*entity.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan actividad: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Delete elimina la actividad; sus usuarios caen por ON DELETE CASCADE.
func (r *ActivityRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM actividades WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete actividad: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
