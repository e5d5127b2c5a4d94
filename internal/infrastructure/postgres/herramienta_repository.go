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

var (
	_ repository.HerramientaStockRepository = (*HerramientaStockRepo)(nil)
	_ repository.HerramientaLoanRepository  = (*HerramientaLoanRepo)(nil)
)

// HerramientaStockRepo filas bodega_herramienta sobre PostgreSQL.
type HerramientaStockRepo struct {
	q Querier
}

// NewHerramientaStockRepository construye el adaptador. Pasar pool o tx (Querier).
func NewHerramientaStockRepository(q Querier) *HerramientaStockRepo {
	return &HerramientaStockRepo{q: q}
}

// ListByHerramientas devuelve las filas de bodega de las herramientas indicadas, ordenadas por id.
func (r *HerramientaStockRepo) ListByHerramientas(ctx context.Context, herramientaIDs []int64) ([]*entity.HerramientaBodegaStock, error) {
	out := []*entity.HerramientaBodegaStock{}
	if len(herramientaIDs) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, bodega_id, herramienta_id, cantidad_disponible, cantidad_prestada, updated_at
		FROM bodega_herramienta
		WHERE herramienta_id = ANY($1::bigint[])
		ORDER BY id`, herramientaIDs)
	if err != nil {
		return nil, fmt.Errorf("list bodega_herramienta: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s entity.HerramientaBodegaStock
		if err := rows.Scan(&s.ID, &s.BodegaID, &s.HerramientaID, &s.CantidadDisponible, &s.CantidadPrestada, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan bodega_herramienta: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// Reserve mueve cantidad de disponible a prestada en una sola sentencia.
// La fila candidata se bloquea en la subconsulta y el descuento queda condicionado a la disponibilidad.
func (r *HerramientaStockRepo) Reserve(ctx context.Context, herramientaID, bodegaHerramientaID int64, cantidad int) (int64, error) {
	query := `
		UPDATE bodega_herramienta
		SET cantidad_disponible = cantidad_disponible - $3,
			cantidad_prestada = cantidad_prestada + $3,
			updated_at = now()
		WHERE id = (
			SELECT id FROM bodega_herramienta
			WHERE herramienta_id = $1 AND ($2::bigint = 0 OR id = $2::bigint)
			ORDER BY cantidad_disponible DESC, id
			LIMIT 1
			FOR UPDATE
		) AND cantidad_disponible >= $3
		RETURNING id`
	var id int64
	err := r.q.QueryRow(ctx, query, herramientaID, bodegaHerramientaID, cantidad).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isCheckViolation(err) {
			return 0, domain.ErrInsufficientStock
		}
		return 0, fmt.Errorf("reservar herramienta %d: %w", herramientaID, err)
	}
	return id, nil
}

// Release devuelve cantidad de prestada a disponible en la fila exacta del préstamo.
func (r *HerramientaStockRepo) Release(ctx context.Context, bodegaHerramientaID int64, cantidad int) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE bodega_herramienta
		SET cantidad_disponible = cantidad_disponible + $2,
			cantidad_prestada = cantidad_prestada - $2,
			updated_at = now()
		WHERE id = $1 AND cantidad_prestada >= $2`, bodegaHerramientaID, cantidad)
	if err != nil {
		return fmt.Errorf("devolver herramienta en bodega_herramienta %d: %w", bodegaHerramientaID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bodega_herramienta WHERE id = $1)`, bodegaHerramientaID).Scan(&exists); err != nil {
		return fmt.Errorf("buscar bodega_herramienta %d: %w", bodegaHerramientaID, err)
	}
	if !exists {
		return fmt.Errorf("bodega_herramienta %d: %w", bodegaHerramientaID, domain.ErrNotFound)
	}
	return fmt.Errorf("bodega_herramienta %d: prestada menor que %d: %w", bodegaHerramientaID, cantidad, domain.ErrConflict)
}

// HerramientaLoanRepo préstamos de herramientas (prestamos_herramientas).
type HerramientaLoanRepo struct {
	q Querier
}

// NewHerramientaLoanRepository construye el adaptador. Pasar pool o tx (Querier).
func NewHerramientaLoanRepository(q Querier) *HerramientaLoanRepo {
	return &HerramientaLoanRepo{q: q}
}

// Create registra el préstamo ligado a la fila de bodega de la que salió.
func (r *HerramientaLoanRepo) Create(ctx context.Context, loan *entity.HerramientaLoan) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO prestamos_herramientas (id, actividad_id, herramienta_id, bodega_herramienta_id,
			cantidad_entregada, cantidad_devuelta, entregada, devuelta, fecha_devolucion)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		loan.ID, loan.ActividadID, loan.HerramientaID, loan.BodegaHerramientaID,
		loan.CantidadEntregada, loan.CantidadDevuelta, loan.Entregada, loan.Devuelta, loan.FechaDevolucion,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("préstamo de herramienta %d: %w", loan.HerramientaID, domain.ErrNotFound)
		}
		return fmt.Errorf("insert prestamo_herramienta: %w", err)
	}
	return nil
}

// ListByActividad préstamos de la actividad en orden de creación.
func (r *HerramientaLoanRepo) ListByActividad(ctx context.Context, actividadID string) ([]*entity.HerramientaLoan, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, actividad_id, herramienta_id, bodega_herramienta_id, cantidad_entregada, cantidad_devuelta,
			entregada, devuelta, fecha_devolucion
		FROM prestamos_herramientas
		WHERE actividad_id = $1
		ORDER BY created_at, id`, actividadID)
	if err != nil {
		return nil, fmt.Errorf("list prestamos_herramientas: %w", err)
	}
	defer rows.Close()
	out := []*entity.HerramientaLoan{}
	for rows.Next() {
		var l entity.HerramientaLoan
		if err := rows.Scan(&l.ID, &l.ActividadID, &l.HerramientaID, &l.BodegaHerramientaID, &l.CantidadEntregada,
			&l.CantidadDevuelta, &l.Entregada, &l.Devuelta, &l.FechaDevolucion); err != nil {
			return nil, fmt.Errorf("scan prestamo_herramienta: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// MarkReturned marca el préstamo como devuelto por completo, solo si no lo estaba.
func (r *HerramientaLoanRepo) MarkReturned(ctx context.Context, id string, at time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE prestamos_herramientas
		SET cantidad_devuelta = cantidad_entregada, devuelta = true, fecha_devolucion = $2
		WHERE id = $1 AND NOT devuelta`, id, at)
	if err != nil {
		return fmt.Errorf("devolver prestamo_herramienta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("préstamo de herramienta %s ya devuelto o inexistente: %w", id, domain.ErrConflict)
	}
	return nil
}

// DeleteByActividad borra todos los préstamos de herramientas de la actividad.
func (r *HerramientaLoanRepo) DeleteByActividad(ctx context.Context, actividadID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM prestamos_herramientas WHERE actividad_id = $1`, actividadID); err != nil {
		return fmt.Errorf("delete prestamos_herramientas: %w", err)
	}
	return nil
}
