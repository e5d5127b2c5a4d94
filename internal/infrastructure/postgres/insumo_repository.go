package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/agrosoft-api/internal/domain"
	"github.com/jhoicas/agrosoft-api/internal/domain/entity"
	"github.com/jhoicas/agrosoft-api/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var (
	_ repository.InsumoStockRepository = (*InsumoStockRepo)(nil)
	_ repository.InsumoLoanRepository  = (*InsumoLoanRepo)(nil)
)

// InsumoStockRepo stock de insumos sobre PostgreSQL.
type InsumoStockRepo struct {
	q Querier
}

// NewInsumoStockRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInsumoStockRepository(q Querier) *InsumoStockRepo {
	return &InsumoStockRepo{q: q}
}

// GetByIDs devuelve el stock de los insumos existentes entre ids.
func (r *InsumoStockRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]*entity.InsumoStock, error) {
	out := make(map[int64]*entity.InsumoStock, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, nombre, cantidad, updated_at
		FROM insumos WHERE id = ANY($1::bigint[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("get insumos: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s entity.InsumoStock
		if err := rows.Scan(&s.ID, &s.Nombre, &s.Cantidad, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan insumo: %w", err)
		}
		out[s.ID] = &s
	}
	return out, rows.Err()
}

// Reserve descuenta cantidad con un UPDATE condicionado a que alcance el stock.
func (r *InsumoStockRepo) Reserve(ctx context.Context, insumoID int64, cantidad decimal.Decimal) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE insumos SET cantidad = cantidad - $2, updated_at = now()
		WHERE id = $1 AND cantidad >= $2`, insumoID, cantidad)
	if err != nil {
		return fmt.Errorf("reservar insumo %d: %w", insumoID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

// Release devuelve cantidad al stock del insumo.
func (r *InsumoStockRepo) Release(ctx context.Context, insumoID int64, cantidad decimal.Decimal) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE insumos SET cantidad = cantidad + $2, updated_at = now()
		WHERE id = $1`, insumoID, cantidad)
	if err != nil {
		return fmt.Errorf("restituir insumo %d: %w", insumoID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insumo %d: %w", insumoID, domain.ErrNotFound)
	}
	return nil
}

// InsumoLoanRepo préstamos de insumos (prestamos_insumos).
type InsumoLoanRepo struct {
	q Querier
}

// NewInsumoLoanRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInsumoLoanRepository(q Querier) *InsumoLoanRepo {
	return &InsumoLoanRepo{q: q}
}

// Create registra el préstamo abierto.
func (r *InsumoLoanRepo) Create(ctx context.Context, loan *entity.InsumoLoan) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO prestamos_insumos (id, actividad_id, insumo_id, cantidad_usada, cantidad_devuelta,
			unidad_medida_id, fecha_devolucion, restituido)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6::bigint, 0), $7, $8)`,
		loan.ID, loan.ActividadID, loan.InsumoID, loan.CantidadUsada, loan.CantidadDevuelta,
		loan.UnidadMedidaID, loan.FechaDevolucion, loan.Restituido,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("préstamo de insumo %d: %w", loan.InsumoID, domain.ErrNotFound)
		}
		return fmt.Errorf("insert prestamo_insumo: %w", err)
	}
	return nil
}

// ListByActividad préstamos de la actividad en orden de creación.
func (r *InsumoLoanRepo) ListByActividad(ctx context.Context, actividadID string) ([]*entity.InsumoLoan, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, actividad_id, insumo_id, cantidad_usada, cantidad_devuelta,
			COALESCE(unidad_medida_id, 0), fecha_devolucion, restituido
		FROM prestamos_insumos
		WHERE actividad_id = $1
		ORDER BY created_at, id`, actividadID)
	if err != nil {
		return nil, fmt.Errorf("list prestamos_insumos: %w", err)
	}
	defer rows.Close()
	out := []*entity.InsumoLoan{}
	for rows.Next() {
		var l entity.InsumoLoan
		if err := rows.Scan(&l.ID, &l.ActividadID, &l.InsumoID, &l.CantidadUsada, &l.CantidadDevuelta,
			&l.UnidadMedidaID, &l.FechaDevolucion, &l.Restituido); err != nil {
			return nil, fmt.Errorf("scan prestamo_insumo: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// Close cierra el préstamo solo si sigue abierto.
func (r *InsumoLoanRepo) Close(ctx context.Context, id string, restituido bool, at time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE prestamos_insumos
		SET cantidad_devuelta = cantidad_usada, fecha_devolucion = $3, restituido = $2
		WHERE id = $1 AND fecha_devolucion IS NULL`, id, restituido, at)
	if err != nil {
		return fmt.Errorf("cerrar prestamo_insumo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("préstamo de insumo %s ya cerrado o inexistente: %w", id, domain.ErrConflict)
	}
	return nil
}

// DeleteByActividad borra todos los préstamos de insumos de la actividad.
func (r *InsumoLoanRepo) DeleteByActividad(ctx context.Context, actividadID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM prestamos_insumos WHERE actividad_id = $1`, actividadID); err != nil {
		return fmt.Errorf("delete prestamos_insumos: %w", err)
	}
	return nil
}
