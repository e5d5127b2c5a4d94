package repository

import (
	"context"
	"time"

	"github.com/jhoicas/agrosoft-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// InsumoStockRepository contador compartido de stock de insumos.
// Reserve y Release son sentencias atómicas; nunca leer-y-escribir desde la aplicación.
type InsumoStockRepository interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*entity.InsumoStock, error)
	// Reserve descuenta cantidad solo si hay suficiente; si no, ErrInsufficientStock.
	Reserve(ctx context.Context, insumoID int64, cantidad decimal.Decimal) error
	Release(ctx context.Context, insumoID int64, cantidad decimal.Decimal) error
}

// InsumoLoanRepository libro de préstamos (consumos) de insumos por actividad.
type InsumoLoanRepository interface {
	Create(ctx context.Context, loan *entity.InsumoLoan) error
	ListByActividad(ctx context.Context, actividadID string) ([]*entity.InsumoLoan, error)
	// Close cierra un préstamo abierto: CantidadDevuelta = CantidadUsada y fecha de devolución.
	Close(ctx context.Context, id string, restituido bool, at time.Time) error
	DeleteByActividad(ctx context.Context, actividadID string) error
}
