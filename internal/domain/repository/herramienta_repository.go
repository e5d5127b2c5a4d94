package repository

import (
	"context"
	"time"

	"github.com/jhoicas/agrosoft-api/internal/domain/entity"
)

// HerramientaStockRepository contador compartido de herramientas por bodega (disponible / prestada).
type HerramientaStockRepository interface {
	// ListByHerramientas devuelve todas las filas de bodega de las herramientas indicadas.
	ListByHerramientas(ctx context.Context, herramientaIDs []int64) ([]*entity.HerramientaBodegaStock, error)
	// Reserve mueve cantidad de disponible a prestada en una sola fila y devuelve su id.
	// bodegaHerramientaID = 0 elige la fila con más disponibilidad. Sin fila suficiente: ErrInsufficientStock.
	Reserve(ctx context.Context, herramientaID, bodegaHerramientaID int64, cantidad int) (int64, error)
	// Release devuelve cantidad de prestada a disponible en la fila exacta.
	Release(ctx context.Context, bodegaHerramientaID int64, cantidad int) error
}

// HerramientaLoanRepository libro de préstamos de herramientas por actividad.
type HerramientaLoanRepository interface {
	Create(ctx context.Context, loan *entity.HerramientaLoan) error
	ListByActividad(ctx context.Context, actividadID string) ([]*entity.HerramientaLoan, error)
	// MarkReturned deja CantidadDevuelta = CantidadEntregada, Devuelta = true.
	MarkReturned(ctx context.Context, id string, at time.Time) error
	DeleteByActividad(ctx context.Context, actividadID string) error
}
