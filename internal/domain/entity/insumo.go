package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InsumoScale decimales que admiten las cantidades de insumo (columnas NUMERIC(14,3)).
const InsumoScale int32 = 3

// InsumoStock existencias de un insumo (consumible). Cantidad es la fuente de verdad.
type InsumoStock struct {
	ID        int64
	Nombre    string
	Cantidad  decimal.Decimal
	UpdatedAt time.Time
}

// InsumoLoan registra cuánto de un insumo usó una actividad.
// Abierto mientras FechaDevolucion es nil; al cerrarse CantidadDevuelta = CantidadUsada.
// Restituido distingue el cierre por cancelación (stock devuelto) del consumo al finalizar.
type InsumoLoan struct {
	ID               string
	ActividadID      string
	InsumoID         int64
	CantidadUsada    decimal.Decimal
	CantidadDevuelta decimal.Decimal
	UnidadMedidaID   int64
	FechaDevolucion  *time.Time
	Restituido       bool
}

// Open indica si el préstamo sigue reservando stock.
func (l *InsumoLoan) Open() bool {
	return l.FechaDevolucion == nil
}

// InsumoRequest solicitud de insumo al crear una actividad.
type InsumoRequest struct {
	InsumoID       int64
	CantidadUsada  decimal.Decimal
	UnidadMedidaID int64
}
