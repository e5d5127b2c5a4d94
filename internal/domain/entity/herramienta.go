package entity

import "time"

// HerramientaBodegaStock existencias de una herramienta en una bodega.
// CantidadDisponible + CantidadPrestada = total de la herramienta en esa bodega.
type HerramientaBodegaStock struct {
	ID                 int64
	BodegaID           int64
	HerramientaID      int64
	CantidadDisponible int
	CantidadPrestada   int
	UpdatedAt          time.Time
}

// HerramientaLoan préstamo de una herramienta a una actividad, ligado a la fila exacta de bodega.
type HerramientaLoan struct {
	ID                  string
	ActividadID         string
	HerramientaID       int64
	BodegaHerramientaID int64
	CantidadEntregada   int
	CantidadDevuelta    int
	Entregada           bool
	Devuelta            bool
	FechaDevolucion     *time.Time
}

// Outstanding cantidad aún en préstamo.
func (l *HerramientaLoan) Outstanding() int {
	return l.CantidadEntregada - l.CantidadDevuelta
}

// HerramientaRequest solicitud de herramienta al crear una actividad.
// BodegaHerramientaID = 0 deja que el repositorio elija la fila con más disponibilidad.
type HerramientaRequest struct {
	HerramientaID       int64
	CantidadEntregada   int
	BodegaHerramientaID int64
}
