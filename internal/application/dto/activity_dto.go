package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateActivityRequest body para POST /api/actividades.
// usuarios, insumos y herramientas deben ser arreglos JSON.
type CreateActivityRequest struct {
	Descripcion              string                  `json:"descripcion" validate:"required,max=500"`
	FechaInicio              time.Time               `json:"fecha_inicio" validate:"required"`
	FechaFin                 time.Time               `json:"fecha_fin" validate:"required,gtefield=FechaInicio"`
	TipoActividadID          int64                   `json:"tipo_actividad_id" validate:"required,gt=0"`
	CultivoID                int64                   `json:"cultivo_id" validate:"required,gt=0"`
	Estado                   string                  `json:"estado" validate:"omitempty,oneof=pendiente en_progreso"`
	Prioridad                string                  `json:"prioridad" validate:"omitempty,oneof=alta media baja"`
	InstruccionesAdicionales string                  `json:"instrucciones_adicionales" validate:"max=2000"`
	Usuarios                 []int64                 `json:"usuarios" validate:"dive,gt=0"`
	Insumos                  []InsumoRequestDTO      `json:"insumos" validate:"dive"`
	Herramientas             []HerramientaRequestDTO `json:"herramientas" validate:"dive"`
}

// InsumoRequestDTO insumo a reservar. cantidad_usada admite hasta 3 decimales (kg, l).
// Ids ausentes y cantidades no positivas se reportan como violaciones de la reserva.
type InsumoRequestDTO struct {
	InsumoID       int64           `json:"insumo_id"`
	CantidadUsada  decimal.Decimal `json:"cantidad_usada" validate:"decimal_scale=3"`
	UnidadMedidaID int64           `json:"unidad_medida_id" validate:"omitempty,gt=0"`
}

// HerramientaRequestDTO herramienta a prestar. bodega_herramienta_id opcional fija la bodega de origen.
type HerramientaRequestDTO struct {
	HerramientaID       int64 `json:"herramienta_id"`
	CantidadEntregada   int   `json:"cantidad_entregada"`
	BodegaHerramientaID int64 `json:"bodega_herramienta_id,omitempty"`
}

// UpdateActivityRequest body para PUT /api/actividades/:id. Campos nil no se modifican.
// El estado no se cambia aquí: usar iniciar, finalizar o cancelar.
type UpdateActivityRequest struct {
	Descripcion              *string    `json:"descripcion" validate:"omitempty,min=1,max=500"`
	FechaInicio              *time.Time `json:"fecha_inicio"`
	FechaFin                 *time.Time `json:"fecha_fin"`
	TipoActividadID          *int64     `json:"tipo_actividad_id" validate:"omitempty,gt=0"`
	CultivoID                *int64     `json:"cultivo_id" validate:"omitempty,gt=0"`
	Prioridad                *string    `json:"prioridad" validate:"omitempty,oneof=alta media baja"`
	InstruccionesAdicionales *string    `json:"instrucciones_adicionales" validate:"omitempty,max=2000"`
	Usuarios                 *[]int64   `json:"usuarios" validate:"omitempty,dive,gt=0"`
}

// FinalizeActivityRequest body para PATCH /api/actividades/:id/finalizar.
type FinalizeActivityRequest struct {
	FechaFin *time.Time `json:"fecha_fin" validate:"required"`
}

// ActivityResponse actividad con sus préstamos.
type ActivityResponse struct {
	ID                       string                    `json:"id"`
	Descripcion              string                    `json:"descripcion"`
	FechaInicio              time.Time                 `json:"fecha_inicio"`
	FechaFin                 time.Time                 `json:"fecha_fin"`
	TipoActividadID          int64                     `json:"tipo_actividad_id"`
	CultivoID                int64                     `json:"cultivo_id"`
	Estado                   string                    `json:"estado"`
	Prioridad                string                    `json:"prioridad"`
	InstruccionesAdicionales string                    `json:"instrucciones_adicionales"`
	Usuarios                 []int64                   `json:"usuarios"`
	Insumos                  []InsumoLoanResponse      `json:"insumos,omitempty"`
	Herramientas             []HerramientaLoanResponse `json:"herramientas,omitempty"`
	CreatedAt                time.Time                 `json:"created_at"`
	UpdatedAt                time.Time                 `json:"updated_at"`
}

// InsumoLoanResponse préstamo (consumo) de insumo.
type InsumoLoanResponse struct {
	ID               string          `json:"id"`
	InsumoID         int64           `json:"insumo_id"`
	CantidadUsada    decimal.Decimal `json:"cantidad_usada"`
	CantidadDevuelta decimal.Decimal `json:"cantidad_devuelta"`
	UnidadMedidaID   int64           `json:"unidad_medida_id,omitempty"`
	FechaDevolucion  *time.Time      `json:"fecha_devolucion,omitempty"`
	Restituido       bool            `json:"restituido"`
}

// HerramientaLoanResponse préstamo de herramienta.
type HerramientaLoanResponse struct {
	ID                  string     `json:"id"`
	HerramientaID       int64      `json:"herramienta_id"`
	BodegaHerramientaID int64      `json:"bodega_herramienta_id"`
	CantidadEntregada   int        `json:"cantidad_entregada"`
	CantidadDevuelta    int        `json:"cantidad_devuelta"`
	Entregada           bool       `json:"entregada"`
	Devuelta            bool       `json:"devuelta"`
	FechaDevolucion     *time.Time `json:"fecha_devolucion,omitempty"`
}

// ActivityListResponse lista paginada de actividades (sin préstamos).
type ActivityListResponse struct {
	Items []ActivityResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// CloseActivityResponse resultado de finalizar o cancelar.
type CloseActivityResponse struct {
	Message               string `json:"message"`
	InsumosCerrados       int    `json:"insumos_cerrados"`
	HerramientasDevueltas int    `json:"herramientas_devueltas"`
}

// DeleteActivityResponse resultado de eliminar.
type DeleteActivityResponse struct {
	Message               string `json:"message"`
	InsumosRestituidos    int    `json:"insumos_restituidos"`
	HerramientasDevueltas int    `json:"herramientas_devueltas"`
}
