package activity

import (
	"context"
	"fmt"

	"github.com/jhoicas/agrosoft-api/internal/domain"
	"github.com/jhoicas/agrosoft-api/internal/domain/entity"
	"github.com/jhoicas/agrosoft-api/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// ReservationValidator comprueba, sin escribir, que el stock actual alcanza para las solicitudes.
// Es consultivo: la reserva real vuelve a condicionar cada descuento dentro de la transacción.
type ReservationValidator struct {
	insumos      repository.InsumoStockRepository
	herramientas repository.HerramientaStockRepository
}

// NewReservationValidator construye el validador sobre repositorios de solo lectura.
func NewReservationValidator(insumos repository.InsumoStockRepository, herramientas repository.HerramientaStockRepository) *ReservationValidator {
	return &ReservationValidator{insumos: insumos, herramientas: herramientas}
}

// Validate devuelve todas las violaciones encontradas (vacío = se puede reservar).
// Las solicitudes mal formadas son violaciones, no errores; el error queda para fallos de lectura.
// Los insumos repetidos se suman antes de comparar; las herramientas se descuentan en orden, como en la reserva.
func (v *ReservationValidator) Validate(ctx context.Context, insumos []entity.InsumoRequest, herramientas []entity.HerramientaRequest) ([]domain.Violation, error) {
	violations, err := v.validateInsumos(ctx, insumos)
	if err != nil {
		return nil, err
	}
	hv, err := v.validateHerramientas(ctx, herramientas)
	if err != nil {
		return nil, err
	}
	return append(violations, hv...), nil
}

func (v *ReservationValidator) validateInsumos(ctx context.Context, reqs []entity.InsumoRequest) ([]domain.Violation, error) {
	var violations []domain.Violation
	totals := make(map[int64]decimal.Decimal)
	first := make(map[int64]int)
	var order []int64

	for i, r := range reqs {
		if r.InsumoID <= 0 {
			violations = append(violations, domain.Violation{
				Resource: domain.ResourceInsumo, Index: i,
				Message: fmt.Sprintf("insumos[%d]: insumo_id requerido", i),
			})
			continue
		}
		if !r.CantidadUsada.IsPositive() {
			violations = append(violations, domain.Violation{
				Resource: domain.ResourceInsumo, ResourceID: r.InsumoID, Index: i,
				Message: fmt.Sprintf("insumos[%d]: cantidad_usada debe ser mayor que cero", i),
			})
			continue
		}
		if !r.CantidadUsada.Equal(r.CantidadUsada.Truncate(entity.InsumoScale)) {
			violations = append(violations, domain.Violation{
				Resource: domain.ResourceInsumo, ResourceID: r.InsumoID, Index: i,
				Message: fmt.Sprintf("insumos[%d]: cantidad_usada admite hasta %d decimales", i, entity.InsumoScale),
			})
			continue
		}
		if _, ok := totals[r.InsumoID]; !ok {
			order = append(order, r.InsumoID)
			first[r.InsumoID] = i
		}
		totals[r.InsumoID] = totals[r.InsumoID].Add(r.CantidadUsada)
	}
	if len(order) == 0 {
		return violations, nil
	}

	stock, err := v.insumos.GetByIDs(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("leer stock de insumos: %w", err)
	}
	for _, id := range order {
		s, ok := stock[id]
		switch {
		case !ok:
			violations = append(violations, domain.Violation{
				Resource: domain.ResourceInsumo, ResourceID: id, Index: first[id],
				Message: fmt.Sprintf("insumo %d no existe", id),
			})
		case s.Cantidad.LessThan(totals[id]):
			violations = append(violations, domain.Violation{
				Resource: domain.ResourceInsumo, ResourceID: id, Index: first[id],
				Message: fmt.Sprintf("insumo %d (%s): solicitado %s, disponible %s", id, s.Nombre, totals[id], s.Cantidad),
			})
		}
	}
	return violations, nil
}

// validateHerramientas recorre las solicitudes en el mismo orden que la reserva y descuenta cada una
// de una copia de las filas: sin fila explícita toma la de mayor disponibilidad restante, igual que Reserve.
func (v *ReservationValidator) validateHerramientas(ctx context.Context, reqs []entity.HerramientaRequest) ([]domain.Violation, error) {
	var violations []domain.Violation
	valid := make([]int, 0, len(reqs))
	seenTool := make(map[int64]bool)
	var toolIDs []int64

	for i, r := range reqs {
		if r.HerramientaID <= 0 {
			violations = append(violations, domain.Violation{
				Resource: domain.ResourceHerramienta, Index: i,
				Message: fmt.Sprintf("herramientas[%d]: herramienta_id requerido", i),
			})
			continue
		}
		if r.CantidadEntregada <= 0 {
			violations = append(violations, domain.Violation{
				Resource: domain.ResourceHerramienta, ResourceID: r.HerramientaID, Index: i,
				Message: fmt.Sprintf("herramientas[%d]: cantidad_entregada debe ser mayor que cero", i),
			})
			continue
		}
		if r.BodegaHerramientaID < 0 {
			violations = append(violations, domain.Violation{
				Resource: domain.ResourceHerramienta, ResourceID: r.HerramientaID, Index: i,
				Message: fmt.Sprintf("herramientas[%d]: bodega_herramienta_id inválido", i),
			})
			continue
		}
		valid = append(valid, i)
		if !seenTool[r.HerramientaID] {
			seenTool[r.HerramientaID] = true
			toolIDs = append(toolIDs, r.HerramientaID)
		}
	}
	if len(valid) == 0 {
		return violations, nil
	}

	rows, err := v.herramientas.ListByHerramientas(ctx, toolIDs)
	if err != nil {
		return nil, fmt.Errorf("leer stock de herramientas: %w", err)
	}
	byTool := make(map[int64][]*entity.HerramientaBodegaStock)
	left := make(map[int64]int, len(rows))
	for _, row := range rows {
		byTool[row.HerramientaID] = append(byTool[row.HerramientaID], row)
		left[row.ID] = row.CantidadDisponible
	}
	taken := make(map[int64]int)

	for _, i := range valid {
		r := reqs[i]
		row := pickRow(byTool[r.HerramientaID], r.BodegaHerramientaID, left)
		switch {
		case row == nil && r.BodegaHerramientaID != 0:
			violations = append(violations, domain.Violation{
				Resource: domain.ResourceHerramienta, ResourceID: r.HerramientaID, Index: i,
				Message: fmt.Sprintf("herramienta %d no está en bodega_herramienta %d", r.HerramientaID, r.BodegaHerramientaID),
			})
		case row == nil:
			violations = append(violations, domain.Violation{
				Resource: domain.ResourceHerramienta, ResourceID: r.HerramientaID, Index: i,
				Message: fmt.Sprintf("herramienta %d no existe en ninguna bodega", r.HerramientaID),
			})
		case left[row.ID] < r.CantidadEntregada:
			violations = append(violations, domain.Violation{
				Resource: domain.ResourceHerramienta, ResourceID: r.HerramientaID, Index: i,
				Message: fmt.Sprintf("herramienta %d (bodega_herramienta %d): solicitado %d, disponible %d",
					r.HerramientaID, row.ID, taken[row.ID]+r.CantidadEntregada, row.CantidadDisponible),
			})
		default:
			left[row.ID] -= r.CantidadEntregada
			taken[row.ID] += r.CantidadEntregada
		}
	}
	return violations, nil
}

// pickRow devuelve la fila pedida o, sin fila explícita, la de mayor disponibilidad restante (empate: menor id).
func pickRow(rows []*entity.HerramientaBodegaStock, bodegaID int64, left map[int64]int) *entity.HerramientaBodegaStock {
	var best *entity.HerramientaBodegaStock
	for _, r := range rows {
		if bodegaID != 0 {
			if r.ID == bodegaID {
				return r
			}
			continue
		}
		if best == nil || left[r.ID] > left[best.ID] ||
			(left[r.ID] == left[best.ID] && r.ID < best.ID) {
			best = r
		}
	}
	return best
}
