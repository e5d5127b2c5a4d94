package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/agrosoft-api/internal/domain"
	"github.com/jhoicas/agrosoft-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// closeMode motivo de cierre de los préstamos abiertos de una actividad.
type closeMode int

const (
	closeNone     closeMode = iota // solo cambia el estado
	closeFinalize                  // insumos consumidos, herramientas devueltas
	closeCancel                    // insumos restituidos al stock, herramientas devueltas
)

// Motivos de cierre reportados en métricas.
const (
	reasonConsumed  = "consumed"
	reasonRestocked = "restocked"
	reasonReturned  = "returned"
)

// resourceLedger libro de préstamos de un tipo de recurso reservable.
// Todas las operaciones reciben repos atados a la transacción del caller.
type resourceLedger interface {
	kind() string
	// reserve descuenta stock y crea un préstamo por solicitud. Devuelve cuántos creó.
	reserve(ctx context.Context, r Repos, actividadID string) (int, error)
	// close cierra los préstamos abiertos. Devuelve cuántos cerró.
	close(ctx context.Context, r Repos, actividadID string, mode closeMode, now time.Time) (int, error)
	// purge compensa el stock de los préstamos abiertos y borra todos los préstamos.
	purge(ctx context.Context, r Repos, actividadID string) (int, error)
}

// ledgers devuelve los libros de una actividad en el orden en que se aplican.
func ledgers(insumos []entity.InsumoRequest, herramientas []entity.HerramientaRequest) []resourceLedger {
	return []resourceLedger{
		insumoLedger{requests: insumos},
		herramientaLedger{requests: herramientas},
	}
}

// insumoLedger consumibles: el stock se descuenta al reservar y no vuelve al finalizar.
type insumoLedger struct {
	requests []entity.InsumoRequest
}

func (insumoLedger) kind() string { return domain.ResourceInsumo }

func (l insumoLedger) reserve(ctx context.Context, r Repos, actividadID string) (int, error) {
	for i, req := range l.requests {
		if err := r.InsumoStock.Reserve(ctx, req.InsumoID, req.CantidadUsada); err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				return 0, &domain.StockError{Violations: []domain.Violation{{
					Resource: domain.ResourceInsumo, ResourceID: req.InsumoID, Index: i,
					Message: fmt.Sprintf("insumo %d: stock insuficiente para %s", req.InsumoID, req.CantidadUsada),
				}}}
			}
			return 0, err
		}
		loan := &entity.InsumoLoan{
			ID:               uuid.New().String(),
			ActividadID:      actividadID,
			InsumoID:         req.InsumoID,
			CantidadUsada:    req.CantidadUsada,
			CantidadDevuelta: decimal.Zero,
			UnidadMedidaID:   req.UnidadMedidaID,
		}
		if err := r.InsumoLoans.Create(ctx, loan); err != nil {
			return 0, err
		}
	}
	return len(l.requests), nil
}

func (insumoLedger) close(ctx context.Context, r Repos, actividadID string, mode closeMode, now time.Time) (int, error) {
	loans, err := r.InsumoLoans.ListByActividad(ctx, actividadID)
	if err != nil {
		return 0, err
	}
	restock := mode == closeCancel
	n := 0
	for _, loan := range loans {
		if !loan.Open() {
			continue
		}
		if restock {
			if err := r.InsumoStock.Release(ctx, loan.InsumoID, loan.CantidadUsada); err != nil {
				return 0, err
			}
		}
		if err := r.InsumoLoans.Close(ctx, loan.ID, restock, now); err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func (insumoLedger) purge(ctx context.Context, r Repos, actividadID string) (int, error) {
	loans, err := r.InsumoLoans.ListByActividad(ctx, actividadID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, loan := range loans {
		// cerrado = consumido o ya restituido: no se vuelve a acreditar
		if !loan.Open() {
			continue
		}
		if err := r.InsumoStock.Release(ctx, loan.InsumoID, loan.CantidadUsada); err != nil {
			return 0, err
		}
		n++
	}
	if err := r.InsumoLoans.DeleteByActividad(ctx, actividadID); err != nil {
		return 0, err
	}
	return n, nil
}

// herramientaLedger prestables: el stock pasa de disponible a prestada y vuelve al cerrar.
type herramientaLedger struct {
	requests []entity.HerramientaRequest
}

func (herramientaLedger) kind() string { return domain.ResourceHerramienta }

func (l herramientaLedger) reserve(ctx context.Context, r Repos, actividadID string) (int, error) {
	for i, req := range l.requests {
		stockID, err := r.HerramientaStock.Reserve(ctx, req.HerramientaID, req.BodegaHerramientaID, req.CantidadEntregada)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				return 0, &domain.StockError{Violations: []domain.Violation{{
					Resource: domain.ResourceHerramienta, ResourceID: req.HerramientaID, Index: i,
					Message: fmt.Sprintf("herramienta %d: stock insuficiente para %d", req.HerramientaID, req.CantidadEntregada),
				}}}
			}
			return 0, err
		}
		loan := &entity.HerramientaLoan{
			ID:                  uuid.New().String(),
			ActividadID:         actividadID,
			HerramientaID:       req.HerramientaID,
			BodegaHerramientaID: stockID,
			CantidadEntregada:   req.CantidadEntregada,
			CantidadDevuelta:    0,
			Entregada:           true,
			Devuelta:            false,
		}
		if err := r.HerramientaLoans.Create(ctx, loan); err != nil {
			return 0, err
		}
	}
	return len(l.requests), nil
}

func (herramientaLedger) close(ctx context.Context, r Repos, actividadID string, _ closeMode, now time.Time) (int, error) {
	loans, err := r.HerramientaLoans.ListByActividad(ctx, actividadID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, loan := range loans {
		if loan.Devuelta {
			continue
		}
		if out := loan.Outstanding(); out > 0 {
			if err := r.HerramientaStock.Release(ctx, loan.BodegaHerramientaID, out); err != nil {
				return 0, err
			}
		}
		if err := r.HerramientaLoans.MarkReturned(ctx, loan.ID, now); err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func (herramientaLedger) purge(ctx context.Context, r Repos, actividadID string) (int, error) {
	loans, err := r.HerramientaLoans.ListByActividad(ctx, actividadID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, loan := range loans {
		if loan.Devuelta {
			continue
		}
		if out := loan.Outstanding(); out > 0 {
			if err := r.HerramientaStock.Release(ctx, loan.BodegaHerramientaID, out); err != nil {
				return 0, err
			}
		}
		n++
	}
	if err := r.HerramientaLoans.DeleteByActividad(ctx, actividadID); err != nil {
		return 0, err
	}
	return n, nil
}

// closeReason motivo de cierre de un libro para las métricas.
func closeReason(kind string, mode closeMode) string {
	if kind == domain.ResourceHerramienta {
		return reasonReturned
	}
	if mode == closeCancel {
		return reasonRestocked
	}
	return reasonConsumed
}
