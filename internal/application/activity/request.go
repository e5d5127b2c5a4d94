package activity

import (
	"context"

	"github.com/jhoicas/agrosoft-api/internal/application/dto"
	"github.com/jhoicas/agrosoft-api/internal/domain/entity"
)

// CreateFromRequest adapta el request HTTP al caso de uso Create(ctx, CreateInput).
func (uc *LifecycleUseCase) CreateFromRequest(ctx context.Context, in dto.CreateActivityRequest) (*ActivityDetail, error) {
	input := CreateInput{
		Descripcion:              in.Descripcion,
		FechaInicio:              in.FechaInicio,
		FechaFin:                 in.FechaFin,
		TipoActividadID:          in.TipoActividadID,
		CultivoID:                in.CultivoID,
		Estado:                   entity.ActivityState(in.Estado),
		Prioridad:                in.Prioridad,
		InstruccionesAdicionales: in.InstruccionesAdicionales,
		Usuarios:                 in.Usuarios,
		Insumos:                  make([]entity.InsumoRequest, 0, len(in.Insumos)),
		Herramientas:             make([]entity.HerramientaRequest, 0, len(in.Herramientas)),
	}
	for _, r := range in.Insumos {
		input.Insumos = append(input.Insumos, entity.InsumoRequest{
			InsumoID:       r.InsumoID,
			CantidadUsada:  r.CantidadUsada,
			UnidadMedidaID: r.UnidadMedidaID,
		})
	}
	for _, r := range in.Herramientas {
		input.Herramientas = append(input.Herramientas, entity.HerramientaRequest{
			HerramientaID:       r.HerramientaID,
			CantidadEntregada:   r.CantidadEntregada,
			BodegaHerramientaID: r.BodegaHerramientaID,
		})
	}
	return uc.Create(ctx, input)
}

// UpdateFromRequest adapta el request HTTP al caso de uso Update.
func (uc *LifecycleUseCase) UpdateFromRequest(ctx context.Context, id string, in dto.UpdateActivityRequest) (*ActivityDetail, error) {
	return uc.Update(ctx, id, UpdateInput{
		Descripcion:              in.Descripcion,
		FechaInicio:              in.FechaInicio,
		FechaFin:                 in.FechaFin,
		TipoActividadID:          in.TipoActividadID,
		CultivoID:                in.CultivoID,
		Prioridad:                in.Prioridad,
		InstruccionesAdicionales: in.InstruccionesAdicionales,
		Usuarios:                 in.Usuarios,
	})
}

// FinalizeFromRequest adapta el request HTTP al caso de uso Finalize.
func (uc *LifecycleUseCase) FinalizeFromRequest(ctx context.Context, id string, in dto.FinalizeActivityRequest) (CloseResult, error) {
	return uc.Finalize(ctx, id, in.FechaFin)
}

// ToResponse convierte el detalle de una actividad a su DTO.
func ToResponse(d *ActivityDetail) dto.ActivityResponse {
	out := toActivityResponse(d.Activity)
	out.Insumos = make([]dto.InsumoLoanResponse, 0, len(d.Insumos))
	for _, l := range d.Insumos {
		out.Insumos = append(out.Insumos, dto.InsumoLoanResponse{
			ID:               l.ID,
			InsumoID:         l.InsumoID,
			CantidadUsada:    l.CantidadUsada,
			CantidadDevuelta: l.CantidadDevuelta,
			UnidadMedidaID:   l.UnidadMedidaID,
			FechaDevolucion:  l.FechaDevolucion,
			Restituido:       l.Restituido,
		})
	}
	out.Herramientas = make([]dto.HerramientaLoanResponse, 0, len(d.Herramientas))
	for _, l := range d.Herramientas {
		out.Herramientas = append(out.Herramientas, dto.HerramientaLoanResponse{
			ID:                  l.ID,
			HerramientaID:       l.HerramientaID,
			BodegaHerramientaID: l.BodegaHerramientaID,
			CantidadEntregada:   l.CantidadEntregada,
			CantidadDevuelta:    l.CantidadDevuelta,
			Entregada:           l.Entregada,
			Devuelta:            l.Devuelta,
			FechaDevolucion:     l.FechaDevolucion,
		})
	}
	return out
}

// ToListResponse convierte un listado de actividades (sin préstamos) a su DTO.
func ToListResponse(items []*entity.Activity, limit, offset int) dto.ActivityListResponse {
	out := dto.ActivityListResponse{
		Items: make([]dto.ActivityResponse, 0, len(items)),
		Page:  dto.PageResponse{Limit: limit, Offset: offset},
	}
	for _, a := range items {
		out.Items = append(out.Items, toActivityResponse(a))
	}
	return out
}

func toActivityResponse(a *entity.Activity) dto.ActivityResponse {
	usuarios := a.Usuarios
	if usuarios == nil {
		usuarios = []int64{}
	}
	return dto.ActivityResponse{
		ID:                       a.ID,
		Descripcion:              a.Descripcion,
		FechaInicio:              a.FechaInicio,
		FechaFin:                 a.FechaFin,
		TipoActividadID:          a.TipoActividadID,
		CultivoID:                a.CultivoID,
		Estado:                   string(a.Estado),
		Prioridad:                a.Prioridad,
		InstruccionesAdicionales: a.InstruccionesAdicionales,
		Usuarios:                 usuarios,
		CreatedAt:                a.CreatedAt,
		UpdatedAt:                a.UpdatedAt,
	}
}
