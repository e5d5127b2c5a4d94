package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jhoicas/agrosoft-api/internal/application/activity"
	"github.com/jhoicas/agrosoft-api/internal/application/dto"
	"github.com/jhoicas/agrosoft-api/internal/domain"
	"github.com/jhoicas/agrosoft-api/internal/domain/entity"
	"github.com/jhoicas/agrosoft-api/internal/domain/repository"
	"github.com/jhoicas/agrosoft-api/pkg/logger"
)

// ActivityService operaciones del ciclo de vida que expone la API.
// *activity.LifecycleUseCase la implementa.
type ActivityService interface {
	CreateFromRequest(ctx context.Context, in dto.CreateActivityRequest) (*activity.ActivityDetail, error)
	UpdateFromRequest(ctx context.Context, id string, in dto.UpdateActivityRequest) (*activity.ActivityDetail, error)
	FinalizeFromRequest(ctx context.Context, id string, in dto.FinalizeActivityRequest) (activity.CloseResult, error)
	Start(ctx context.Context, id string) (*activity.ActivityDetail, error)
	Cancel(ctx context.Context, id string) (activity.CloseResult, error)
	Delete(ctx context.Context, id string) (activity.DeleteResult, error)
	Get(ctx context.Context, id string) (*activity.ActivityDetail, error)
	List(ctx context.Context, filter repository.ActivityFilter) ([]*entity.Activity, error)
}

var _ ActivityService = (*activity.LifecycleUseCase)(nil)

// ActivityHandler maneja las peticiones HTTP de actividades (protegido).
type ActivityHandler struct {
	svc ActivityService
	log *logger.Logger
}

// NewActivityHandler construye el handler.
func NewActivityHandler(svc ActivityService, log *logger.Logger) *ActivityHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ActivityHandler{svc: svc, log: log.Named("http")}
}

// Create godoc
// @Summary      Crear actividad y reservar insumos y herramientas
// @Tags         actividades
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateActivityRequest  true  "Actividad con sus recursos"
// @Success      201   {object}  dto.ActivityResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.StockErrorResponse
// @Router       /api/actividades [post]
func (h *ActivityHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateActivityRequest
	if err := c.BodyParser(&in); err != nil {
		return writeError(c, h.log, bodyError(err))
	}
	if err := validateRequest(in); err != nil {
		return writeError(c, h.log, err)
	}
	out, err := h.svc.CreateFromRequest(c.Context(), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "actividad creada",
		"actividad": activity.ToResponse(out),
	})
}

// GetByID godoc
// @Summary      Obtener actividad con sus préstamos
// @Tags         actividades
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la actividad"
// @Success      200  {object}  dto.ActivityResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/actividades/{id} [get]
func (h *ActivityHandler) GetByID(c *fiber.Ctx) error {
	id, err := activityID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	out, err := h.svc.Get(c.Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(activity.ToResponse(out))
}

// List godoc
// @Summary      Listar actividades
// @Tags         actividades
// @Security     Bearer
// @Produce      json
// @Param        estado  query  string  false  "pendiente, en_progreso, completada o cancelada"
// @Param        limit   query  int     false  "Límite"  default(20)
// @Param        offset  query  int     false  "Offset"  default(0)
// @Success      200     {object}  dto.ActivityListResponse
// @Failure      400     {object}  dto.ErrorResponse
// @Router       /api/actividades [get]
func (h *ActivityHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return writeError(c, h.log, domain.NewValidationError("limit", "limit y offset deben ser enteros"))
	}
	page.DefaultPage()
	items, err := h.svc.List(c.Context(), repository.ActivityFilter{
		Estado: entity.ActivityState(c.Query("estado")),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(activity.ToListResponse(items, page.Limit, page.Offset))
}

// Update godoc
// @Summary      Actualizar datos descriptivos de la actividad
// @Tags         actividades
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                     true  "ID de la actividad"
// @Param        body  body  dto.UpdateActivityRequest  true  "Campos a modificar"
// @Success      200   {object}  dto.ActivityResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/actividades/{id} [put]
func (h *ActivityHandler) Update(c *fiber.Ctx) error {
	id, err := activityID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var in dto.UpdateActivityRequest
	if err := c.BodyParser(&in); err != nil {
		return writeError(c, h.log, bodyError(err))
	}
	if err := validateRequest(in); err != nil {
		return writeError(c, h.log, err)
	}
	out, err := h.svc.UpdateFromRequest(c.Context(), id, in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(activity.ToResponse(out))
}

// Start godoc
// @Summary      Iniciar actividad (pendiente a en_progreso)
// @Tags         actividades
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la actividad"
// @Success      200  {object}  dto.ActivityResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/actividades/{id}/iniciar [patch]
func (h *ActivityHandler) Start(c *fiber.Ctx) error {
	id, err := activityID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	out, err := h.svc.Start(c.Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(activity.ToResponse(out))
}

// Finalize godoc
// @Summary      Finalizar actividad: consume insumos y devuelve herramientas
// @Tags         actividades
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                       true  "ID de la actividad"
// @Param        body  body  dto.FinalizeActivityRequest  true  "Fecha de finalización"
// @Success      200   {object}  dto.CloseActivityResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/actividades/{id}/finalizar [patch]
func (h *ActivityHandler) Finalize(c *fiber.Ctx) error {
	id, err := activityID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var in dto.FinalizeActivityRequest
	if err := c.BodyParser(&in); err != nil {
		return writeError(c, h.log, bodyError(err))
	}
	if err := validateRequest(in); err != nil {
		return writeError(c, h.log, err)
	}
	res, err := h.svc.FinalizeFromRequest(c.Context(), id, in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.CloseActivityResponse{
		Message:               "actividad finalizada",
		InsumosCerrados:       res.InsumosCerrados,
		HerramientasDevueltas: res.HerramientasDevueltas,
	})
}

// Cancel godoc
// @Summary      Cancelar actividad: restituye insumos y devuelve herramientas
// @Tags         actividades
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la actividad"
// @Success      200  {object}  dto.CloseActivityResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/actividades/{id}/cancelar [patch]
func (h *ActivityHandler) Cancel(c *fiber.Ctx) error {
	id, err := activityID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	res, err := h.svc.Cancel(c.Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.CloseActivityResponse{
		Message:               "actividad cancelada",
		InsumosCerrados:       res.InsumosCerrados,
		HerramientasDevueltas: res.HerramientasDevueltas,
	})
}

// Delete godoc
// @Summary      Eliminar actividad y compensar préstamos abiertos
// @Tags         actividades
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la actividad"
// @Success      200  {object}  dto.DeleteActivityResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/actividades/{id} [delete]
func (h *ActivityHandler) Delete(c *fiber.Ctx) error {
	id, err := activityID(c)
	if err != nil {
		return writeError(c, h.log, err)
	}
	res, err := h.svc.Delete(c.Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.DeleteActivityResponse{
		Message:               "actividad eliminada",
		InsumosRestituidos:    res.InsumosRestituidos,
		HerramientasDevueltas: res.HerramientasDevueltas,
	})
}

// activityID lee y valida el parámetro :id (UUID).
func activityID(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if id == "" {
		return "", domain.NewValidationError("id", "es requerido")
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", domain.NewValidationError("id", "debe ser un UUID")
	}
	return id, nil
}
