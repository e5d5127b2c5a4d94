package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jhoicas/agrosoft-api/internal/application/dto"
	"github.com/jhoicas/agrosoft-api/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Activities  ActivityService
	JWTSecret   string
	ServiceName string
	Log         *logger.Logger
	// Health comprueba el almacenamiento; nil si el backend no lo necesita.
	Health func(ctx context.Context) error
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	// Público
	app.Get("/health", healthHandler(deps))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Rutas protegidas (requieren Bearer Token)
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	actividades := api.Group("/actividades")
	h := NewActivityHandler(deps.Activities, deps.Log)
	actividades.Post("/", h.Create)
	actividades.Get("/", h.List)
	actividades.Get("/:id", h.GetByID)
	actividades.Put("/:id", h.Update)
	actividades.Delete("/:id", h.Delete)
	actividades.Patch("/:id/iniciar", h.Start)
	actividades.Patch("/:id/finalizar", h.Finalize)
	actividades.Patch("/:id/cancelar", h.Cancel)
}

func healthHandler(deps RouterDeps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Health != nil {
			ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Health(ctx); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "UNAVAILABLE", Message: "base de datos no disponible"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok", "service": deps.ServiceName})
	}
}
