package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/agrosoft-api/internal/domain"
	"github.com/jhoicas/agrosoft-api/internal/domain/entity"
	"github.com/jhoicas/agrosoft-api/internal/domain/repository"
	"github.com/jhoicas/agrosoft-api/internal/observability"
	"github.com/jhoicas/agrosoft-api/pkg/logger"
)

// LifecycleUseCase dueño del estado de Activity. Orquesta crear, iniciar, actualizar, finalizar,
// cancelar y eliminar como transacciones atómicas sobre la actividad y los libros de insumos y herramientas.
type LifecycleUseCase struct {
	txRunner  TxRunner
	repos     Repos // lecturas fuera de transacción
	validator *ReservationValidator
	log       *logger.Logger
	now       func() time.Time
}

// NewLifecycleUseCase construye el caso de uso. repos se usa para lecturas y para el validador de reservas.
func NewLifecycleUseCase(txRunner TxRunner, repos Repos, log *logger.Logger) *LifecycleUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &LifecycleUseCase{
		txRunner:  txRunner,
		repos:     repos,
		validator: NewReservationValidator(repos.InsumoStock, repos.HerramientaStock),
		log:       log.Named("actividades"),
		now:       time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (uc *LifecycleUseCase) WithClock(now func() time.Time) *LifecycleUseCase {
	uc.now = now
	return uc
}

// CreateInput datos para crear una actividad con sus reservas.
type CreateInput struct {
	Descripcion              string
	FechaInicio              time.Time
	FechaFin                 time.Time // planificada
	TipoActividadID          int64
	CultivoID                int64
	Estado                   entity.ActivityState // vacío = pendiente
	Prioridad                string               // vacío = media
	InstruccionesAdicionales string
	Usuarios                 []int64
	Insumos                  []entity.InsumoRequest
	Herramientas             []entity.HerramientaRequest
}

// UpdateInput campos descriptivos a modificar; nil = sin cambio.
type UpdateInput struct {
	Descripcion              *string
	FechaInicio              *time.Time
	FechaFin                 *time.Time
	TipoActividadID          *int64
	CultivoID                *int64
	Prioridad                *string
	InstruccionesAdicionales *string
	Usuarios                 *[]int64
}

// ActivityDetail actividad con sus préstamos.
type ActivityDetail struct {
	Activity     *entity.Activity
	Insumos      []*entity.InsumoLoan
	Herramientas []*entity.HerramientaLoan
}

// CloseResult préstamos cerrados al finalizar o cancelar.
type CloseResult struct {
	InsumosCerrados       int
	HerramientasDevueltas int
}

// DeleteResult compensaciones aplicadas al eliminar.
type DeleteResult struct {
	InsumosRestituidos    int
	HerramientasDevueltas int
}

// Create valida, comprueba stock y, en una sola transacción, inserta la actividad, sus usuarios
// y un préstamo por cada insumo y herramienta solicitados, descontando stock de forma condicional.
// Cualquier fallo deshace todo.
func (uc *LifecycleUseCase) Create(ctx context.Context, in CreateInput) (detail *ActivityDetail, err error) {
	start := time.Now()
	defer func() { uc.observe("crear", start, err) }()

	if verr := normalizeCreate(&in); verr != nil {
		return nil, verr
	}

	violations, err := uc.validator.Validate(ctx, in.Insumos, in.Herramientas)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		recordRejections(violations)
		return nil, &domain.StockError{Violations: violations}
	}

	now := uc.now()
	act := &entity.Activity{
		ID:                       uuid.New().String(),
		Descripcion:              in.Descripcion,
		FechaInicio:              in.FechaInicio,
		FechaFin:                 in.FechaFin,
		TipoActividadID:          in.TipoActividadID,
		CultivoID:                in.CultivoID,
		Estado:                   in.Estado,
		Prioridad:                in.Prioridad,
		InstruccionesAdicionales: in.InstruccionesAdicionales,
		Usuarios:                 uniqueIDs(in.Usuarios),
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	reserved := make(map[string]int)
	err = uc.txRunner.Run(ctx, func(r Repos) error {
		if err := r.Activities.Create(ctx, act); err != nil {
			return err
		}
		for _, l := range ledgers(in.Insumos, in.Herramientas) {
			n, err := l.reserve(ctx, r, act.ID)
			if err != nil {
				return err
			}
			reserved[l.kind()] = n
		}
		var err error
		detail, err = loadDetail(ctx, r, act.ID)
		return err
	})
	if err != nil {
		var stockErr *domain.StockError
		if errors.As(err, &stockErr) {
			recordRejections(stockErr.Violations)
		}
		return nil, err
	}

	for kind, n := range reserved {
		observability.RecordReservations(kind, n)
	}
	uc.log.Info().
		Str("actividad_id", act.ID).
		Int("insumos", reserved[domain.ResourceInsumo]).
		Int("herramientas", reserved[domain.ResourceHerramienta]).
		Msg("actividad creada")
	return detail, nil
}

// Start pasa una actividad pendiente a en_progreso. No toca stock.
func (uc *LifecycleUseCase) Start(ctx context.Context, id string) (detail *ActivityDetail, err error) {
	start := time.Now()
	defer func() { uc.observe("iniciar", start, err) }()

	if _, err = uc.transition(ctx, id, entity.ActivityStateInProgress, nil, closeNone); err != nil {
		return nil, err
	}
	uc.log.Info().Str("actividad_id", id).Msg("actividad iniciada")
	return loadDetail(ctx, uc.repos, id)
}

// Finalize marca la actividad como completada con la fecha real de fin: los insumos quedan consumidos
// y cada herramienta pendiente vuelve a la fila de bodega de la que salió.
// Rechaza (ErrConflict) si la actividad ya está completada o cancelada.
func (uc *LifecycleUseCase) Finalize(ctx context.Context, id string, fechaFin *time.Time) (res CloseResult, err error) {
	start := time.Now()
	defer func() { uc.observe("finalizar", start, err) }()

	if fechaFin == nil || fechaFin.IsZero() {
		return CloseResult{}, domain.NewValidationError("fecha_fin", "es requerida")
	}
	res, err = uc.transition(ctx, id, entity.ActivityStateCompleted, fechaFin, closeFinalize)
	if err != nil {
		return CloseResult{}, err
	}
	uc.log.Info().
		Str("actividad_id", id).
		Int("insumos_cerrados", res.InsumosCerrados).
		Int("herramientas_devueltas", res.HerramientasDevueltas).
		Msg("actividad finalizada")
	return res, nil
}

// Cancel marca la actividad como cancelada: los insumos abiertos se restituyen al stock
// y las herramientas pendientes se devuelven.
func (uc *LifecycleUseCase) Cancel(ctx context.Context, id string) (res CloseResult, err error) {
	start := time.Now()
	defer func() { uc.observe("cancelar", start, err) }()

	res, err = uc.transition(ctx, id, entity.ActivityStateCancelled, nil, closeCancel)
	if err != nil {
		return CloseResult{}, err
	}
	uc.log.Info().
		Str("actividad_id", id).
		Int("insumos_restituidos", res.InsumosCerrados).
		Int("herramientas_devueltas", res.HerramientasDevueltas).
		Msg("actividad cancelada")
	return res, nil
}

// transition aplica un cambio de estado condicionado y, según mode, cierra los préstamos abiertos.
func (uc *LifecycleUseCase) transition(ctx context.Context, id string, to entity.ActivityState, fechaFin *time.Time, mode closeMode) (CloseResult, error) {
	var res CloseResult
	now := uc.now()
	err := uc.txRunner.Run(ctx, func(r Repos) error {
		act, err := r.Activities.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if act == nil {
			return fmt.Errorf("actividad %s: %w", id, domain.ErrNotFound)
		}
		if !entity.CanTransition(act.Estado, to) {
			return fmt.Errorf("actividad %s en estado %s: %w", id, act.Estado, domain.ErrConflict)
		}
		if fechaFin != nil && fechaFin.Before(act.FechaInicio) {
			return domain.NewValidationError("fecha_fin", "debe ser posterior o igual a fecha_inicio")
		}
		ok, err := r.Activities.TransitionState(ctx, id, entity.SourcesFor(to), to, fechaFin, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("actividad %s cambió de estado: %w", id, domain.ErrConflict)
		}
		if mode == closeNone {
			return nil
		}
		for _, l := range ledgers(nil, nil) {
			n, err := l.close(ctx, r, id, mode, now)
			if err != nil {
				return err
			}
			switch l.kind() {
			case domain.ResourceInsumo:
				res.InsumosCerrados = n
			case domain.ResourceHerramienta:
				res.HerramientasDevueltas = n
			}
		}
		return nil
	})
	if err != nil {
		return CloseResult{}, err
	}
	if mode != closeNone {
		observability.RecordLoansClosed(domain.ResourceInsumo, closeReason(domain.ResourceInsumo, mode), res.InsumosCerrados)
		observability.RecordLoansClosed(domain.ResourceHerramienta, closeReason(domain.ResourceHerramienta, mode), res.HerramientasDevueltas)
	}
	return res, nil
}

// Update modifica campos descriptivos y usuarios de una actividad no terminal. No toca stock ni estado.
func (uc *LifecycleUseCase) Update(ctx context.Context, id string, in UpdateInput) (detail *ActivityDetail, err error) {
	start := time.Now()
	defer func() { uc.observe("actualizar", start, err) }()

	now := uc.now()
	err = uc.txRunner.Run(ctx, func(r Repos) error {
		act, err := r.Activities.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if act == nil {
			return fmt.Errorf("actividad %s: %w", id, domain.ErrNotFound)
		}
		if act.Estado.Terminal() {
			return fmt.Errorf("actividad %s en estado %s: %w", id, act.Estado, domain.ErrConflict)
		}
		if verr := applyUpdate(act, in); verr != nil {
			return verr
		}
		act.UpdatedAt = now
		if err := r.Activities.Update(ctx, act); err != nil {
			return err
		}
		detail, err = loadDetail(ctx, r, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// Delete elimina la actividad en cualquier estado. Solo se compensan los préstamos aún abiertos:
// lo consumido al finalizar, lo restituido al cancelar y las herramientas ya devueltas no vuelven a acreditarse.
func (uc *LifecycleUseCase) Delete(ctx context.Context, id string) (res DeleteResult, err error) {
	start := time.Now()
	defer func() { uc.observe("eliminar", start, err) }()

	err = uc.txRunner.Run(ctx, func(r Repos) error {
		act, err := r.Activities.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if act == nil {
			return fmt.Errorf("actividad %s: %w", id, domain.ErrNotFound)
		}
		for _, l := range ledgers(nil, nil) {
			n, err := l.purge(ctx, r, id)
			if err != nil {
				return err
			}
			switch l.kind() {
			case domain.ResourceInsumo:
				res.InsumosRestituidos = n
			case domain.ResourceHerramienta:
				res.HerramientasDevueltas = n
			}
		}
		return r.Activities.Delete(ctx, id)
	})
	if err != nil {
		return DeleteResult{}, err
	}
	observability.RecordLoansClosed(domain.ResourceInsumo, reasonRestocked, res.InsumosRestituidos)
	observability.RecordLoansClosed(domain.ResourceHerramienta, reasonReturned, res.HerramientasDevueltas)
	uc.log.Info().
		Str("actividad_id", id).
		Int("insumos_restituidos", res.InsumosRestituidos).
		Int("herramientas_devueltas", res.HerramientasDevueltas).
		Msg("actividad eliminada")
	return res, nil
}

// Get devuelve la actividad con sus préstamos.
func (uc *LifecycleUseCase) Get(ctx context.Context, id string) (*ActivityDetail, error) {
	return loadDetail(ctx, uc.repos, id)
}

// List lista actividades, opcionalmente filtradas por estado.
func (uc *LifecycleUseCase) List(ctx context.Context, filter repository.ActivityFilter) ([]*entity.Activity, error) {
	if filter.Estado != "" && !filter.Estado.Valid() {
		return nil, domain.NewValidationError("estado", "valor desconocido")
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return uc.repos.Activities.List(ctx, filter)
}

func loadDetail(ctx context.Context, r Repos, id string) (*ActivityDetail, error) {
	act, err := r.Activities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if act == nil {
		return nil, fmt.Errorf("actividad %s: %w", id, domain.ErrNotFound)
	}
	insumos, err := r.InsumoLoans.ListByActividad(ctx, id)
	if err != nil {
		return nil, err
	}
	herramientas, err := r.HerramientaLoans.ListByActividad(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ActivityDetail{Activity: act, Insumos: insumos, Herramientas: herramientas}, nil
}

// normalizeCreate aplica valores por defecto y valida los campos de la actividad.
// Las solicitudes de insumos y herramientas las valida ReservationValidator.
func normalizeCreate(in *CreateInput) *domain.ValidationError {
	fields := make(map[string]string)
	in.Descripcion = strings.TrimSpace(in.Descripcion)
	if in.Descripcion == "" {
		fields["descripcion"] = "es requerida"
	}
	if in.FechaInicio.IsZero() {
		fields["fecha_inicio"] = "es requerida"
	}
	if in.FechaFin.IsZero() {
		fields["fecha_fin"] = "es requerida"
	} else if in.FechaFin.Before(in.FechaInicio) {
		fields["fecha_fin"] = "debe ser posterior o igual a fecha_inicio"
	}
	if in.TipoActividadID <= 0 {
		fields["tipo_actividad_id"] = "es requerido"
	}
	if in.CultivoID <= 0 {
		fields["cultivo_id"] = "es requerido"
	}
	if in.Estado == "" {
		in.Estado = entity.ActivityStatePending
	}
	if in.Estado != entity.ActivityStatePending && in.Estado != entity.ActivityStateInProgress {
		fields["estado"] = "solo se admite pendiente o en_progreso al crear"
	}
	if in.Prioridad == "" {
		in.Prioridad = entity.PriorityMedium
	}
	if !entity.ValidPriority(in.Prioridad) {
		fields["prioridad"] = "debe ser alta, media o baja"
	}
	for i, u := range in.Usuarios {
		if u <= 0 {
			fields[fmt.Sprintf("usuarios[%d]", i)] = "id inválido"
		}
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func applyUpdate(act *entity.Activity, in UpdateInput) *domain.ValidationError {
	fields := make(map[string]string)
	if in.Descripcion != nil {
		if d := strings.TrimSpace(*in.Descripcion); d == "" {
			fields["descripcion"] = "no puede quedar vacía"
		} else {
			act.Descripcion = d
		}
	}
	if in.FechaInicio != nil {
		act.FechaInicio = *in.FechaInicio
	}
	if in.FechaFin != nil {
		act.FechaFin = *in.FechaFin
	}
	if act.FechaFin.Before(act.FechaInicio) {
		fields["fecha_fin"] = "debe ser posterior o igual a fecha_inicio"
	}
	if in.TipoActividadID != nil {
		if *in.TipoActividadID <= 0 {
			fields["tipo_actividad_id"] = "id inválido"
		}
		act.TipoActividadID = *in.TipoActividadID
	}
	if in.CultivoID != nil {
		if *in.CultivoID <= 0 {
			fields["cultivo_id"] = "id inválido"
		}
		act.CultivoID = *in.CultivoID
	}
	if in.Prioridad != nil {
		if !entity.ValidPriority(*in.Prioridad) {
			fields["prioridad"] = "debe ser alta, media o baja"
		}
		act.Prioridad = *in.Prioridad
	}
	if in.InstruccionesAdicionales != nil {
		act.InstruccionesAdicionales = *in.InstruccionesAdicionales
	}
	if in.Usuarios != nil {
		for i, u := range *in.Usuarios {
			if u <= 0 {
				fields[fmt.Sprintf("usuarios[%d]", i)] = "id inválido"
			}
		}
		act.Usuarios = uniqueIDs(*in.Usuarios)
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func recordRejections(violations []domain.Violation) {
	for _, v := range violations {
		observability.RecordRejection(v.Resource)
	}
}

func (uc *LifecycleUseCase) observe(op string, start time.Time, err error) {
	outcome := outcomeOf(err)
	observability.ObserveOperation(op, outcome, time.Since(start))
	if outcome == observability.OutcomeError {
		uc.log.Error().Err(err).Str("operacion", op).Msg("operación de actividad fallida")
	} else if err != nil {
		uc.log.Debug().Err(err).Str("operacion", op).Str("resultado", outcome).Msg("operación de actividad rechazada")
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, domain.ErrInsufficientStock):
		return observability.OutcomeRejected
	case errors.Is(err, domain.ErrNotFound):
		return observability.OutcomeNotFound
	case errors.Is(err, domain.ErrConflict):
		return observability.OutcomeConflict
	case errors.Is(err, domain.ErrInvalidInput):
		return observability.OutcomeInvalid
	default:
		return observability.OutcomeError
	}
}
