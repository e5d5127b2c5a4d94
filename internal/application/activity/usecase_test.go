package activity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agrosoft-api/internal/application/activity"
	"github.com/jhoicas/agrosoft-api/internal/domain"
	"github.com/jhoicas/agrosoft-api/internal/domain/entity"
	"github.com/jhoicas/agrosoft-api/internal/domain/repository"
	"github.com/jhoicas/agrosoft-api/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	insumoUrea   int64 = 1
	insumoAbono  int64 = 2
	palaID       int64 = 10
	palaBodega1  int64 = 100
	palaBodega2  int64 = 101
	machete      int64 = 11
	macheteFila  int64 = 110
	testCultivo  int64 = 5
	testTipoLabo int64 = 3
)

var (
	day0 = time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	now0 = time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
)

func newFixture(t *testing.T) (*memory.Store, *activity.LifecycleUseCase) {
	t.Helper()
	s := memory.NewStore()
	s.PutInsumo(entity.InsumoStock{ID: insumoUrea, Nombre: "Urea", Cantidad: decimal.NewFromInt(10)})
	s.PutInsumo(entity.InsumoStock{ID: insumoAbono, Nombre: "Abono orgánico", Cantidad: decimal.RequireFromString("2.5")})
	s.PutHerramienta(entity.HerramientaBodegaStock{ID: palaBodega1, BodegaID: 1, HerramientaID: palaID, CantidadDisponible: 2})
	s.PutHerramienta(entity.HerramientaBodegaStock{ID: palaBodega2, BodegaID: 2, HerramientaID: palaID, CantidadDisponible: 4})
	s.PutHerramienta(entity.HerramientaBodegaStock{ID: macheteFila, BodegaID: 1, HerramientaID: machete, CantidadDisponible: 1})
	uc := activity.NewLifecycleUseCase(s, s.Repos(), nil).WithClock(func() time.Time { return now0 })
	return s, uc
}

func baseInput() activity.CreateInput {
	return activity.CreateInput{
		Descripcion:     "Fertilización lote 4",
		FechaInicio:     day0,
		FechaFin:        day0.Add(48 * time.Hour),
		TipoActividadID: testTipoLabo,
		CultivoID:       testCultivo,
		Usuarios:        []int64{7, 8, 7},
	}
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func insumo(t *testing.T, s *memory.Store, id int64) decimal.Decimal {
	t.Helper()
	stock, err := s.Repos().InsumoStock.GetByIDs(context.Background(), []int64{id})
	require.NoError(t, err)
	require.Contains(t, stock, id)
	return stock[id].Cantidad
}

func herramientaFila(t *testing.T, s *memory.Store, herramientaID, filaID int64) entity.HerramientaBodegaStock {
	t.Helper()
	rows, err := s.Repos().HerramientaStock.ListByHerramientas(context.Background(), []int64{herramientaID})
	require.NoError(t, err)
	for _, r := range rows {
		if r.ID == filaID {
			return *r
		}
	}
	t.Fatalf("fila %d no encontrada", filaID)
	return entity.HerramientaBodegaStock{}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, qty(want).Equal(got), "esperado %s, obtenido %s", want, got)
}

// crearConRecursos crea una actividad con 3 de urea y 3 palas (automática) + 1 machete.
func crearConRecursos(t *testing.T, uc *activity.LifecycleUseCase) *activity.ActivityDetail {
	t.Helper()
	in := baseInput()
	in.Insumos = []entity.InsumoRequest{{InsumoID: insumoUrea, CantidadUsada: qty("3"), UnidadMedidaID: 1}}
	in.Herramientas = []entity.HerramientaRequest{
		{HerramientaID: palaID, CantidadEntregada: 3},
		{HerramientaID: machete, CantidadEntregada: 1, BodegaHerramientaID: macheteFila},
	}
	d, err := uc.Create(context.Background(), in)
	require.NoError(t, err)
	return d
}

// ──────────────────────────────────────────────────────────────────────────────
// Crear
// ──────────────────────────────────────────────────────────────────────────────

func TestCreate_ReservaInsumosYHerramientas(t *testing.T) {
	s, uc := newFixture(t)

	d := crearConRecursos(t, uc)

	assert.NotEmpty(t, d.Activity.ID)
	assert.Equal(t, entity.ActivityStatePending, d.Activity.Estado)
	assert.Equal(t, entity.PriorityMedium, d.Activity.Prioridad)
	assert.Equal(t, []int64{7, 8}, d.Activity.Usuarios)
	require.Len(t, d.Insumos, 1)
	assert.True(t, d.Insumos[0].Open())
	assertDecimal(t, "0", d.Insumos[0].CantidadDevuelta)
	require.Len(t, d.Herramientas, 2)
	assert.Equal(t, palaBodega2, d.Herramientas[0].BodegaHerramientaID, "la fila automática es la de mayor disponibilidad")
	assert.True(t, d.Herramientas[0].Entregada)
	assert.False(t, d.Herramientas[0].Devuelta)

	assertDecimal(t, "7", insumo(t, s, insumoUrea))
	pala := herramientaFila(t, s, palaID, palaBodega2)
	assert.Equal(t, 1, pala.CantidadDisponible)
	assert.Equal(t, 3, pala.CantidadPrestada)
	assert.Equal(t, 2, herramientaFila(t, s, palaID, palaBodega1).CantidadDisponible)
	assert.Equal(t, 0, herramientaFila(t, s, machete, macheteFila).CantidadDisponible)
}

func TestCreate_StockInsuficienteNoEscribeNada(t *testing.T) {
	s, uc := newFixture(t)
	in := baseInput()
	in.Insumos = []entity.InsumoRequest{
		{InsumoID: insumoUrea, CantidadUsada: qty("2")},
		{InsumoID: insumoAbono, CantidadUsada: qty("3")},
	}
	in.Herramientas = []entity.HerramientaRequest{{HerramientaID: machete, CantidadEntregada: 2}}

	_, err := uc.Create(context.Background(), in)

	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	var stockErr *domain.StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Len(t, stockErr.Violations, 2, "se reportan todas las violaciones, no solo la primera")
	assertDecimal(t, "10", insumo(t, s, insumoUrea))
	assertDecimal(t, "2.5", insumo(t, s, insumoAbono))

	list, err := uc.List(context.Background(), repository.ActivityFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreate_SolicitudesRepetidasSeSuman(t *testing.T) {
	s, uc := newFixture(t)
	in := baseInput()
	in.Insumos = []entity.InsumoRequest{
		{InsumoID: insumoUrea, CantidadUsada: qty("6")},
		{InsumoID: insumoUrea, CantidadUsada: qty("6")},
	}

	_, err := uc.Create(context.Background(), in)

	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assertDecimal(t, "10", insumo(t, s, insumoUrea))
}

func TestCreate_SolicitudesRepetidasDentroDelStock(t *testing.T) {
	s, uc := newFixture(t)
	in := baseInput()
	in.Insumos = []entity.InsumoRequest{
		{InsumoID: insumoUrea, CantidadUsada: qty("4.5")},
		{InsumoID: insumoUrea, CantidadUsada: qty("5.5")},
	}

	d, err := uc.Create(context.Background(), in)

	require.NoError(t, err)
	assert.Len(t, d.Insumos, 2)
	assertDecimal(t, "0", insumo(t, s, insumoUrea))
}

func TestCreate_InsumoConMasDecimalesNoTocaStock(t *testing.T) {
	s, uc := newFixture(t)
	in := baseInput()
	in.Insumos = []entity.InsumoRequest{{InsumoID: insumoUrea, CantidadUsada: qty("1.0005")}}

	_, err := uc.Create(context.Background(), in)

	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	var stockErr *domain.StockError
	require.True(t, errors.As(err, &stockErr))
	require.Len(t, stockErr.Violations, 1)
	assert.Contains(t, stockErr.Violations[0].Message, "cantidad_usada")
	assertDecimal(t, "10", insumo(t, s, insumoUrea))
}

func TestCreate_HerramientaAutomaticaEnVariasFilas(t *testing.T) {
	s, uc := newFixture(t)
	in := baseInput()
	in.Herramientas = []entity.HerramientaRequest{
		{HerramientaID: palaID, CantidadEntregada: 4},
		{HerramientaID: palaID, CantidadEntregada: 2},
	}

	d, err := uc.Create(context.Background(), in)

	require.NoError(t, err)
	require.Len(t, d.Herramientas, 2)
	assert.Equal(t, palaBodega2, d.Herramientas[0].BodegaHerramientaID)
	assert.Equal(t, palaBodega1, d.Herramientas[1].BodegaHerramientaID)
	assert.Equal(t, 0, herramientaFila(t, s, palaID, palaBodega2).CantidadDisponible)
	assert.Equal(t, 0, herramientaFila(t, s, palaID, palaBodega1).CantidadDisponible)
	assert.Equal(t, 4, herramientaFila(t, s, palaID, palaBodega2).CantidadPrestada)
	assert.Equal(t, 2, herramientaFila(t, s, palaID, palaBodega1).CantidadPrestada)
}

func TestCreate_ValidaCampos(t *testing.T) {
	_, uc := newFixture(t)
	in := baseInput()
	in.Descripcion = "  "
	in.FechaFin = day0.Add(-time.Hour)
	in.Estado = entity.ActivityStateCompleted
	in.Prioridad = "urgente"

	_, err := uc.Create(context.Background(), in)

	require.ErrorIs(t, err, domain.ErrInvalidInput)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "descripcion")
	assert.Contains(t, verr.Fields, "fecha_fin")
	assert.Contains(t, verr.Fields, "estado")
	assert.Contains(t, verr.Fields, "prioridad")
}

func TestCreate_SolicitudMalFormadaEsViolacion(t *testing.T) {
	_, uc := newFixture(t)
	in := baseInput()
	in.Insumos = []entity.InsumoRequest{{InsumoID: insumoUrea, CantidadUsada: qty("0")}}

	_, err := uc.Create(context.Background(), in)

	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestCreate_EnProgresoDesdeElInicio(t *testing.T) {
	_, uc := newFixture(t)
	in := baseInput()
	in.Estado = entity.ActivityStateInProgress
	in.Prioridad = entity.PriorityHigh

	d, err := uc.Create(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, entity.ActivityStateInProgress, d.Activity.Estado)
	assert.Equal(t, entity.PriorityHigh, d.Activity.Prioridad)
	assert.Empty(t, d.Insumos)
	assert.Empty(t, d.Herramientas)
}

// failingToolLoans falla al registrar préstamos de herramientas.
type failingToolLoans struct {
	repository.HerramientaLoanRepository
}

func (failingToolLoans) Create(context.Context, *entity.HerramientaLoan) error {
	return errors.New("disco lleno")
}

type failingRunner struct{ inner activity.TxRunner }

func (f failingRunner) Run(ctx context.Context, fn func(activity.Repos) error) error {
	return f.inner.Run(ctx, func(r activity.Repos) error {
		r.HerramientaLoans = failingToolLoans{r.HerramientaLoans}
		return fn(r)
	})
}

func TestCreate_FalloEnTransaccionRevierteTodo(t *testing.T) {
	s, _ := newFixture(t)
	uc := activity.NewLifecycleUseCase(failingRunner{inner: s}, s.Repos(), nil)
	in := baseInput()
	in.Insumos = []entity.InsumoRequest{{InsumoID: insumoUrea, CantidadUsada: qty("3")}}
	in.Herramientas = []entity.HerramientaRequest{{HerramientaID: palaID, CantidadEntregada: 1}}

	_, err := uc.Create(context.Background(), in)

	require.Error(t, err)
	assertDecimal(t, "10", insumo(t, s, insumoUrea))
	assert.Equal(t, 4, herramientaFila(t, s, palaID, palaBodega2).CantidadDisponible)
	list, err := uc.List(context.Background(), repository.ActivityFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreate_ConcurrentesNoSobregiran(t *testing.T) {
	s, uc := newFixture(t)
	const workers = 12

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, rejected := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := baseInput()
			in.Insumos = []entity.InsumoRequest{{InsumoID: insumoUrea, CantidadUsada: qty("1")}}
			in.Herramientas = []entity.HerramientaRequest{{HerramientaID: palaID, CantidadEntregada: 1}}
			_, err := uc.Create(context.Background(), in)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, domain.ErrInsufficientStock) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, ok, "solo hay 6 palas en total")
	assert.Equal(t, workers-6, rejected)
	assertDecimal(t, "4", insumo(t, s, insumoUrea))
	for _, fila := range []int64{palaBodega1, palaBodega2} {
		row := herramientaFila(t, s, palaID, fila)
		assert.GreaterOrEqual(t, row.CantidadDisponible, 0)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Finalizar / cancelar
// ──────────────────────────────────────────────────────────────────────────────

func TestFinalize_ConsumeInsumosYDevuelveHerramientas(t *testing.T) {
	s, uc := newFixture(t)
	d := crearConRecursos(t, uc)
	fin := day0.Add(30 * time.Hour)

	res, err := uc.Finalize(context.Background(), d.Activity.ID, &fin)

	require.NoError(t, err)
	assert.Equal(t, 1, res.InsumosCerrados)
	assert.Equal(t, 2, res.HerramientasDevueltas)
	assertDecimal(t, "7", insumo(t, s, insumoUrea))
	pala := herramientaFila(t, s, palaID, palaBodega2)
	assert.Equal(t, 4, pala.CantidadDisponible)
	assert.Equal(t, 0, pala.CantidadPrestada)
	assert.Equal(t, 1, herramientaFila(t, s, machete, macheteFila).CantidadDisponible)

	got, err := uc.Get(context.Background(), d.Activity.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ActivityStateCompleted, got.Activity.Estado)
	assert.True(t, got.Activity.FechaFin.Equal(fin))
	require.Len(t, got.Insumos, 1)
	assert.False(t, got.Insumos[0].Open())
	assert.False(t, got.Insumos[0].Restituido)
	assertDecimal(t, "3", got.Insumos[0].CantidadDevuelta)
	for _, h := range got.Herramientas {
		assert.True(t, h.Devuelta)
		assert.Equal(t, h.CantidadEntregada, h.CantidadDevuelta)
		require.NotNil(t, h.FechaDevolucion)
	}
}

func TestFinalize_DosVecesEsConflicto(t *testing.T) {
	s, uc := newFixture(t)
	d := crearConRecursos(t, uc)
	fin := day0.Add(time.Hour)
	_, err := uc.Finalize(context.Background(), d.Activity.ID, &fin)
	require.NoError(t, err)

	_, err = uc.Finalize(context.Background(), d.Activity.ID, &fin)

	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 4, herramientaFila(t, s, palaID, palaBodega2).CantidadDisponible, "la segunda finalización no vuelve a devolver")
}

func TestFinalize_Validaciones(t *testing.T) {
	_, uc := newFixture(t)
	d := crearConRecursos(t, uc)

	_, err := uc.Finalize(context.Background(), d.Activity.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	antes := day0.Add(-time.Hour)
	_, err = uc.Finalize(context.Background(), d.Activity.ID, &antes)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	fin := day0
	_, err = uc.Finalize(context.Background(), "no-existe", &fin)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancel_RestituyeInsumos(t *testing.T) {
	s, uc := newFixture(t)
	d := crearConRecursos(t, uc)

	res, err := uc.Cancel(context.Background(), d.Activity.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, res.InsumosCerrados)
	assert.Equal(t, 2, res.HerramientasDevueltas)
	assertDecimal(t, "10", insumo(t, s, insumoUrea))
	assert.Equal(t, 4, herramientaFila(t, s, palaID, palaBodega2).CantidadDisponible)

	got, err := uc.Get(context.Background(), d.Activity.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ActivityStateCancelled, got.Activity.Estado)
	assert.True(t, got.Insumos[0].Restituido)

	fin := day0.Add(time.Hour)
	_, err = uc.Finalize(context.Background(), d.Activity.ID, &fin)
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = uc.Cancel(context.Background(), d.Activity.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

// ──────────────────────────────────────────────────────────────────────────────
// Iniciar / actualizar
// ──────────────────────────────────────────────────────────────────────────────

func TestStart_SoloDesdePendiente(t *testing.T) {
	s, uc := newFixture(t)
	d := crearConRecursos(t, uc)

	got, err := uc.Start(context.Background(), d.Activity.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ActivityStateInProgress, got.Activity.Estado)
	assertDecimal(t, "7", insumo(t, s, insumoUrea))

	_, err = uc.Start(context.Background(), d.Activity.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	fin := day0.Add(time.Hour)
	_, err = uc.Finalize(context.Background(), d.Activity.ID, &fin)
	assert.NoError(t, err)
}

func TestUpdate_CamposDescriptivos(t *testing.T) {
	_, uc := newFixture(t)
	d := crearConRecursos(t, uc)
	desc := "Fertilización lote 4 y 5"
	prio := entity.PriorityLow
	usuarios := []int64{9}

	got, err := uc.Update(context.Background(), d.Activity.ID, activity.UpdateInput{
		Descripcion: &desc,
		Prioridad:   &prio,
		Usuarios:    &usuarios,
	})

	require.NoError(t, err)
	assert.Equal(t, desc, got.Activity.Descripcion)
	assert.Equal(t, prio, got.Activity.Prioridad)
	assert.Equal(t, []int64{9}, got.Activity.Usuarios)
	assert.Equal(t, entity.ActivityStatePending, got.Activity.Estado)
	assert.Len(t, got.Insumos, 1)
}

func TestUpdate_RechazaTerminalesEInvalidos(t *testing.T) {
	_, uc := newFixture(t)
	d := crearConRecursos(t, uc)
	antes := day0.Add(-72 * time.Hour)
	fin := day0.Add(time.Hour)

	_, err := uc.Update(context.Background(), d.Activity.ID, activity.UpdateInput{FechaFin: &antes})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = uc.Finalize(context.Background(), d.Activity.ID, &fin)
	require.NoError(t, err)
	desc := "otra"
	_, err = uc.Update(context.Background(), d.Activity.ID, activity.UpdateInput{Descripcion: &desc})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = uc.Update(context.Background(), "no-existe", activity.UpdateInput{Descripcion: &desc})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Eliminar
// ──────────────────────────────────────────────────────────────────────────────

func TestDelete_RestauraStockDeActividadAbierta(t *testing.T) {
	s, uc := newFixture(t)
	d := crearConRecursos(t, uc)

	res, err := uc.Delete(context.Background(), d.Activity.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, res.InsumosRestituidos)
	assert.Equal(t, 2, res.HerramientasDevueltas)
	assertDecimal(t, "10", insumo(t, s, insumoUrea))
	pala := herramientaFila(t, s, palaID, palaBodega2)
	assert.Equal(t, 4, pala.CantidadDisponible)
	assert.Equal(t, 0, pala.CantidadPrestada)
	assert.Equal(t, 1, herramientaFila(t, s, machete, macheteFila).CantidadDisponible)

	_, err = uc.Get(context.Background(), d.Activity.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = uc.Delete(context.Background(), d.Activity.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete_DespuesDeFinalizarNoCambiaStock(t *testing.T) {
	s, uc := newFixture(t)
	d := crearConRecursos(t, uc)
	fin := day0.Add(time.Hour)
	_, err := uc.Finalize(context.Background(), d.Activity.ID, &fin)
	require.NoError(t, err)

	res, err := uc.Delete(context.Background(), d.Activity.ID)

	require.NoError(t, err)
	assert.Zero(t, res.InsumosRestituidos)
	assert.Zero(t, res.HerramientasDevueltas)
	assertDecimal(t, "7", insumo(t, s, insumoUrea))
	assert.Equal(t, 4, herramientaFila(t, s, palaID, palaBodega2).CantidadDisponible)
}

func TestDelete_DespuesDeCancelarNoDuplicaRestitucion(t *testing.T) {
	s, uc := newFixture(t)
	d := crearConRecursos(t, uc)
	_, err := uc.Cancel(context.Background(), d.Activity.ID)
	require.NoError(t, err)

	_, err = uc.Delete(context.Background(), d.Activity.ID)

	require.NoError(t, err)
	assertDecimal(t, "10", insumo(t, s, insumoUrea))
}

// ──────────────────────────────────────────────────────────────────────────────
// Listar
// ──────────────────────────────────────────────────────────────────────────────

func TestList_FiltraPorEstado(t *testing.T) {
	_, uc := newFixture(t)
	a := crearConRecursos(t, uc)
	b, err := uc.Create(context.Background(), baseInput())
	require.NoError(t, err)
	_, err = uc.Start(context.Background(), b.Activity.ID)
	require.NoError(t, err)

	pend, err := uc.List(context.Background(), repository.ActivityFilter{Estado: entity.ActivityStatePending})
	require.NoError(t, err)
	require.Len(t, pend, 1)
	assert.Equal(t, a.Activity.ID, pend[0].ID)

	all, err := uc.List(context.Background(), repository.ActivityFilter{Limit: 500})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = uc.List(context.Background(), repository.ActivityFilter{Estado: "archivada"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
