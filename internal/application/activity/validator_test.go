package activity_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agrosoft-api/internal/application/activity"
	"github.com/jhoicas/agrosoft-api/internal/domain"
	"github.com/jhoicas/agrosoft-api/internal/domain/entity"
)

func newValidator(t *testing.T) *activity.ReservationValidator {
	t.Helper()
	s, _ := newFixture(t)
	r := s.Repos()
	return activity.NewReservationValidator(r.InsumoStock, r.HerramientaStock)
}

func TestValidate_SinSolicitudes(t *testing.T) {
	v := newValidator(t)

	violations, err := v.Validate(context.Background(), nil, nil)

	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestValidate_InsumoInexistenteYExcedido(t *testing.T) {
	v := newValidator(t)

	violations, err := v.Validate(context.Background(), []entity.InsumoRequest{
		{InsumoID: 99, CantidadUsada: decimal.NewFromInt(1)},
		{InsumoID: insumoAbono, CantidadUsada: decimal.RequireFromString("2.6")},
	}, nil)

	require.NoError(t, err)
	require.Len(t, violations, 2)
	assert.Equal(t, int64(99), violations[0].ResourceID)
	assert.Equal(t, 0, violations[0].Index)
	assert.Equal(t, insumoAbono, violations[1].ResourceID)
	assert.Equal(t, 1, violations[1].Index)
	assert.Contains(t, violations[1].Message, "disponible 2.5")
}

func TestValidate_SumaPorInsumo(t *testing.T) {
	v := newValidator(t)

	violations, err := v.Validate(context.Background(), []entity.InsumoRequest{
		{InsumoID: insumoAbono, CantidadUsada: decimal.RequireFromString("1.5")},
		{InsumoID: insumoAbono, CantidadUsada: decimal.RequireFromString("1.0")},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, violations, "1.5 + 1.0 = 2.5 cabe exacto")

	violations, err = v.Validate(context.Background(), []entity.InsumoRequest{
		{InsumoID: insumoAbono, CantidadUsada: decimal.RequireFromString("1.5")},
		{InsumoID: insumoAbono, CantidadUsada: decimal.RequireFromString("1.01")},
	}, nil)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, 0, violations[0].Index, "se reporta en la primera aparición")
}

func TestValidate_SolicitudesMalFormadas(t *testing.T) {
	v := newValidator(t)

	violations, err := v.Validate(context.Background(),
		[]entity.InsumoRequest{
			{InsumoID: 0, CantidadUsada: decimal.NewFromInt(1)},
			{InsumoID: insumoUrea, CantidadUsada: decimal.NewFromInt(-1)},
		},
		[]entity.HerramientaRequest{
			{HerramientaID: 0, CantidadEntregada: 1},
			{HerramientaID: palaID, CantidadEntregada: 0},
			{HerramientaID: palaID, CantidadEntregada: 1, BodegaHerramientaID: -4},
		})

	require.NoError(t, err)
	assert.Len(t, violations, 5)
	for _, vi := range violations[:2] {
		assert.Equal(t, domain.ResourceInsumo, vi.Resource)
	}
	for _, vi := range violations[2:] {
		assert.Equal(t, domain.ResourceHerramienta, vi.Resource)
	}
}

func TestValidate_HerramientaFilaAutomatica(t *testing.T) {
	v := newValidator(t)

	violations, err := v.Validate(context.Background(), nil, []entity.HerramientaRequest{
		{HerramientaID: palaID, CantidadEntregada: 4},
	})
	require.NoError(t, err)
	assert.Empty(t, violations, "la fila 101 tiene 4")

	violations, err = v.Validate(context.Background(), nil, []entity.HerramientaRequest{
		{HerramientaID: palaID, CantidadEntregada: 5},
	})
	require.NoError(t, err)
	require.Len(t, violations, 1, "ninguna fila sola alcanza aunque el total sea 6")
	assert.Contains(t, violations[0].Message, "disponible 4")
}

func TestValidate_HerramientaFilaExplicita(t *testing.T) {
	v := newValidator(t)

	violations, err := v.Validate(context.Background(), nil, []entity.HerramientaRequest{
		{HerramientaID: palaID, CantidadEntregada: 2, BodegaHerramientaID: palaBodega1},
		{HerramientaID: palaID, CantidadEntregada: 1, BodegaHerramientaID: palaBodega1},
		{HerramientaID: palaID, CantidadEntregada: 1, BodegaHerramientaID: macheteFila},
		{HerramientaID: 77, CantidadEntregada: 1},
	})

	require.NoError(t, err)
	require.Len(t, violations, 3)
	assert.Contains(t, violations[0].Message, "solicitado 3, disponible 2")
	assert.Contains(t, violations[1].Message, "no está en bodega_herramienta")
	assert.Contains(t, violations[2].Message, "no existe en ninguna bodega")
}

func TestValidate_InsumoConMasDeTresDecimales(t *testing.T) {
	v := newValidator(t)

	violations, err := v.Validate(context.Background(), []entity.InsumoRequest{
		{InsumoID: insumoUrea, CantidadUsada: decimal.RequireFromString("1.0005")},
		{InsumoID: insumoUrea, CantidadUsada: decimal.RequireFromString("0.0004")},
		{InsumoID: insumoAbono, CantidadUsada: decimal.RequireFromString("1.250")},
	}, nil)

	require.NoError(t, err)
	require.Len(t, violations, 2)
	assert.Equal(t, 0, violations[0].Index)
	assert.Equal(t, 1, violations[1].Index)
	assert.Contains(t, violations[0].Message, "hasta 3 decimales")
}

func TestValidate_HerramientaAutomaticaSeRepartePorFilas(t *testing.T) {
	v := newValidator(t)

	violations, err := v.Validate(context.Background(), nil, []entity.HerramientaRequest{
		{HerramientaID: palaID, CantidadEntregada: 4},
		{HerramientaID: palaID, CantidadEntregada: 2},
	})
	require.NoError(t, err)
	assert.Empty(t, violations, "la primera toma la fila 101 y la segunda la 100")

	violations, err = v.Validate(context.Background(), nil, []entity.HerramientaRequest{
		{HerramientaID: palaID, CantidadEntregada: 4},
		{HerramientaID: palaID, CantidadEntregada: 3},
	})
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, 1, violations[0].Index)
	assert.Contains(t, violations[0].Message, "bodega_herramienta 100): solicitado 3, disponible 2")
}

func TestValidate_HerramientaExplicitaYAutomaticaCompartenFila(t *testing.T) {
	v := newValidator(t)

	violations, err := v.Validate(context.Background(), nil, []entity.HerramientaRequest{
		{HerramientaID: palaID, CantidadEntregada: 3, BodegaHerramientaID: palaBodega2},
		{HerramientaID: palaID, CantidadEntregada: 2},
		{HerramientaID: palaID, CantidadEntregada: 2},
	})

	require.NoError(t, err)
	require.Len(t, violations, 1, "la explícita deja 1 en 101, la segunda vacía la 100 y la tercera ya no cabe")
	assert.Equal(t, 2, violations[0].Index)
}
