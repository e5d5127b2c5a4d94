package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jhoicas/agrosoft-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Seed stock inicial del driver memory (STORE_SEED_FILE).
type Seed struct {
	Insumos      []SeedInsumo      `json:"insumos"`
	Herramientas []SeedHerramienta `json:"herramientas"`
}

// SeedInsumo fila de insumos.
type SeedInsumo struct {
	ID       int64           `json:"id"`
	Nombre   string          `json:"nombre"`
	Cantidad decimal.Decimal `json:"cantidad"`
}

// SeedHerramienta fila de bodega_herramienta.
type SeedHerramienta struct {
	ID                 int64 `json:"id"`
	BodegaID           int64 `json:"bodega_id"`
	HerramientaID      int64 `json:"herramienta_id"`
	CantidadDisponible int   `json:"cantidad_disponible"`
	CantidadPrestada   int   `json:"cantidad_prestada"`
}

// LoadSeedFile lee el archivo JSON y carga su contenido en el store.
func (s *Store) LoadSeedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("abrir seed: %w", err)
	}
	defer f.Close()
	return s.LoadSeed(f)
}

// LoadSeed carga stock desde JSON. Rechaza ids repetidos y cantidades negativas.
func (s *Store) LoadSeed(r io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decodificar seed: %w", err)
	}
	seenInsumo := make(map[int64]bool, len(seed.Insumos))
	for _, in := range seed.Insumos {
		if in.ID <= 0 || seenInsumo[in.ID] {
			return fmt.Errorf("seed: id de insumo inválido o repetido: %d", in.ID)
		}
		if in.Cantidad.IsNegative() {
			return fmt.Errorf("seed: insumo %d con cantidad negativa", in.ID)
		}
		seenInsumo[in.ID] = true
	}
	seenRow := make(map[int64]bool, len(seed.Herramientas))
	for _, h := range seed.Herramientas {
		if h.ID <= 0 || seenRow[h.ID] {
			return fmt.Errorf("seed: id de bodega_herramienta inválido o repetido: %d", h.ID)
		}
		if h.HerramientaID <= 0 || h.CantidadDisponible < 0 || h.CantidadPrestada < 0 {
			return fmt.Errorf("seed: bodega_herramienta %d inválida", h.ID)
		}
		seenRow[h.ID] = true
	}

	for _, in := range seed.Insumos {
		s.PutInsumo(entity.InsumoStock{ID: in.ID, Nombre: in.Nombre, Cantidad: in.Cantidad})
	}
	for _, h := range seed.Herramientas {
		s.PutHerramienta(entity.HerramientaBodegaStock{
			ID:                 h.ID,
			BodegaID:           h.BodegaID,
			HerramientaID:      h.HerramientaID,
			CantidadDisponible: h.CantidadDisponible,
			CantidadPrestada:   h.CantidadPrestada,
		})
	}
	return nil
}
