// Package memory implementa los repositorios del libro de actividades en memoria.
// Cada transacción trabaja sobre una copia del estado y solo la publica si fn termina sin error.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/agrosoft-api/internal/application/activity"
	"github.com/jhoicas/agrosoft-api/internal/domain"
	"github.com/jhoicas/agrosoft-api/internal/domain/entity"
	"github.com/jhoicas/agrosoft-api/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var _ activity.TxRunner = (*Store)(nil)

type state struct {
	activities  map[string]entity.Activity
	insumos     map[int64]entity.InsumoStock
	tools       map[int64]entity.HerramientaBodegaStock
	insumoLoans []entity.InsumoLoan // orden de inserción
	toolLoans   []entity.HerramientaLoan
}

func newState() state {
	return state{
		activities: make(map[string]entity.Activity),
		insumos:    make(map[int64]entity.InsumoStock),
		tools:      make(map[int64]entity.HerramientaBodegaStock),
	}
}

func (s state) clone() state {
	cp := newState()
	for k, v := range s.activities {
		cp.activities[k] = cloneActivity(v)
	}
	for k, v := range s.insumos {
		cp.insumos[k] = v
	}
	for k, v := range s.tools {
		cp.tools[k] = v
	}
	cp.insumoLoans = make([]entity.InsumoLoan, len(s.insumoLoans))
	for i, l := range s.insumoLoans {
		cp.insumoLoans[i] = cloneInsumoLoan(l)
	}
	cp.toolLoans = make([]entity.HerramientaLoan, len(s.toolLoans))
	for i, l := range s.toolLoans {
		cp.toolLoans[i] = cloneToolLoan(l)
	}
	return cp
}

func cloneActivity(a entity.Activity) entity.Activity {
	cp := a
	if a.Usuarios != nil {
		cp.Usuarios = append([]int64(nil), a.Usuarios...)
	}
	return cp
}

func cloneInsumoLoan(l entity.InsumoLoan) entity.InsumoLoan {
	cp := l
	if l.FechaDevolucion != nil {
		t := *l.FechaDevolucion
		cp.FechaDevolucion = &t
	}
	return cp
}

func cloneToolLoan(l entity.HerramientaLoan) entity.HerramientaLoan {
	cp := l
	if l.FechaDevolucion != nil {
		t := *l.FechaDevolucion
		cp.FechaDevolucion = &t
	}
	return cp
}

// Store estado en memoria protegido por un mutex. Las transacciones se serializan.
type Store struct {
	mu    sync.RWMutex
	state state
	nowFn func() time.Time
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{state: newState(), nowFn: func() time.Time { return time.Now().UTC() }}
}

// PutInsumo crea o reemplaza el stock de un insumo.
func (s *Store) PutInsumo(stock entity.InsumoStock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stock.UpdatedAt.IsZero() {
		stock.UpdatedAt = s.nowFn()
	}
	s.state.insumos[stock.ID] = stock
}

// PutHerramienta crea o reemplaza una fila bodega_herramienta.
func (s *Store) PutHerramienta(row entity.HerramientaBodegaStock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = s.nowFn()
	}
	s.state.tools[row.ID] = row
}

// Run ejecuta fn sobre una copia del estado. La copia reemplaza al estado solo si fn devuelve nil.
func (s *Store) Run(ctx context.Context, fn func(repos activity.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state.clone()
	if err := fn(newRepos(txAccess{st: &st}, s.nowFn)); err != nil {
		return err
	}
	s.state = st
	return nil
}

// Repos devuelve repositorios fuera de transacción: cada llamada toma el lock por sí sola.
func (s *Store) Repos() activity.Repos {
	return newRepos(lockedAccess{s: s}, s.nowFn)
}

type accessor interface {
	read(fn func(st *state))
	write(fn func(st *state) error) error
}

type txAccess struct{ st *state }

func (a txAccess) read(fn func(st *state))              { fn(a.st) }
func (a txAccess) write(fn func(st *state) error) error { return fn(a.st) }

type lockedAccess struct{ s *Store }

func (a lockedAccess) read(fn func(st *state)) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	fn(&a.s.state)
}

func (a lockedAccess) write(fn func(st *state) error) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	st := a.s.state.clone()
	if err := fn(&st); err != nil {
		return err
	}
	a.s.state = st
	return nil
}

func newRepos(a accessor, now func() time.Time) activity.Repos {
	return activity.Repos{
		Activities:       &activityRepo{a: a},
		InsumoStock:      &insumoStockRepo{a: a, now: now},
		InsumoLoans:      &insumoLoanRepo{a: a},
		HerramientaStock: &toolStockRepo{a: a, now: now},
		HerramientaLoans: &toolLoanRepo{a: a},
	}
}

// --- actividades ---

type activityRepo struct{ a accessor }

func (r *activityRepo) Create(_ context.Context, act *entity.Activity) error {
	return r.a.write(func(st *state) error {
		if _, ok := st.activities[act.ID]; ok {
			return fmt.Errorf("actividad %s ya existe: %w", act.ID, domain.ErrConflict)
		}
		st.activities[act.ID] = cloneActivity(*act)
		return nil
	})
}

func (r *activityRepo) GetByID(_ context.Context, id string) (*entity.Activity, error) {
	var out *entity.Activity
	r.a.read(func(st *state) {
		if act, ok := st.activities[id]; ok {
			cp := cloneActivity(act)
			out = &cp
		}
	})
	return out, nil
}

// GetForUpdate equivale a GetByID: el lock del store ya serializa la transacción.
func (r *activityRepo) GetForUpdate(ctx context.Context, id string) (*entity.Activity, error) {
	return r.GetByID(ctx, id)
}

func (r *activityRepo) Update(_ context.Context, act *entity.Activity) error {
	return r.a.write(func(st *state) error {
		cur, ok := st.activities[act.ID]
		if !ok {
			return domain.ErrNotFound
		}
		next := cloneActivity(*act)
		next.Estado = cur.Estado
		next.CreatedAt = cur.CreatedAt
		st.activities[act.ID] = next
		return nil
	})
}

func (r *activityRepo) TransitionState(_ context.Context, id string, from []entity.ActivityState, to entity.ActivityState, fechaFin *time.Time, now time.Time) (bool, error) {
	applied := false
	err := r.a.write(func(st *state) error {
		cur, ok := st.activities[id]
		if !ok {
			return nil
		}
		for _, f := range from {
			if cur.Estado == f {
				cur.Estado = to
				if fechaFin != nil {
					cur.FechaFin = *fechaFin
				}
				cur.UpdatedAt = now
				st.activities[id] = cur
				applied = true
				return nil
			}
		}
		return nil
	})
	return applied, err
}

func (r *activityRepo) List(_ context.Context, filter repository.ActivityFilter) ([]*entity.Activity, error) {
	var all []*entity.Activity
	r.a.read(func(st *state) {
		for _, act := range st.activities {
			if filter.Estado != "" && act.Estado != filter.Estado {
				continue
			}
			cp := cloneActivity(act)
			all = append(all, &cp)
		}
	})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	if filter.Offset >= len(all) {
		return []*entity.Activity{}, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}
	return all, nil
}

func (r *activityRepo) Delete(_ context.Context, id string) error {
	return r.a.write(func(st *state) error {
		if _, ok := st.activities[id]; !ok {
			return domain.ErrNotFound
		}
		delete(st.activities, id)
		return nil
	})
}

// --- insumos ---

type insumoStockRepo struct {
	a   accessor
	now func() time.Time
}

func (r *insumoStockRepo) GetByIDs(_ context.Context, ids []int64) (map[int64]*entity.InsumoStock, error) {
	out := make(map[int64]*entity.InsumoStock, len(ids))
	r.a.read(func(st *state) {
		for _, id := range ids {
			if s, ok := st.insumos[id]; ok {
				cp := s
				out[id] = &cp
			}
		}
	})
	return out, nil
}

func (r *insumoStockRepo) Reserve(_ context.Context, insumoID int64, cantidad decimal.Decimal) error {
	return r.a.write(func(st *state) error {
		s, ok := st.insumos[insumoID]
		if !ok || s.Cantidad.LessThan(cantidad) {
			return domain.ErrInsufficientStock
		}
		s.Cantidad = s.Cantidad.Sub(cantidad)
		s.UpdatedAt = r.now()
		st.insumos[insumoID] = s
		return nil
	})
}

func (r *insumoStockRepo) Release(_ context.Context, insumoID int64, cantidad decimal.Decimal) error {
	return r.a.write(func(st *state) error {
		s, ok := st.insumos[insumoID]
		if !ok {
			return fmt.Errorf("insumo %d: %w", insumoID, domain.ErrNotFound)
		}
		s.Cantidad = s.Cantidad.Add(cantidad)
		s.UpdatedAt = r.now()
		st.insumos[insumoID] = s
		return nil
	})
}

type insumoLoanRepo struct{ a accessor }

func (r *insumoLoanRepo) Create(_ context.Context, loan *entity.InsumoLoan) error {
	return r.a.write(func(st *state) error {
		if _, ok := st.activities[loan.ActividadID]; !ok {
			return fmt.Errorf("actividad %s: %w", loan.ActividadID, domain.ErrNotFound)
		}
		st.insumoLoans = append(st.insumoLoans, cloneInsumoLoan(*loan))
		return nil
	})
}

func (r *insumoLoanRepo) ListByActividad(_ context.Context, actividadID string) ([]*entity.InsumoLoan, error) {
	out := []*entity.InsumoLoan{}
	r.a.read(func(st *state) {
		for _, l := range st.insumoLoans {
			if l.ActividadID == actividadID {
				cp := cloneInsumoLoan(l)
				out = append(out, &cp)
			}
		}
	})
	return out, nil
}

func (r *insumoLoanRepo) Close(_ context.Context, id string, restituido bool, at time.Time) error {
	return r.a.write(func(st *state) error {
		for i, l := range st.insumoLoans {
			if l.ID != id {
				continue
			}
			if !l.Open() {
				return fmt.Errorf("préstamo de insumo %s ya cerrado: %w", id, domain.ErrConflict)
			}
			t := at
			l.FechaDevolucion = &t
			l.CantidadDevuelta = l.CantidadUsada
			l.Restituido = restituido
			st.insumoLoans[i] = l
			return nil
		}
		return fmt.Errorf("préstamo de insumo %s: %w", id, domain.ErrNotFound)
	})
}

func (r *insumoLoanRepo) DeleteByActividad(_ context.Context, actividadID string) error {
	return r.a.write(func(st *state) error {
		kept := st.insumoLoans[:0]
		for _, l := range st.insumoLoans {
			if l.ActividadID != actividadID {
				kept = append(kept, l)
			}
		}
		st.insumoLoans = kept
		return nil
	})
}

// --- herramientas ---

type toolStockRepo struct {
	a   accessor
	now func() time.Time
}

func (r *toolStockRepo) ListByHerramientas(_ context.Context, herramientaIDs []int64) ([]*entity.HerramientaBodegaStock, error) {
	want := make(map[int64]bool, len(herramientaIDs))
	for _, id := range herramientaIDs {
		want[id] = true
	}
	var out []*entity.HerramientaBodegaStock
	r.a.read(func(st *state) {
		for _, row := range st.tools {
			if want[row.HerramientaID] {
				cp := row
				out = append(out, &cp)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *toolStockRepo) Reserve(_ context.Context, herramientaID, bodegaHerramientaID int64, cantidad int) (int64, error) {
	var picked int64
	err := r.a.write(func(st *state) error {
		var best *entity.HerramientaBodegaStock
		for id := range st.tools {
			row := st.tools[id]
			if row.HerramientaID != herramientaID {
				continue
			}
			if bodegaHerramientaID != 0 {
				if row.ID == bodegaHerramientaID {
					best = &row
					break
				}
				continue
			}
			if best == nil || row.CantidadDisponible > best.CantidadDisponible ||
				(row.CantidadDisponible == best.CantidadDisponible && row.ID < best.ID) {
				best = &row
			}
		}
		if best == nil || best.CantidadDisponible < cantidad {
			return domain.ErrInsufficientStock
		}
		best.CantidadDisponible -= cantidad
		best.CantidadPrestada += cantidad
		best.UpdatedAt = r.now()
		st.tools[best.ID] = *best
		picked = best.ID
		return nil
	})
	return picked, err
}

func (r *toolStockRepo) Release(_ context.Context, bodegaHerramientaID int64, cantidad int) error {
	return r.a.write(func(st *state) error {
		row, ok := st.tools[bodegaHerramientaID]
		if !ok {
			return fmt.Errorf("bodega_herramienta %d: %w", bodegaHerramientaID, domain.ErrNotFound)
		}
		if row.CantidadPrestada < cantidad {
			return fmt.Errorf("bodega_herramienta %d: prestada %d < %d: %w", bodegaHerramientaID, row.CantidadPrestada, cantidad, domain.ErrConflict)
		}
		row.CantidadPrestada -= cantidad
		row.CantidadDisponible += cantidad
		row.UpdatedAt = r.now()
		st.tools[bodegaHerramientaID] = row
		return nil
	})
}

type toolLoanRepo struct{ a accessor }

func (r *toolLoanRepo) Create(_ context.Context, loan *entity.HerramientaLoan) error {
	return r.a.write(func(st *state) error {
		if _, ok := st.activities[loan.ActividadID]; !ok {
			return fmt.Errorf("actividad %s: %w", loan.ActividadID, domain.ErrNotFound)
		}
		st.toolLoans = append(st.toolLoans, cloneToolLoan(*loan))
		return nil
	})
}

func (r *toolLoanRepo) ListByActividad(_ context.Context, actividadID string) ([]*entity.HerramientaLoan, error) {
	out := []*entity.HerramientaLoan{}
	r.a.read(func(st *state) {
		for _, l := range st.toolLoans {
			if l.ActividadID == actividadID {
				cp := cloneToolLoan(l)
				out = append(out, &cp)
			}
		}
	})
	return out, nil
}

func (r *toolLoanRepo) MarkReturned(_ context.Context, id string, at time.Time) error {
	return r.a.write(func(st *state) error {
		for i, l := range st.toolLoans {
			if l.ID != id {
				continue
			}
			if l.Devuelta {
				return fmt.Errorf("préstamo de herramienta %s ya devuelto: %w", id, domain.ErrConflict)
			}
			t := at
			l.FechaDevolucion = &t
			l.CantidadDevuelta = l.CantidadEntregada
			l.Devuelta = true
			st.toolLoans[i] = l
			return nil
		}
		return fmt.Errorf("préstamo de herramienta %s: %w", id, domain.ErrNotFound)
	})
}

func (r *toolLoanRepo) DeleteByActividad(_ context.Context, actividadID string) error {
	return r.a.write(func(st *state) error {
		kept := st.toolLoans[:0]
		for _, l := range st.toolLoans {
			if l.ActividadID != actividadID {
				kept = append(kept, l)
			}
		}
		st.toolLoans = kept
		return nil
	})
}
