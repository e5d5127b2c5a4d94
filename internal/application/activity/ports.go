package activity

import (
	"context"

	"github.com/jhoicas/agrosoft-api/internal/domain/repository"
)

// Repos repositorios que participan en el libro de recursos de una actividad.
// Dentro de TxRunner.Run todos quedan atados a la misma transacción.
type Repos struct {
	Activities       repository.ActivityRepository
	InsumoStock      repository.InsumoStockRepository
	InsumoLoans      repository.InsumoLoanRepository
	HerramientaStock repository.HerramientaStockRepository
	HerramientaLoans repository.HerramientaLoanRepository
}

// TxRunner ejecuta fn dentro de una transacción: Commit si fn devuelve nil, Rollback en otro caso.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos Repos) error) error
}
