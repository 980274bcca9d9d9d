package memory

import (
	"context"

	"github.com/garyjia/claim-workflow/internal/application/port"
)

// TxManager runs fn directly. Each repository call is already atomic under
// its own lock, and the engine commits through a single Save.
type TxManager struct{}

// WithTransaction implements port.TransactionManager
func (TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ port.TransactionManager = TxManager{}
