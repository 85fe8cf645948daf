package estoque

import (
	"context"
	"time"
)

// ProductFilter narrows product listings.
type ProductFilter struct {
	GrupoCodigo int64
	Search      string
	Page        int
	PerPage     int
}

// MovementFilter narrows ledger listings.
type MovementFilter struct {
	Tipo    MovementType
	Page    int
	PerPage int
}

// Repository abstracts persistence for the service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error)
}

// TxRepository exposes the operations that must run inside one
// transaction: every read-then-write on quantities or uniqueness-checked
// fields goes through here.
type TxRepository interface {
	// GetProductForUpdate loads the product row under a row lock so
	// concurrent movements on the same product serialize.
	GetProductForUpdate(ctx context.Context, id string) (Product, error)
	SupplierCodeExists(ctx context.Context, codigoFornecedor, excludeID string) (bool, error)
	MaxProductCode(ctx context.Context) (int64, error)
	InsertProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error
	UpdateProductQuantity(ctx context.Context, id string, quantidade int64, ts time.Time) error
	// DeleteProduct removes the product and its movements, reporting
	// whether a row existed.
	DeleteProduct(ctx context.Context, id string) (bool, error)
	InsertMovement(ctx context.Context, m Movement) error
	// DeleteGroupProducts removes every product of the group together
	// with their movements and returns the number of products removed.
	DeleteGroupProducts(ctx context.Context, grupoCodigo int64) (int64, error)
}
