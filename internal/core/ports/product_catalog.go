package ports

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
)

// ProductCatalog answers unit weights for products. Products without a
// recorded weight are absent from the returned map.
type ProductCatalog interface {
	UnitWeights(ctx context.Context, productIDs []kernel.UUID) (map[kernel.UUID]kernel.Weight, error)
}

// ProductRegistry records catalog entries. A nil unitWeight clears the
// recorded weight.
type ProductRegistry interface {
	Save(ctx context.Context, id kernel.UUID, name string, unitWeight *kernel.Weight) error
}
