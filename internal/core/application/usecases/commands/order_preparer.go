package commands

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/core/ports"
)

// OrderPreparer fills in the dispatch attributes an order needs before it can
// join a batch: its zone and its shipping weight.
type OrderPreparer struct {
	resolver   ZoneResolver
	catalog    ports.ProductCatalog
	calculator services.WeightCalculator
}

func NewOrderPreparer(resolver ZoneResolver, catalog ports.ProductCatalog) OrderPreparer {
	return OrderPreparer{
		resolver:   resolver,
		catalog:    catalog,
		calculator: services.NewWeightCalculator(),
	}
}

// Prepare resolves the zone and computes the weight when they are unset and
// freezes both. Already frozen values are kept. It reports whether o changed.
func (p OrderPreparer) Prepare(ctx context.Context, o *order.Order) (bool, error) {
	changed := false

	if !o.HasZone() {
		if err := o.FreezeZone(p.resolver.Resolve(o.Address())); err != nil {
			return false, err
		}
		changed = true
	}

	if _, ok := o.Weight(); !ok {
		w, err := p.ComputeWeight(ctx, o)
		if err != nil {
			return false, err
		}
		if err = o.FreezeWeight(w); err != nil {
			return false, err
		}
		changed = true
	}

	return changed, nil
}

// ComputeWeight derives the weight of o from its line items and the catalog
// unit weights.
func (p OrderPreparer) ComputeWeight(ctx context.Context, o *order.Order) (kernel.Weight, error) {
	items := o.Items()
	unitWeights, err := p.catalog.UnitWeights(ctx, services.ProductIDs(items))
	if err != nil {
		return kernel.Weight{}, storageErr("load unit weights", err)
	}
	return p.calculator.Calculate(items, unitWeights)
}
