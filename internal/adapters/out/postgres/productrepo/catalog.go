// Package productrepo reads product unit weights from the products table.
package productrepo

import (
	"context"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	_ ports.ProductCatalog  = (*GormProductCatalog)(nil)
	_ ports.ProductRegistry = (*GormProductCatalog)(nil)
)

// ProductDTO is the slice of the product record dispatch cares about. A NULL
// unit weight means the catalog never recorded one.
type ProductDTO struct {
	ID         uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Name       string              `gorm:"type:varchar(255);not null;default:''"`
	UnitWeight decimal.NullDecimal `gorm:"type:numeric(14,3)"`
}

func (ProductDTO) TableName() string {
	return "products"
}

type GormProductCatalog struct {
	db *gorm.DB
}

func NewGormProductCatalog(db *gorm.DB) *GormProductCatalog {
	return &GormProductCatalog{db: db}
}

// UnitWeights returns the recorded unit weight of every known product in
// productIDs. Unknown products and products without a weight are absent.
func (c *GormProductCatalog) UnitWeights(ctx context.Context, productIDs []kernel.UUID) (map[kernel.UUID]kernel.Weight, error) {
	weights := make(map[kernel.UUID]kernel.Weight, len(productIDs))
	if len(productIDs) == 0 {
		return weights, nil
	}

	ids := make([]uuid.UUID, 0, len(productIDs))
	for _, id := range productIDs {
		ids = append(ids, id.Bytes())
	}

	var dtos []ProductDTO
	if err := c.db.WithContext(ctx).
		Where("id IN ? AND unit_weight IS NOT NULL", ids).
		Find(&dtos).Error; err != nil {
		return nil, err
	}

	for _, dto := range dtos {
		id, err := kernel.UUIDFromGoogle(dto.ID)
		if err != nil {
			return nil, err
		}
		w, err := kernel.NewWeight(dto.UnitWeight.Decimal)
		if err != nil {
			return nil, err
		}
		weights[id] = w
	}

	return weights, nil
}

// Save upserts a product. A nil unitWeight clears the recorded weight.
func (c *GormProductCatalog) Save(ctx context.Context, id kernel.UUID, name string, unitWeight *kernel.Weight) error {
	if err := id.Validate(); err != nil {
		return err
	}

	dto := ProductDTO{ID: id.Bytes(), Name: name}
	if unitWeight != nil {
		dto.UnitWeight = decimal.NewNullDecimal(unitWeight.Decimal())
	}

	return c.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&dto).Error
}
