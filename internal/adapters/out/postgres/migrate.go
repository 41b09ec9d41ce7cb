package postgres

import (
	"dispatch/internal/adapters/out/postgres/batchrepo"
	"dispatch/internal/adapters/out/postgres/orderrepo"
	"dispatch/internal/adapters/out/postgres/productrepo"

	"gorm.io/gorm"
)

// Migrate creates or updates every table the engine owns, including the
// (zone, sequence) unique index on batches.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&batchrepo.BatchDTO{},
		&orderrepo.OrderDTO{},
		&orderrepo.LineItemDTO{},
		&productrepo.ProductDTO{},
	)
}

// Tables lists the engine tables, children first.
func Tables() []string {
	return []string{"order_items", "orders", "batches", "products"}
}
