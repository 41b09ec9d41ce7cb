package queries

import (
	"context"

	"gorm.io/gorm"
)

type ListBatchesQueryHandler struct {
	db *gorm.DB
}

func NewListBatchesQueryHandler(db *gorm.DB) ListBatchesQueryHandler {
	return ListBatchesQueryHandler{db: db}
}

// Handle returns batch views without members.
func (h ListBatchesQueryHandler) Handle(ctx context.Context, query ListBatchesQuery) ([]BatchView, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	stmt := h.db.WithContext(ctx).
		Table("batches").
		Select("id, zone, sequence, status, total_weight, min_threshold, max_capacity, driver_id, created_at")
	if zone := query.Zone(); zone != "" {
		stmt = stmt.Where("zone = ?", zone)
	}
	if status, ok := query.Status(); ok {
		stmt = stmt.Where("status = ?", status.String())
	}

	rows, err := stmt.Order("created_at DESC, id").Limit(query.Limit()).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := make([]BatchView, 0)
	for rows.Next() {
		view, scanErr := scanBatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		views = append(views, view)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return views, nil
}
