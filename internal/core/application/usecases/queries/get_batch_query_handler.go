package queries

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GetBatchQueryHandler reads straight from the batches and orders tables,
// bypassing the aggregates. Members are listed in join order.
type GetBatchQueryHandler struct {
	db *gorm.DB
}

func NewGetBatchQueryHandler(db *gorm.DB) GetBatchQueryHandler {
	return GetBatchQueryHandler{db: db}
}

func (h GetBatchQueryHandler) Handle(ctx context.Context, query GetBatchQuery) (BatchView, error) {
	if err := query.Validate(); err != nil {
		return BatchView{}, err
	}

	db := h.db.WithContext(ctx)
	id := query.BatchID()

	row := db.Raw(`
		SELECT
			id,
			zone,
			sequence,
			status,
			total_weight,
			min_threshold,
			max_capacity,
			driver_id,
			created_at
		FROM batches
		WHERE id = ?
	`, id.String()).Row()

	view, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return BatchView{}, errs.NewObjectNotFoundError("batch", id)
	}
	if err != nil {
		return BatchView{}, err
	}

	rows, err := db.Raw(`
		SELECT
			id,
			weight,
			approval_state,
			delivery_state,
			batched_at
		FROM orders
		WHERE batch_id = ?
		ORDER BY batched_at, id
	`, id.String()).Rows()
	if err != nil {
		return BatchView{}, err
	}
	defer rows.Close()

	view.Members = make([]MemberView, 0)
	for rows.Next() {
		var (
			orderID   uuid.UUID
			weight    decimal.NullDecimal
			batchedAt sql.NullTime
			member    MemberView
		)
		if err = rows.Scan(&orderID, &weight, &member.ApprovalState, &member.DeliveryState, &batchedAt); err != nil {
			return BatchView{}, err
		}

		if member.OrderID, err = kernel.UUIDFromGoogle(orderID); err != nil {
			return BatchView{}, err
		}
		if weight.Valid {
			member.Weight = weight.Decimal.String()
		}
		if batchedAt.Valid {
			at := batchedAt.Time.UTC()
			member.BatchedAt = &at
		}
		view.Members = append(view.Members, member)
	}

	if err = rows.Err(); err != nil {
		return BatchView{}, err
	}

	return view, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (BatchView, error) {
	var (
		view                          BatchView
		id                            uuid.UUID
		driverID                      uuid.NullUUID
		total, minThreshold, capacity decimal.Decimal
		createdAt                     time.Time
	)

	err := row.Scan(
		&id,
		&view.Zone,
		&view.Sequence,
		&view.Status,
		&total,
		&minThreshold,
		&capacity,
		&driverID,
		&createdAt,
	)
	if err != nil {
		return BatchView{}, err
	}

	if view.ID, err = kernel.UUIDFromGoogle(id); err != nil {
		return BatchView{}, err
	}
	if driverID.Valid {
		driver, idErr := kernel.UUIDFromGoogle(driverID.UUID)
		if idErr != nil {
			return BatchView{}, idErr
		}
		view.DriverID = &driver
	}
	view.TotalWeight = total.String()
	view.MinThreshold = minThreshold.String()
	view.MaxCapacity = capacity.String()
	view.CreatedAt = createdAt.UTC()

	return view, nil
}
