package orderrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ ports.OrderRepository = (*GormOrderRepository)(nil)

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db      *gorm.DB
	tracker aggregateTracker
}

// aggregateTracker defines the interface for tracking aggregates.
type aggregateTracker interface {
	TrackAggregate(id kernel.UUID, aggregate any)
}

// NewGormOrderRepository creates a new GORM order repository.
func NewGormOrderRepository(db *gorm.DB, tracker aggregateTracker) *GormOrderRepository {
	return &GormOrderRepository{
		db:      db,
		tracker: tracker,
	}
}

// Add saves a new order together with its line items.
func (r *GormOrderRepository) Add(ctx context.Context, aggregate *order.Order) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ports.ErrOrderAlreadyExists, aggregate.ID())
		}
		return err
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

// Update saves the mutable dispatch fields of an existing order. Line items
// are never rewritten.
func (r *GormOrderRepository) Update(ctx context.Context, aggregate *order.Order) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	result := r.db.WithContext(ctx).Model(&OrderDTO{}).Where("id = ?", dto.ID).Updates(map[string]any{
		"zone":           dto.Zone,
		"weight":         dto.Weight,
		"approval_state": dto.ApprovalState,
		"delivery_state": dto.DeliveryState,
		"batch_id":       dto.BatchID,
		"batched_at":     dto.BatchedAt,
		"updated_at":     time.Now().UTC(),
	})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errs.NewObjectNotFoundError("order", aggregate.ID().String())
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

// Get retrieves an order by ID.
func (r *GormOrderRepository) Get(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	return r.get(r.db.WithContext(ctx), id)
}

// GetForUpdate retrieves an order by ID and locks its row.
func (r *GormOrderRepository) GetForUpdate(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormOrderRepository) get(db *gorm.DB, id kernel.UUID) (*order.Order, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto OrderDTO
	if err := db.Take(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("order", id.String())
		}
		return nil, err
	}

	if err := r.loadItems(db, []*OrderDTO{&dto}); err != nil {
		return nil, err
	}

	return toDomain(dto)
}

// ListByBatch returns the members of a batch in the order they joined it.
func (r *GormOrderRepository) ListByBatch(ctx context.Context, batchID kernel.UUID) ([]*order.Order, error) {
	if err := batchID.Validate(); err != nil {
		return nil, err
	}

	return r.find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("batch_id = ?", batchID.Bytes()).Order("batched_at ASC").Order("id ASC")
	})
}

// ListApprovedUnassigned returns up to limit approved orders without a batch,
// oldest first.
func (r *GormOrderRepository) ListApprovedUnassigned(ctx context.Context, limit int) ([]*order.Order, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB {
		db = db.Where("approval_state = ? AND batch_id IS NULL", order.ApprovalApproved.String()).
			Order("created_at ASC").
			Order("id ASC")
		if limit > 0 {
			db = db.Limit(limit)
		}
		return db
	})
}

// ListInZone returns approved orders whose frozen zone is zone.
func (r *GormOrderRepository) ListInZone(ctx context.Context, zone string) ([]*order.Order, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("approval_state = ? AND zone = ?", order.ApprovalApproved.String(), zone).
			Order("created_at ASC")
	})
}

func (r *GormOrderRepository) find(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]*order.Order, error) {
	db := r.db.WithContext(ctx)

	var dtos []OrderDTO
	if err := db.Scopes(scope).Find(&dtos).Error; err != nil {
		return nil, err
	}

	ptrs := make([]*OrderDTO, len(dtos))
	for i := range dtos {
		ptrs[i] = &dtos[i]
	}
	if err := r.loadItems(db, ptrs); err != nil {
		return nil, err
	}

	return toDomainList(dtos)
}

// loadItems fills the line items of dtos with a single query.
func (r *GormOrderRepository) loadItems(db *gorm.DB, dtos []*OrderDTO) error {
	if len(dtos) == 0 {
		return nil
	}

	byOrder := make(map[uuid.UUID]*OrderDTO, len(dtos))
	ids := make([]uuid.UUID, 0, len(dtos))
	for _, dto := range dtos {
		byOrder[dto.ID] = dto
		ids = append(ids, dto.ID)
	}

	var items []LineItemDTO
	if err := db.Session(&gorm.Session{NewDB: true}).
		Where("order_id IN ?", ids).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return err
	}

	for _, item := range items {
		if dto, ok := byOrder[item.OrderID]; ok {
			dto.Items = append(dto.Items, item)
		}
	}
	return nil
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
