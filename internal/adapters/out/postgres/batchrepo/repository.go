package batchrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	createSavepoint = "batch_create"

	// uniqueViolation is the PostgreSQL SQLSTATE for a unique index conflict.
	uniqueViolation = "23505"
)

var _ ports.BatchRepository = (*GormBatchRepository)(nil)

// GormBatchRepository implements ports.BatchRepository. It expects db to be a
// transaction; Create relies on savepoints.
type GormBatchRepository struct {
	db      *gorm.DB
	tracker aggregateTracker
}

type aggregateTracker interface {
	TrackAggregate(id kernel.UUID, aggregate any)
}

func NewGormBatchRepository(db *gorm.DB, tracker aggregateTracker) *GormBatchRepository {
	return &GormBatchRepository{
		db:      db,
		tracker: tracker,
	}
}

// Create numbers the batch with the next per-zone sequence and inserts it.
// The insert runs under a savepoint so a lost race leaves the surrounding
// transaction usable for the caller's retry.
func (r *GormBatchRepository) Create(ctx context.Context, aggregate *batch.Batch) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	db := r.db.WithContext(ctx)

	var next int64
	if err := db.Model(&BatchDTO{}).
		Select("COALESCE(MAX(sequence), 0) + 1").
		Where("zone = ?", aggregate.Zone()).
		Scan(&next).Error; err != nil {
		return err
	}
	if err := aggregate.SetSequence(next); err != nil {
		return err
	}

	if err := db.SavePoint(createSavepoint).Error; err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	if err := db.Create(&dto).Error; err != nil {
		if !isUniqueViolation(err) {
			return err
		}
		if rbErr := db.RollbackTo(createSavepoint).Error; rbErr != nil {
			return errors.Join(ports.ErrBatchCreateConflict, rbErr)
		}
		return fmt.Errorf("%w: zone %s sequence %d", ports.ErrBatchCreateConflict, aggregate.Zone(), next)
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

// Update persists status, driver and total weight.
func (r *GormBatchRepository) Update(ctx context.Context, aggregate *batch.Batch) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	result := r.db.WithContext(ctx).Model(&BatchDTO{}).Where("id = ?", dto.ID).Updates(map[string]any{
		"status":       dto.Status,
		"total_weight": dto.TotalWeight,
		"driver_id":    dto.DriverID,
		"updated_at":   time.Now().UTC(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewObjectNotFoundError("batch", aggregate.ID().String())
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

func (r *GormBatchRepository) Delete(ctx context.Context, id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Delete(&BatchDTO{}, "id = ?", id.Bytes())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewObjectNotFoundError("batch", id.String())
	}
	return nil
}

func (r *GormBatchRepository) Get(ctx context.Context, id kernel.UUID) (*batch.Batch, error) {
	return r.get(ctx, r.db.WithContext(ctx), id)
}

func (r *GormBatchRepository) GetForUpdate(ctx context.Context, id kernel.UUID) (*batch.Batch, error) {
	return r.get(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormBatchRepository) get(_ context.Context, db *gorm.DB, id kernel.UUID) (*batch.Batch, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto BatchDTO
	if err := db.Take(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("batch", id.String())
		}
		return nil, err
	}

	return toDomain(dto)
}

// FindCandidate picks the pending batch of zone with the least remaining
// capacity that still fits w, oldest first on ties. Rows already locked by a concurrent transaction are skipped rather than
// waited on.
func (r *GormBatchRepository) FindCandidate(ctx context.Context, zone string, w kernel.Weight) (*batch.Batch, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	var dto BatchDTO
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("zone = ? AND status = ?", zone, batch.StatusPending.String()).
		Where("total_weight + ? <= max_capacity", w.Decimal()).
		Order("max_capacity - total_weight ASC").
		Order("created_at ASC").
		Order("sequence ASC").
		Take(&dto).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("candidate batch", zone)
		}
		return nil, err
	}

	return toDomain(dto)
}

// AddWeight increments the stored total only while the batch is pending and
// the result stays within max capacity.
func (r *GormBatchRepository) AddWeight(ctx context.Context, id kernel.UUID, delta kernel.Weight) error {
	if err := errors.Join(id.Validate(), delta.Validate()); err != nil {
		return err
	}

	db := r.db.WithContext(ctx)
	result := db.Model(&BatchDTO{}).
		Where("id = ? AND status = ?", id.Bytes(), batch.StatusPending.String()).
		Where("total_weight + ? <= max_capacity", delta.Decimal()).
		Updates(map[string]any{
			"total_weight": gorm.Expr("total_weight + ?", delta.Decimal()),
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var dto BatchDTO
	if err := db.Take(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NewObjectNotFoundError("batch", id.String())
		}
		return err
	}
	if dto.Status != batch.StatusPending.String() {
		return fmt.Errorf("%w: batch %s is %s", batch.ErrBatchNotOpen, id, dto.Status)
	}
	return errs.NewCapacityExceededError(id.String(), dto.TotalWeight.String(), delta.String(), dto.MaxCapacity.String())
}

// SubtractWeight decrements the stored total of a batch that has no driver
// yet. The total never drops below zero.
func (r *GormBatchRepository) SubtractWeight(ctx context.Context, id kernel.UUID, delta kernel.Weight) error {
	if err := errors.Join(id.Validate(), delta.Validate()); err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Model(&BatchDTO{}).
		Where("id = ? AND status IN ?", id.Bytes(), preDriverStatuses()).
		Updates(map[string]any{
			"total_weight": gorm.Expr("GREATEST(total_weight - ?, 0)", delta.Decimal()),
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: batch %s", batch.ErrBatchHasDriver, id)
	}
	return nil
}

// RecomputeWeight overwrites the stored total with the sum of approved member
// weights.
func (r *GormBatchRepository) RecomputeWeight(ctx context.Context, id kernel.UUID) (kernel.Weight, error) {
	if err := id.Validate(); err != nil {
		return kernel.Weight{}, err
	}

	db := r.db.WithContext(ctx)

	var total decimal.Decimal
	row := db.Table("orders").
		Select("COALESCE(SUM(weight), 0)").
		Where("batch_id = ? AND approval_state = ?", id.Bytes(), order.ApprovalApproved.String()).
		Row()
	if err := row.Scan(&total); err != nil {
		return kernel.Weight{}, err
	}

	weight, err := kernel.NewWeight(total)
	if err != nil {
		return kernel.Weight{}, err
	}

	result := db.Model(&BatchDTO{}).Where("id = ?", id.Bytes()).Updates(map[string]any{
		"total_weight": weight.Decimal(),
		"updated_at":   time.Now().UTC(),
	})
	if result.Error != nil {
		return kernel.Weight{}, result.Error
	}
	if result.RowsAffected == 0 {
		return kernel.Weight{}, errs.NewObjectNotFoundError("batch", id.String())
	}

	return weight, nil
}

func (r *GormBatchRepository) ListPendingForUpdate(ctx context.Context, zone string) ([]*batch.Batch, error) {
	var dtos []BatchDTO
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("zone = ? AND status = ?", zone, batch.StatusPending.String()).
		Order("created_at ASC").
		Order("sequence ASC").
		Find(&dtos).Error; err != nil {
		return nil, err
	}

	return toDomainList(dtos)
}

func (r *GormBatchRepository) ListZonesWithPending(ctx context.Context, minCount int) ([]string, error) {
	var zones []string
	if err := r.db.WithContext(ctx).Model(&BatchDTO{}).
		Where("status = ?", batch.StatusPending.String()).
		Group("zone").
		Having("COUNT(*) > ?", minCount).
		Order("zone").
		Pluck("zone", &zones).Error; err != nil {
		return nil, err
	}
	return zones, nil
}

func (r *GormBatchRepository) ListRepairableForUpdate(ctx context.Context) ([]*batch.Batch, error) {
	var dtos []BatchDTO
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status NOT IN ?", []string{batch.StatusDelivered.String(), batch.StatusCancelled.String()}).
		Order("zone ASC").
		Order("created_at ASC").
		Order("sequence ASC").
		Find(&dtos).Error; err != nil {
		return nil, err
	}

	return toDomainList(dtos)
}

func (r *GormBatchRepository) ListReady(ctx context.Context, limit int) ([]*batch.Batch, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", batch.StatusReadyForDelivery.String()).
		Order("created_at ASC").
		Order("sequence ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var dtos []BatchDTO
	if err := query.Find(&dtos).Error; err != nil {
		return nil, err
	}

	return toDomainList(dtos)
}

func preDriverStatuses() []string {
	return []string{batch.StatusPending.String(), batch.StatusReadyForDelivery.String()}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
