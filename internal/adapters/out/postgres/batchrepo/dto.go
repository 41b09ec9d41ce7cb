// Package batchrepo persists batch aggregates with GORM. Capacity-sensitive
// writes are single guarded statements so that the database, not the caller's
// in-memory copy, decides whether a batch still has room.
package batchrepo

import (
	"time"

	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchDTO is the batches table. (zone, sequence) is unique so that two
// processes racing to open a batch for the same zone cannot both win.
type BatchDTO struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Zone         string          `gorm:"type:varchar(128);not null;uniqueIndex:ux_batches_zone_sequence,priority:1;index:ix_batches_zone_status,priority:1"`
	Sequence     int64           `gorm:"not null;uniqueIndex:ux_batches_zone_sequence,priority:2"`
	Status       string          `gorm:"type:varchar(32);not null;index:ix_batches_zone_status,priority:2"`
	TotalWeight  decimal.Decimal `gorm:"type:numeric(14,3);not null;default:0"`
	MinThreshold decimal.Decimal `gorm:"type:numeric(14,3);not null"`
	MaxCapacity  decimal.Decimal `gorm:"type:numeric(14,3);not null"`
	DriverID     *uuid.UUID      `gorm:"type:uuid"`
	CreatedAt    time.Time       `gorm:"not null"`
	UpdatedAt    time.Time
}

func (BatchDTO) TableName() string {
	return "batches"
}

func fromDomain(b *batch.Batch) BatchDTO {
	var driverID *uuid.UUID
	if id := b.Driver(); id != nil {
		raw := id.Bytes()
		driverID = &raw
	}

	return BatchDTO{
		ID:           b.ID().Bytes(),
		Zone:         b.Zone(),
		Sequence:     b.Sequence(),
		Status:       b.Status().String(),
		TotalWeight:  b.TotalWeight().Decimal(),
		MinThreshold: b.MinThreshold().Decimal(),
		MaxCapacity:  b.MaxCapacity().Decimal(),
		DriverID:     driverID,
		CreatedAt:    b.CreatedAt(),
	}
}

func toDomain(dto BatchDTO) (*batch.Batch, error) {
	id, err := kernel.UUIDFromGoogle(dto.ID)
	if err != nil {
		return nil, err
	}

	var driverID *kernel.UUID
	if dto.DriverID != nil {
		dID, driverErr := kernel.UUIDFromGoogle(*dto.DriverID)
		if driverErr != nil {
			return nil, driverErr
		}
		driverID = &dID
	}

	status, err := batch.ParseStatus(dto.Status)
	if err != nil {
		return nil, err
	}

	total, err := kernel.NewWeight(dto.TotalWeight)
	if err != nil {
		return nil, err
	}
	minThreshold, err := kernel.NewWeight(dto.MinThreshold)
	if err != nil {
		return nil, err
	}
	maxCapacity, err := kernel.NewWeight(dto.MaxCapacity)
	if err != nil {
		return nil, err
	}

	return batch.RestoreBatch(id, dto.Zone, batch.Snapshot{
		Sequence:     dto.Sequence,
		Status:       status,
		TotalWeight:  total,
		MinThreshold: minThreshold,
		MaxCapacity:  maxCapacity,
		DriverRef:    driverID,
		CreatedAt:    dto.CreatedAt,
	})
}

func toDomainList(dtos []BatchDTO) ([]*batch.Batch, error) {
	batches := make([]*batch.Batch, 0, len(dtos))
	for _, dto := range dtos {
		b, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}
