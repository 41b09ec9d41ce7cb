// Package orderrepo maps order aggregates, with their line items, to the
// orders and order_items tables.
package orderrepo

import (
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderDTO is the dispatch view of an order. Zone and weight stay empty until
// frozen at assignment time.
type OrderDTO struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Address       AddressDTO          `gorm:"embedded;embeddedPrefix:address_"`
	Zone          string              `gorm:"type:varchar(128);not null;default:'';index"`
	Weight        decimal.NullDecimal `gorm:"type:numeric(14,3)"`
	ApprovalState string              `gorm:"type:varchar(16);not null;index"`
	DeliveryState string              `gorm:"type:varchar(16);not null"`
	BatchID       *uuid.UUID          `gorm:"type:uuid;index"`
	BatchedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Items         []LineItemDTO `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (OrderDTO) TableName() string {
	return "orders"
}

// AddressDTO is embedded into the orders table.
type AddressDTO struct {
	Zone string   `gorm:"type:varchar(128)"`
	Line string   `gorm:"type:text"`
	Lat  *float64 `gorm:"type:double precision"`
	Lng  *float64 `gorm:"type:double precision"`
}

type LineItemDTO struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"type:uuid;not null"`
	Quantity  int64     `gorm:"not null"`
}

func (LineItemDTO) TableName() string {
	return "order_items"
}

func fromDomain(o *order.Order) OrderDTO {
	dto := OrderDTO{
		ID:            o.ID().Bytes(),
		Address:       addressFromDomain(o.Address()),
		Zone:          o.Zone(),
		ApprovalState: o.ApprovalState().String(),
		DeliveryState: o.DeliveryState().String(),
		BatchedAt:     o.BatchedAt(),
	}

	if w, ok := o.Weight(); ok {
		dto.Weight = decimal.NewNullDecimal(w.Decimal())
	}
	if ref := o.BatchRef(); ref != nil {
		raw := ref.Bytes()
		dto.BatchID = &raw
	}

	for _, item := range o.Items() {
		dto.Items = append(dto.Items, LineItemDTO{
			OrderID:   dto.ID,
			ProductID: item.ProductID().Bytes(),
			Quantity:  item.Quantity(),
		})
	}

	return dto
}

func addressFromDomain(a order.Address) AddressDTO {
	dto := AddressDTO{Zone: a.Zone(), Line: a.Line()}
	if p, ok := a.Point(); ok {
		lat, lng := p.Lat(), p.Lng()
		dto.Lat, dto.Lng = &lat, &lng
	}
	return dto
}

func toDomain(dto OrderDTO) (*order.Order, error) {
	id, err := kernel.UUIDFromGoogle(dto.ID)
	if err != nil {
		return nil, err
	}

	address, err := addressToDomain(dto.Address)
	if err != nil {
		return nil, err
	}

	items := make([]order.LineItem, 0, len(dto.Items))
	for _, itemDTO := range dto.Items {
		productID, productErr := kernel.UUIDFromGoogle(itemDTO.ProductID)
		if productErr != nil {
			return nil, productErr
		}
		item, itemErr := order.NewLineItem(productID, itemDTO.Quantity)
		if itemErr != nil {
			return nil, itemErr
		}
		items = append(items, item)
	}

	approval, err := order.ParseApprovalState(dto.ApprovalState)
	if err != nil {
		return nil, err
	}
	delivery, err := order.ParseDeliveryState(dto.DeliveryState)
	if err != nil {
		return nil, err
	}

	snapshot := order.Snapshot{
		Zone:      dto.Zone,
		Approval:  approval,
		Delivery:  delivery,
		BatchedAt: dto.BatchedAt,
	}

	if dto.Weight.Valid {
		w, weightErr := kernel.NewWeight(dto.Weight.Decimal)
		if weightErr != nil {
			return nil, weightErr
		}
		snapshot.Weight = &w
	}
	if dto.BatchID != nil {
		batchID, batchErr := kernel.UUIDFromGoogle(*dto.BatchID)
		if batchErr != nil {
			return nil, batchErr
		}
		snapshot.BatchRef = &batchID
	}

	return order.RestoreOrder(id, address, items, snapshot)
}

func addressToDomain(dto AddressDTO) (order.Address, error) {
	if dto.Lat == nil || dto.Lng == nil {
		return order.NewAddress(dto.Zone, dto.Line, nil), nil
	}
	point, err := kernel.NewGeoPoint(*dto.Lat, *dto.Lng)
	if err != nil {
		return order.Address{}, err
	}
	return order.NewAddress(dto.Zone, dto.Line, &point), nil
}

func toDomainList(dtos []OrderDTO) ([]*order.Order, error) {
	orders := make([]*order.Order, 0, len(dtos))
	for _, dto := range dtos {
		o, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}
