package http

import (
	"time"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/pkg/errs"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

type NewOrderRequest struct {
	ID      openapi_types.UUID `json:"id"`
	Address *AddressDTO        `json:"address,omitempty"`
	Items   []OrderItemDTO     `json:"items"`
}

type AddressDTO struct {
	Zone string   `json:"zone,omitempty"`
	Line string   `json:"line,omitempty"`
	Lat  *float64 `json:"lat,omitempty"`
	Lng  *float64 `json:"lng,omitempty"`
}

type OrderItemDTO struct {
	ProductID openapi_types.UUID `json:"product_id"`
	Quantity  int64              `json:"quantity"`
}

type OrderCreatedResponse struct {
	ID string `json:"id"`
}

type AssignmentResponse struct {
	OrderID         string `json:"order_id"`
	BatchID         string `json:"batch_id"`
	Zone            string `json:"zone"`
	CreatedBatch    bool   `json:"created_batch"`
	AlreadyAssigned bool   `json:"already_assigned"`
	BecameReady     bool   `json:"became_ready"`
}

type ApprovalResponse struct {
	Approved   bool                `json:"approved"`
	Assignment *AssignmentResponse `json:"assignment,omitempty"`
}

type DeliveryResponse struct {
	OrderID          string `json:"order_id"`
	BatchID          string `json:"batch_id"`
	AlreadyDelivered bool   `json:"already_delivered"`
	BatchDelivered   bool   `json:"batch_delivered"`
}

type CancellationResponse struct {
	OrderID          string  `json:"order_id"`
	BatchID          *string `json:"batch_id"`
	BatchCancelled   bool    `json:"batch_cancelled"`
	AlreadyCancelled bool    `json:"already_cancelled"`
}

type TransitionRequest struct {
	Action string `json:"action"`
}

type TransitionResponse struct {
	BatchID  string  `json:"batch_id"`
	Status   string  `json:"status"`
	DriverID *string `json:"driver_id"`
	Members  int     `json:"members"`
}

type BatchResponse struct {
	ID           string           `json:"id"`
	Zone         string           `json:"zone"`
	Sequence     int64            `json:"sequence"`
	Status       string           `json:"status"`
	TotalWeight  string           `json:"total_weight"`
	MinThreshold string           `json:"min_threshold"`
	MaxCapacity  string           `json:"max_capacity"`
	DriverID     *string          `json:"driver_id"`
	CreatedAt    time.Time        `json:"created_at"`
	Members      []MemberResponse `json:"members,omitempty"`
}

type MemberResponse struct {
	OrderID       string     `json:"order_id"`
	Weight        string     `json:"weight,omitempty"`
	ApprovalState string     `json:"approval_state"`
	DeliveryState string     `json:"delivery_state"`
	BatchedAt     *time.Time `json:"batched_at"`
}

type DriverShiftRequest struct {
	Zone      string               `json:"zone"`
	DriverIDs []openapi_types.UUID `json:"driver_ids"`
}

type DriverAvailabilityResponse struct {
	Zone      string `json:"zone"`
	Available int64  `json:"available"`
}

type ProductRequest struct {
	Name       string  `json:"name"`
	UnitWeight *string `json:"unit_weight"`
}

// toCreateOrderCommand rejects a half-specified coordinate instead of
// silently dropping it.
func (r NewOrderRequest) toCreateOrderCommand() (commands.CreateOrderCommand, error) {
	orderID, err := kernel.UUIDFromGoogle(r.ID)
	if err != nil {
		return commands.CreateOrderCommand{}, err
	}

	var address order.Address
	if r.Address != nil {
		point, pointErr := r.Address.point()
		if pointErr != nil {
			return commands.CreateOrderCommand{}, pointErr
		}
		address = order.NewAddress(r.Address.Zone, r.Address.Line, point)
	}

	items := make([]commands.OrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		productID, idErr := kernel.UUIDFromGoogle(item.ProductID)
		if idErr != nil {
			return commands.CreateOrderCommand{}, idErr
		}
		items = append(items, commands.OrderItem{ProductID: productID, Quantity: item.Quantity})
	}

	return commands.NewCreateOrderCommand(orderID, address, items)
}

func (a AddressDTO) point() (*kernel.GeoPoint, error) {
	switch {
	case a.Lat == nil && a.Lng == nil:
		return nil, nil
	case a.Lat == nil:
		return nil, errs.NewValueIsRequiredError("lat")
	case a.Lng == nil:
		return nil, errs.NewValueIsRequiredError("lng")
	}
	p, err := kernel.NewGeoPoint(*a.Lat, *a.Lng)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r DriverShiftRequest) toCommand() (commands.RegisterDriversCommand, error) {
	ids := make([]kernel.UUID, 0, len(r.DriverIDs))
	for _, raw := range r.DriverIDs {
		id, err := kernel.UUIDFromGoogle(raw)
		if err != nil {
			return commands.RegisterDriversCommand{}, err
		}
		ids = append(ids, id)
	}
	return commands.NewRegisterDriversCommand(r.Zone, ids)
}

func (r ProductRequest) toCommand(productID kernel.UUID) (commands.SaveProductCommand, error) {
	var unitWeight *kernel.Weight
	if r.UnitWeight != nil {
		w, err := kernel.WeightFromString(*r.UnitWeight)
		if err != nil {
			return commands.SaveProductCommand{}, errs.NewValueIsInvalidErrorWithCause("unit_weight", err)
		}
		unitWeight = &w
	}
	return commands.NewSaveProductCommand(productID, r.Name, unitWeight)
}

func toAssignmentResponse(r commands.AssignOrderResult) AssignmentResponse {
	return AssignmentResponse{
		OrderID:         r.OrderID.String(),
		BatchID:         r.BatchID.String(),
		Zone:            r.Zone,
		CreatedBatch:    r.CreatedBatch,
		AlreadyAssigned: r.AlreadyAssigned,
		BecameReady:     r.BecameReady,
	}
}

func toBatchResponse(v queries.BatchView) BatchResponse {
	resp := BatchResponse{
		ID:           v.ID.String(),
		Zone:         v.Zone,
		Sequence:     v.Sequence,
		Status:       v.Status,
		TotalWeight:  v.TotalWeight,
		MinThreshold: v.MinThreshold,
		MaxCapacity:  v.MaxCapacity,
		DriverID:     idString(v.DriverID),
		CreatedAt:    v.CreatedAt,
	}
	if len(v.Members) > 0 {
		resp.Members = make([]MemberResponse, len(v.Members))
		for i, m := range v.Members {
			resp.Members[i] = MemberResponse{
				OrderID:       m.OrderID.String(),
				Weight:        m.Weight,
				ApprovalState: m.ApprovalState,
				DeliveryState: m.DeliveryState,
				BatchedAt:     m.BatchedAt,
			}
		}
	}
	return resp
}

func idString(id *kernel.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
