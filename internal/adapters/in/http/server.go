package http

import (
	"context"
	"log/slog"
	"net/http"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/application/usecases/queries"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/metrics"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
	echoSwagger "github.com/swaggo/echo-swagger"
)

type (
	OrderCreator interface {
		Handle(ctx context.Context, cmd commands.CreateOrderCommand) error
	}
	OrderApprover interface {
		Handle(ctx context.Context, cmd commands.ApproveOrderCommand) (commands.ApproveOrderResult, error)
	}
	OrderAssigner interface {
		Handle(ctx context.Context, cmd commands.AssignOrderCommand) (commands.AssignOrderResult, error)
	}
	DeliveryMarker interface {
		Handle(ctx context.Context, cmd commands.MarkOrderDeliveredCommand) (commands.MarkOrderDeliveredResult, error)
	}
	OrderCanceller interface {
		Handle(ctx context.Context, cmd commands.CancelOrderCommand) (commands.CancelOrderResult, error)
	}
	BatchTransitioner interface {
		Handle(ctx context.Context, cmd commands.TransitionBatchCommand) (commands.TransitionBatchResult, error)
	}
	ConsolidationRunner interface {
		Handle(ctx context.Context, cmd commands.RunConsolidationCommand) (commands.ConsolidationReport, error)
	}
	UnassignedSweeper interface {
		Handle(ctx context.Context, cmd commands.SweepUnassignedCommand) (commands.SweepReport, error)
	}
	ZoneReresolver interface {
		Handle(ctx context.Context, cmd commands.ReresolveZonesCommand) (commands.ReresolveReport, error)
	}
	DriverRegistrar interface {
		Handle(ctx context.Context, cmd commands.RegisterDriversCommand) (int64, error)
	}
	ProductSaver interface {
		Handle(ctx context.Context, cmd commands.SaveProductCommand) error
	}
	BatchGetter interface {
		Handle(ctx context.Context, query queries.GetBatchQuery) (queries.BatchView, error)
	}
	BatchLister interface {
		Handle(ctx context.Context, query queries.ListBatchesQuery) ([]queries.BatchView, error)
	}
)

// Handlers are the use cases served over HTTP.
type Handlers struct {
	CreateOrder        OrderCreator
	ApproveOrder       OrderApprover
	AssignOrder        OrderAssigner
	MarkOrderDelivered DeliveryMarker
	CancelOrder        OrderCanceller
	TransitionBatch    BatchTransitioner
	RunConsolidation   ConsolidationRunner
	SweepUnassigned    UnassignedSweeper
	ReresolveZones     ZoneReresolver
	RegisterDrivers    DriverRegistrar
	SaveProduct        ProductSaver
	GetBatch           BatchGetter
	ListBatches        BatchLister
}

// Server translates HTTP requests into commands and queries. Request shapes
// are checked by the OpenAPI validator before a handler runs; handlers still
// return domain validation errors as 400.
type Server struct {
	h      Handlers
	logger *slog.Logger
}

func NewServer(h Handlers, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		h:      h,
		logger: logger.With("component", "http"),
	}
}

// Register mounts the API, health, metrics and swagger routes on e. The API
// group is validated against doc.
func (s *Server) Register(e *echo.Echo, doc *openapi3.T, m *metrics.Metrics) error {
	validate, err := RequestValidator(doc)
	if err != nil {
		return err
	}
	if err = registerSwagger(doc); err != nil {
		return err
	}

	e.Use(MetricsMiddleware(m))

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "Healthy")
	})
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api/v1", validate)
	api.POST("/orders", s.CreateOrder)
	api.POST("/orders/:id/approve", s.ApproveOrder)
	api.POST("/orders/:id/assign", s.AssignOrder)
	api.POST("/orders/:id/delivered", s.MarkOrderDelivered)
	api.POST("/orders/:id/cancel", s.CancelOrder)
	api.GET("/batches", s.ListBatches)
	api.GET("/batches/:id", s.GetBatch)
	api.POST("/batches/:id/transition", s.TransitionBatch)
	api.POST("/consolidation", s.RunConsolidation)
	api.POST("/maintenance/sweep", s.SweepUnassigned)
	api.POST("/maintenance/reresolve-zones", s.ReresolveZones)
	api.POST("/drivers", s.RegisterDrivers)
	api.PUT("/products/:id", s.SaveProduct)

	return nil
}

// CreateOrder handles POST /api/v1/orders.
func (s *Server) CreateOrder(c echo.Context) error {
	var req NewOrderRequest
	if err := c.Bind(&req); err != nil {
		return s.badRequest(c, "invalid request body")
	}

	cmd, err := req.toCreateOrderCommand()
	if err != nil {
		return s.fail(c, err)
	}
	if err = s.h.CreateOrder.Handle(c.Request().Context(), cmd); err != nil {
		return s.fail(c, err)
	}

	return c.JSON(http.StatusCreated, OrderCreatedResponse{ID: cmd.OrderID().String()})
}

// ApproveOrder handles POST /api/v1/orders/{id}/approve.
func (s *Server) ApproveOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return s.fail(c, err)
	}
	cmd, err := commands.NewApproveOrderCommand(id)
	if err != nil {
		return s.fail(c, err)
	}

	result, err := s.h.ApproveOrder.Handle(c.Request().Context(), cmd)
	if err != nil {
		return s.fail(c, err)
	}

	resp := ApprovalResponse{Approved: result.Approved}
	if result.Assignment != nil {
		assignment := toAssignmentResponse(*result.Assignment)
		resp.Assignment = &assignment
	}
	return c.JSON(http.StatusOK, resp)
}

// AssignOrder handles POST /api/v1/orders/{id}/assign.
func (s *Server) AssignOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return s.fail(c, err)
	}
	cmd, err := commands.NewAssignOrderCommand(id)
	if err != nil {
		return s.fail(c, err)
	}

	result, err := s.h.AssignOrder.Handle(c.Request().Context(), cmd)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, toAssignmentResponse(result))
}

// MarkOrderDelivered handles POST /api/v1/orders/{id}/delivered.
func (s *Server) MarkOrderDelivered(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return s.fail(c, err)
	}
	cmd, err := commands.NewMarkOrderDeliveredCommand(id)
	if err != nil {
		return s.fail(c, err)
	}

	result, err := s.h.MarkOrderDelivered.Handle(c.Request().Context(), cmd)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, DeliveryResponse{
		OrderID:          result.OrderID.String(),
		BatchID:          result.BatchID.String(),
		AlreadyDelivered: result.AlreadyDelivered,
		BatchDelivered:   result.BatchDelivered,
	})
}

// CancelOrder handles POST /api/v1/orders/{id}/cancel.
func (s *Server) CancelOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return s.fail(c, err)
	}
	cmd, err := commands.NewCancelOrderCommand(id)
	if err != nil {
		return s.fail(c, err)
	}

	result, err := s.h.CancelOrder.Handle(c.Request().Context(), cmd)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, CancellationResponse{
		OrderID:          result.OrderID.String(),
		BatchID:          idString(result.BatchID),
		BatchCancelled:   result.BatchCancelled,
		AlreadyCancelled: result.AlreadyCancelled,
	})
}

// ListBatches handles GET /api/v1/batches.
func (s *Server) ListBatches(c echo.Context) error {
	var limit int
	if err := runtime.BindQueryParameter("form", true, false, "limit", c.QueryParams(), &limit); err != nil {
		return s.badRequest(c, err.Error())
	}

	query, err := queries.NewListBatchesQuery(c.QueryParam("zone"), c.QueryParam("status"), limit)
	if err != nil {
		return s.fail(c, err)
	}

	views, err := s.h.ListBatches.Handle(c.Request().Context(), query)
	if err != nil {
		return s.fail(c, err)
	}

	response := make([]BatchResponse, len(views))
	for i, v := range views {
		response[i] = toBatchResponse(v)
	}
	return c.JSON(http.StatusOK, response)
}

// GetBatch handles GET /api/v1/batches/{id}.
func (s *Server) GetBatch(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return s.fail(c, err)
	}
	query, err := queries.NewGetBatchQuery(id)
	if err != nil {
		return s.fail(c, err)
	}

	view, err := s.h.GetBatch.Handle(c.Request().Context(), query)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, toBatchResponse(view))
}

// TransitionBatch handles POST /api/v1/batches/{id}/transition.
func (s *Server) TransitionBatch(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return s.fail(c, err)
	}
	var req TransitionRequest
	if err = c.Bind(&req); err != nil {
		return s.badRequest(c, "invalid request body")
	}
	cmd, err := commands.NewTransitionBatchCommand(id, req.Action)
	if err != nil {
		return s.fail(c, err)
	}

	result, err := s.h.TransitionBatch.Handle(c.Request().Context(), cmd)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, TransitionResponse{
		BatchID:  result.BatchID.String(),
		Status:   result.Status.String(),
		DriverID: idString(result.DriverID),
		Members:  result.Members,
	})
}

// RunConsolidation handles POST /api/v1/consolidation.
func (s *Server) RunConsolidation(c echo.Context) error {
	report, err := s.h.RunConsolidation.Handle(c.Request().Context(), commands.NewRunConsolidationCommand())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// SweepUnassigned handles POST /api/v1/maintenance/sweep.
func (s *Server) SweepUnassigned(c echo.Context) error {
	var limit int
	if err := runtime.BindQueryParameter("form", true, false, "limit", c.QueryParams(), &limit); err != nil {
		return s.badRequest(c, err.Error())
	}
	cmd, err := commands.NewSweepUnassignedCommand(limit)
	if err != nil {
		return s.fail(c, err)
	}

	report, err := s.h.SweepUnassigned.Handle(c.Request().Context(), cmd)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// ReresolveZones handles POST /api/v1/maintenance/reresolve-zones.
func (s *Server) ReresolveZones(c echo.Context) error {
	report, err := s.h.ReresolveZones.Handle(c.Request().Context(), commands.NewReresolveZonesCommand())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// RegisterDrivers handles POST /api/v1/drivers.
func (s *Server) RegisterDrivers(c echo.Context) error {
	var req DriverShiftRequest
	if err := c.Bind(&req); err != nil {
		return s.badRequest(c, "invalid request body")
	}
	cmd, err := req.toCommand()
	if err != nil {
		return s.fail(c, err)
	}

	available, err := s.h.RegisterDrivers.Handle(c.Request().Context(), cmd)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, DriverAvailabilityResponse{Zone: cmd.Zone(), Available: available})
}

// SaveProduct handles PUT /api/v1/products/{id}.
func (s *Server) SaveProduct(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return s.fail(c, err)
	}
	var req ProductRequest
	if err = c.Bind(&req); err != nil {
		return s.badRequest(c, "invalid request body")
	}
	cmd, err := req.toCommand(id)
	if err != nil {
		return s.fail(c, err)
	}

	if err = s.h.SaveProduct.Handle(c.Request().Context(), cmd); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Code: http.StatusBadRequest, Message: message})
}

func pathID(c echo.Context) (kernel.UUID, error) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", c.Param("id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		return kernel.UUID{}, errs.NewValueIsInvalidErrorWithCause("id", err)
	}
	return kernel.UUIDFromGoogle(id)
}
