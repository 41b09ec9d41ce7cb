package http

import (
	"errors"
	"net/http"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"

	"github.com/labstack/echo/v4"
)

// RetryAfterSeconds is advertised on every retryable failure.
const RetryAfterSeconds = "1"

type ErrorResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

var conflicts = []error{
	batch.ErrInvalidTransition,
	batch.ErrBatchNotOpen,
	batch.ErrBatchHasDriver,
	order.ErrOrderNotApproved,
	order.ErrOrderAlreadyBatched,
	order.ErrOrderNotBatched,
	order.ErrOrderHasDriver,
	ports.ErrOrderAlreadyExists,
	ports.ErrNoDriverAvailable,
	errs.ErrCapacityExceeded,
}

var badRequests = []error{
	errs.ErrValueIsRequired,
	errs.ErrValueIsInvalid,
	errs.ErrValueIsOutOfRange,
}

// statusOf maps an application error to an HTTP status. Retryable errors
// are checked first because they may wrap domain errors.
func statusOf(err error) int {
	switch {
	case errs.IsRetryable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, errs.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, commands.ErrOrderExceedsCapacity):
		return http.StatusUnprocessableEntity
	}
	for _, target := range conflicts {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	for _, target := range badRequests {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c echo.Context, err error) error {
	status := statusOf(err)
	resp := ErrorResponse{Code: status, Message: err.Error()}

	switch {
	case status == http.StatusServiceUnavailable:
		resp.Retryable = true
		c.Response().Header().Set(echo.HeaderRetryAfter, RetryAfterSeconds)
		s.logger.WarnContext(c.Request().Context(), "request failed, retryable",
			"method", c.Request().Method, "path", c.Path(), "error", err)
	case status == http.StatusInternalServerError:
		resp.Message = http.StatusText(status)
		s.logger.ErrorContext(c.Request().Context(), "request failed",
			"method", c.Request().Method, "path", c.Path(), "error", err)
	}

	return c.JSON(status, resp)
}
