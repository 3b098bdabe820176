package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/pkg/logging"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	Batch     *int   `json:"batch,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errUnavailable returns a 503 error.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, "unavailable", msg)
}

// errFromDomain maps pipeline and repository errors onto status codes.
func errFromDomain(c *fiber.Ctx, err error) error {
	var be *domain.BatchError
	switch {
	case errors.Is(err, domain.ErrInvalidParameter):
		return newError(c, fiber.StatusBadRequest, "invalid_parameter", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrProjection):
		return newError(c, fiber.StatusUnprocessableEntity, "projection_error", err.Error())
	case errors.As(err, &be):
		logging.FromContext(c.UserContext()).Error("aggregation batch failed", "batch", be.Batch, "error", err)
		reqID, _ := c.Locals("requestid").(string)
		batch := be.Batch
		return c.Status(fiber.StatusInternalServerError).JSON(APIError{
			Status:    fiber.StatusInternalServerError,
			Code:      "batch_failed",
			Message:   err.Error(),
			Batch:     &batch,
			RequestID: reqID,
		})
	}
	logging.FromContext(c.UserContext()).Error("request failed", "error", err)
	return errInternal(c, err.Error())
}
