package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Smehapavi/AgriNex/internal/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// errorHandler maps domain errors to status codes: validation failures are the caller's
// fault, upstream failures are reported as a bad gateway and everything else, including
// an unavailable store, is an internal error.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		message = fe.Message
	case errors.Is(err, domain.ErrUpstreamService):
		code = fiber.StatusBadGateway
		message = "Upstream service failed"
	case domain.IsValidation(err):
		code = fiber.StatusBadRequest
		message = "Validation failed"
	case errors.Is(err, domain.ErrStoreUnavailable):
		message = "Store unavailable"
	}

	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"status_code", code,
			"error", err,
		)
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   message,
		Details: err.Error(),
	})
}

// parseBody decodes the JSON body into out. Unknown enum values keep their field-level
// validation error; any other decoding failure is reported against the body.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		if domain.IsValidation(err) {
			return err
		}
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}
