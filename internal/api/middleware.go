package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// observe logs every request and records the HTTP metrics. Errors are rendered here so
// that the recorded status code is the one sent to the client.
func (s *Server) observe(c *fiber.Ctx) error {
	start := time.Now()

	if s.metrics != nil {
		s.metrics.HTTPRequestsInFlight.Inc()
		defer s.metrics.HTTPRequestsInFlight.Dec()
	}

	if err := c.Next(); err != nil {
		if herr := s.app.Config().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	route := c.Route().Path
	status := c.Response().StatusCode()
	duration := time.Since(start)

	if s.metrics != nil {
		s.metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(c.Method(), route).Observe(duration.Seconds())
		s.metrics.HTTPResponseSize.WithLabelValues(route).Observe(float64(len(c.Response().Body())))
	}

	s.logger.Debug("request served",
		"method", c.Method(),
		"path", c.Path(),
		"status_code", status,
		"duration", duration,
	)
	return nil
}
