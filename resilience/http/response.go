// Package http exposes the resilience layer over HTTP: liveness and
// readiness probes, the authenticated full health endpoint, forced checks,
// and administrative breaker controls.
package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Response is the envelope for error payloads.
type Response struct {
	Code    string `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// OK sends an HTTP 200 OK response with a custom body.
func OK(c *fiber.Ctx, s any) error {
	return c.Status(http.StatusOK).JSON(s)
}

// ServiceUnavailable sends an HTTP 503 response with a custom body.
func ServiceUnavailable(c *fiber.Ctx, s any) error {
	return c.Status(http.StatusServiceUnavailable).JSON(s)
}

// BadRequest sends an HTTP 400 Bad Request response.
func BadRequest(c *fiber.Ctx, code, title, message string) error {
	return c.Status(http.StatusBadRequest).JSON(Response{
		Code:    code,
		Title:   title,
		Message: message,
	})
}

// NotFound sends an HTTP 404 Not Found response.
func NotFound(c *fiber.Ctx, code, title, message string) error {
	return c.Status(http.StatusNotFound).JSON(Response{
		Code:    code,
		Title:   title,
		Message: message,
	})
}
