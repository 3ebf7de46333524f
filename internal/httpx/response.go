// Package httpx holds the JSON envelope, request binding and error mapping
// shared by every HTTP handler.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ledgerd/internal/dberr"
)

// OK writes a success envelope: {"success": true, ...fields}.
func OK(c *fiber.Ctx, status int, fields fiber.Map) error {
	body := fiber.Map{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

// ErrorHandler renders every error as {"success": false, "error": ...}.
// Database failures become 503 without leaking their cause.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := http.StatusInternalServerError
		body := fiber.Map{"success": false}

		var (
			fe  *fiber.Error
			inv *InvalidRequest
		)
		switch {
		case errors.As(err, &inv):
			status = http.StatusBadRequest
			body["error"] = inv.Error()
			body["details"] = inv.Details
		case errors.As(err, &fe):
			status = fe.Code
			body["error"] = fe.Message
		case dberr.Is(err):
			status = http.StatusServiceUnavailable
			body["error"] = "storage unavailable"
			logger.Error("storage failure", slog.String("path", c.Path()), slog.Any("error", err))
		default:
			body["error"] = "internal error"
			logger.Error("unhandled error", slog.String("path", c.Path()), slog.Any("error", err))
		}
		return c.Status(status).JSON(body)
	}
}
