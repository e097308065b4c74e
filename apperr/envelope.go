package apperr

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is installed as the fiber error handler so every failure —
// typed, fiber-native, or unexpected — leaves through the same envelope:
//
//	{success:false, error:{message}, timestamp, path, method}
//
// Internal detail (wrapped cause) is appended only when appEnv is
// "development".
func ErrorHandler(appEnv string) fiber.ErrorHandler {
	dev := appEnv == "development"

	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "internal server error"

		var appErr *Error
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &appErr):
			status = appErr.Kind.Status()
			message = appErr.Message
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			message = fiberErr.Message
		}

		// 503s (service unavailable) carry a client-safe message already;
		// only unexpected 500s get scrubbed.
		if status == fiber.StatusInternalServerError {
			log.Printf("❌ [%s %s] %v", c.Method(), c.Path(), err)
			if !dev {
				message = "internal server error"
			}
		}

		errBody := fiber.Map{"message": message}
		if dev && appErr != nil && appErr.Err != nil {
			errBody["detail"] = appErr.Err.Error()
		}

		return c.Status(status).JSON(fiber.Map{
			"success":   false,
			"error":     errBody,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"path":      c.Path(),
			"method":    c.Method(),
		})
	}
}
