package handlers

import (
	"errors"
	"fmt"

	"storefront/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Responder writes JSON error bodies of the form {message, error?}. The
// error detail is only included outside production.
type Responder struct {
	log          *zap.Logger
	exposeDetail bool
}

// NewResponder creates a new Responder.
func NewResponder(log *zap.Logger, exposeDetail bool) *Responder {
	return &Responder{log: log, exposeDetail: exposeDetail}
}

// Error maps err to its HTTP status and writes it.
func (r *Responder) Error(c *fiber.Ctx, err error) error {
	status := apperr.StatusCode(err)
	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.String("kind", apperr.KindOf(err).String()),
		zap.Error(err),
	}
	if requestID, ok := c.Locals("request_id").(string); ok {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if status >= fiber.StatusInternalServerError {
		r.log.Error("Request failed", fields...)
	} else {
		r.log.Info("Request rejected", fields...)
	}

	body := fiber.Map{"message": apperr.PublicMessage(err)}
	if r.exposeDetail {
		body["error"] = err.Error()
	}
	return c.Status(status).JSON(body)
}

// BadBody answers a request whose body could not be parsed.
func (r *Responder) BadBody(c *fiber.Ctx, err error) error {
	body := fiber.Map{"message": "Invalid request body"}
	if r.exposeDetail {
		body["error"] = err.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

// ValidationFailed answers with one message per failing field.
func (r *Responder) ValidationFailed(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return r.Error(c, apperr.Validation("%v", err))
	}
	errorMessages := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}

// currentUser returns the authenticated user id set by the auth middleware.
func currentUser(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}
