package handlers

import (
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// PaymentHandler handles the online payment round-trip.
type PaymentHandler struct {
	service  *services.PaymentService
	respond  *Responder
	validate *validator.Validate
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *services.PaymentService, respond *Responder) *PaymentHandler {
	return &PaymentHandler{
		service:  service,
		respond:  respond,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the payment routes with the Fiber app.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/payments/intent", h.HandleCreateIntent)
	router.Post("/payments/failure", h.HandlePaymentFailure)
	router.Post("/orders/finalize", h.HandleFinalize)
}

type intentBody struct {
	checkoutBody
	Amount   *decimal.Decimal `json:"amount"`
	Currency string           `json:"currency" validate:"omitempty,len=3,alpha"`
	Receipt  string           `json:"receipt" validate:"omitempty,max=40"`
}

type finalizeBody struct {
	checkoutBody
	Total   *decimal.Decimal     `json:"total"`
	Payment *models.PaymentProof `json:"payment" validate:"required"`
}

type failureBody struct {
	GatewayOrderID string `json:"gatewayOrderId" validate:"required,max=64"`
	Reason         string `json:"reason" validate:"omitempty,max=255"`
}

// HandleCreateIntent starts an online payment for the caller's checkout.
func (h *PaymentHandler) HandleCreateIntent(c *fiber.Ctx) error {
	var body intentBody
	if err := c.BodyParser(&body); err != nil {
		return h.respond.BadBody(c, err)
	}
	if err := h.validate.Struct(body); err != nil {
		return h.respond.ValidationFailed(c, err)
	}

	intent, err := h.service.CreateIntent(c.UserContext(), currentUser(c), services.IntentRequest{
		Order:    body.request(models.ChoiceOnline),
		Amount:   body.Amount,
		Currency: body.Currency,
		Receipt:  body.Receipt,
	})
	if err != nil {
		return h.respond.Error(c, err)
	}
	return c.JSON(intent)
}

// HandleFinalize verifies the gateway proof and creates the paid order.
func (h *PaymentHandler) HandleFinalize(c *fiber.Ctx) error {
	var body finalizeBody
	if err := c.BodyParser(&body); err != nil {
		return h.respond.BadBody(c, err)
	}
	if err := h.validate.Struct(body); err != nil {
		return h.respond.ValidationFailed(c, err)
	}

	order, err := h.service.Finalize(c.UserContext(), currentUser(c), services.FinalizeRequest{
		Order: body.request(models.ChoiceOnline),
		Total: body.Total,
		Proof: *body.Payment,
	})
	if err != nil {
		return h.respond.Error(c, err)
	}
	return c.JSON(orderCreated(order))
}

// HandlePaymentFailure records a failed or abandoned payment.
func (h *PaymentHandler) HandlePaymentFailure(c *fiber.Ctx) error {
	var body failureBody
	if err := c.BodyParser(&body); err != nil {
		return h.respond.BadBody(c, err)
	}
	if err := h.validate.Struct(body); err != nil {
		return h.respond.ValidationFailed(c, err)
	}

	if err := h.service.RecordFailure(c.UserContext(), currentUser(c), body.GatewayOrderID, body.Reason); err != nil {
		return h.respond.Error(c, err)
	}
	return c.JSON(fiber.Map{
		"status":    models.IntentFailed,
		"retryable": true,
	})
}
