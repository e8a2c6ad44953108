package handlers

import (
	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// IdempotencyHeader carries the client's submission key.
const IdempotencyHeader = "Idempotency-Key"

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	respond  *Responder
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, respond *Responder) *OrderHandler {
	return &OrderHandler{
		service:  service,
		respond:  respond,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Patch("/:id/status", h.HandleUpdateOrderStatus)
}

// checkoutBody is the shared part of the order, intent and finalize bodies.
type checkoutBody struct {
	Mode      models.CheckoutMode  `json:"mode" validate:"omitempty,oneof=cart buy_now"`
	AddressID string               `json:"addressId" validate:"required"`
	Items     []models.ItemRequest `json:"items" validate:"omitempty,dive"`
}

func (b checkoutBody) request(payment models.PaymentChoice) models.OrderRequest {
	return models.OrderRequest{
		Mode:      b.Mode,
		AddressID: b.AddressID,
		Payment:   payment,
		Items:     b.Items,
	}
}

type createOrderBody struct {
	checkoutBody
	PaymentMethod models.PaymentChoice `json:"paymentMethod" validate:"required,oneof=COD ONLINE"`
}

// HandleGetOrders lists the caller's orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(c.UserContext(), currentUser(c))
	if err != nil {
		return h.respond.Error(c, err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID returns one of the caller's orders.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), currentUser(c), c.Params("id"))
	if err != nil {
		return h.respond.Error(c, err)
	}
	return c.JSON(order)
}

// HandleCreateOrder places a cash-on-delivery order.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var body createOrderBody
	if err := c.BodyParser(&body); err != nil {
		return h.respond.BadBody(c, err)
	}
	if err := h.validate.Struct(body); err != nil {
		return h.respond.ValidationFailed(c, err)
	}

	order, err := h.service.PlaceOrder(c.UserContext(), currentUser(c), c.Get(IdempotencyHeader), body.request(body.PaymentMethod))
	if err != nil {
		return h.respond.Error(c, err)
	}
	return c.JSON(orderCreated(order))
}

// HandleUpdateOrderStatus lets a customer cancel an order before it ships.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var body struct {
		Status models.OrderStatus `json:"status" validate:"required"`
	}
	if err := c.BodyParser(&body); err != nil {
		return h.respond.BadBody(c, err)
	}
	if err := h.validate.Struct(body); err != nil {
		return h.respond.ValidationFailed(c, err)
	}
	if body.Status != models.StatusCancelled {
		return h.respond.Error(c, apperr.Validation("orders can only be cancelled by customers"))
	}

	order, err := h.service.CancelOrder(c.UserContext(), currentUser(c), c.Params("id"))
	if err != nil {
		return h.respond.Error(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Order " + order.ID + " status updated successfully to " + string(order.Status),
		"order":   order,
	})
}

func orderCreated(order *models.Order) fiber.Map {
	return fiber.Map{
		"orderId":    order.ID,
		"status":     order.Status,
		"totalPrice": order.TotalPrice,
	}
}
