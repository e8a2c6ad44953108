package handlers

import (
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CartHandler manages the caller's server-side cart.
type CartHandler struct {
	service  *services.CartService
	respond  *Responder
	validate *validator.Validate
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService, respond *Responder) *CartHandler {
	return &CartHandler{service: service, respond: respond, validate: validator.New()}
}

// RegisterRoutes registers the cart routes with the Fiber app.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Get("/summary", h.HandleSummary)
}

type addCartItemBody struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required"`
}

func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	items, err := h.service.List(c.UserContext(), currentUser(c))
	if err != nil {
		return h.respond.Error(c, err)
	}
	return c.JSON(items)
}

func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var body addCartItemBody
	if err := c.BodyParser(&body); err != nil {
		return h.respond.BadBody(c, err)
	}
	if err := h.validate.Struct(body); err != nil {
		return h.respond.ValidationFailed(c, err)
	}
	item, err := h.service.AddItem(c.UserContext(), currentUser(c), body.ProductID, body.Quantity)
	if err != nil {
		return h.respond.Error(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// HandleSummary prices the cart with the same rules checkout uses.
func (h *CartHandler) HandleSummary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(c.UserContext(), currentUser(c))
	if err != nil {
		return h.respond.Error(c, err)
	}
	return c.JSON(summary)
}
