package handlers

import (
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AddressHandler manages the caller's shipping addresses.
type AddressHandler struct {
	service  *services.AddressService
	respond  *Responder
	validate *validator.Validate
}

// NewAddressHandler creates a new AddressHandler.
func NewAddressHandler(service *services.AddressService, respond *Responder) *AddressHandler {
	return &AddressHandler{service: service, respond: respond, validate: validator.New()}
}

// RegisterRoutes registers the address routes with the Fiber app.
func (h *AddressHandler) RegisterRoutes(router fiber.Router) {
	addressRoutes := router.Group("/addresses")
	addressRoutes.Get("/", h.HandleListAddresses)
	addressRoutes.Post("/", h.HandleCreateAddress)
}

func (h *AddressHandler) HandleListAddresses(c *fiber.Ctx) error {
	addresses, err := h.service.List(c.UserContext(), currentUser(c))
	if err != nil {
		return h.respond.Error(c, err)
	}
	return c.JSON(addresses)
}

func (h *AddressHandler) HandleCreateAddress(c *fiber.Ctx) error {
	var address models.Address
	if err := c.BodyParser(&address); err != nil {
		return h.respond.BadBody(c, err)
	}
	if err := h.validate.Struct(address); err != nil {
		return h.respond.ValidationFailed(c, err)
	}
	if err := h.service.Create(c.UserContext(), currentUser(c), &address); err != nil {
		return h.respond.Error(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(address)
}
