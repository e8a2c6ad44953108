package handlers

import (
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ProductHandler serves the read-only catalog.
type ProductHandler struct {
	service *services.ProductService
	respond *Responder
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, respond *Responder) *ProductHandler {
	return &ProductHandler{service: service, respond: respond}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
}

func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return h.respond.Error(c, err)
	}
	return c.JSON(products)
}

func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.respond.Error(c, err)
	}
	return c.JSON(product)
}
