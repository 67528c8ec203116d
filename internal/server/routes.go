package server

import (
	"storefront/internal/handler"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Health   *handler.HealthHandler
	Products *handler.ProductHandler
	Orders   *handler.OrderHandler
	Cart     *handler.CartHandler
}

func RegisterRoutes(e *echo.Echo, h Handlers) {
	if h.Health != nil {
		h.Health.RegisterRoutes(e)
	}
	if h.Products != nil {
		h.Products.RegisterRoutes(e)
	}
	if h.Orders != nil {
		h.Orders.RegisterRoutes(e)
	}
	if h.Cart != nil {
		h.Cart.RegisterRoutes(e)
	}
}
