package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /cart/:user_id のHTTP
type CartHandler struct {
	uc   *usecase.CartUsecase
	auth echo.MiddlewareFunc
}

// DI（authはnil可）
func NewCartHandler(uc *usecase.CartUsecase, auth echo.MiddlewareFunc) *CartHandler {
	return &CartHandler{uc: uc, auth: auth}
}

type AddCartRequest struct {
	ProductID string `json:"product_id"`
}

type ReplaceCartRequest struct {
	Items []usecase.CartLineInput `json:"items"`
}

func (h *CartHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/cart/:user_id")
	if h.auth != nil {
		g.Use(h.auth)
	}
	g.Use(h.ownerOnly)

	g.GET("", h.getCart)
	g.PUT("", h.replace)
	g.POST("/items", h.addItem)
	g.DELETE("/items/:id", h.removeItem)
	g.POST("/items/:id/decrease", h.decreaseItem)
	g.POST("/checkout", h.checkout)
}

// パスのuser_idがトークンのsubと一致しなければ403
func (h *CartHandler) ownerOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := authorizeUser(c, c.Param("user_id")); err != nil {
			return writeError(c, err)
		}
		return next(c)
	}
}

func (h *CartHandler) getCart(c echo.Context) error {
	out, err := h.uc.GetCart(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) addItem(c echo.Context) error {
	var req AddCartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.AddItem(c.Request().Context(), c.Param("user_id"), req.ProductID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) removeItem(c echo.Context) error {
	out, err := h.uc.RemoveItem(c.Request().Context(), c.Param("user_id"), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) decreaseItem(c echo.Context) error {
	out, err := h.uc.DecreaseItem(c.Request().Context(), c.Param("user_id"), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) replace(c echo.Context) error {
	var req ReplaceCartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.ReplaceItems(c.Request().Context(), c.Param("user_id"), req.Items)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// チェックアウトは注文APIと同じ形で返す
func (h *CartHandler) checkout(c echo.Context) error {
	out, err := h.uc.Checkout(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return writeOrderError(c, err)
	}
	return c.JSON(http.StatusCreated, OrderEnvelope{Success: true, Order: &out})
}
