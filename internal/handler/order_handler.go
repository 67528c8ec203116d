package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 注文APIの共通レスポンス（成功も失敗も success を持つ）
type OrderEnvelope struct {
	Success bool                 `json:"success"`
	Order   *usecase.OrderOutput `json:"order,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type OrderHandler struct {
	uc   *usecase.OrderUsecase
	auth echo.MiddlewareFunc
}

// authはnil可（JWT_SECRETが無い時）
func NewOrderHandler(uc *usecase.OrderUsecase, auth echo.MiddlewareFunc) *OrderHandler {
	return &OrderHandler{uc: uc, auth: auth}
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo) {
	var mw []echo.MiddlewareFunc
	if h.auth != nil {
		mw = append(mw, h.auth)
	}

	e.POST("/create-order", h.create, mw...)
	e.POST("/orders", h.create, mw...)
	e.GET("/orders/:id", h.detail, mw...)
}

func (h *OrderHandler) create(c echo.Context) error {
	var req usecase.CreateOrderInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, OrderEnvelope{Error: "invalid body"})
	}

	//トークンのsubと注文者が一致するか
	if err := authorizeUser(c, req.UserID); err != nil {
		return writeOrderError(c, err)
	}

	out, err := h.uc.CreateOrder(c.Request().Context(), req)
	if err != nil {
		return writeOrderError(c, err)
	}

	return c.JSON(http.StatusCreated, OrderEnvelope{Success: true, Order: &out})
}

func (h *OrderHandler) detail(c echo.Context) error {
	out, err := h.uc.GetOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeOrderError(c, err)
	}
	//他人の注文は存在しないのと同じ扱い（idの存在を漏らさない）
	if err := authorizeUser(c, out.UserID); err != nil {
		if usecase.StatusOf(err) == http.StatusForbidden {
			err = usecase.NewHTTPError(http.StatusNotFound, "not found")
		}
		return writeOrderError(c, err)
	}

	return c.JSON(http.StatusOK, OrderEnvelope{Success: true, Order: &out})
}

// エラーの種類でステータスを変える（検証400 / 永続化500 / 時間切れ503）
func writeOrderError(c echo.Context, err error) error {
	status := usecase.StatusOf(err)
	return c.JSON(status, OrderEnvelope{Success: false, Error: usecase.PublicMessage(err)})
}
