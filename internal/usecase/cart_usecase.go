package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/logging"
	repo "storefront/internal/repository"
	"storefront/internal/telemetry"
)

type ProductFinder interface {
	FindProduct(ctx context.Context, productID string) (model.Product, error)
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (OrderOutput, error)
}

// CartUsecase は /cart の業務ロジックです。
// カートは毎回 読み込み→Cartのメソッドで変更→保存 の順で扱う。
type CartUsecase struct {
	carts    repo.CartStore
	products ProductFinder
	orders   OrderCreator
	metrics  *telemetry.Metrics
}

func NewCartUsecase(
	carts repo.CartStore,
	products ProductFinder,
	orders OrderCreator,
	metrics *telemetry.Metrics,
) *CartUsecase {
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	return &CartUsecase{
		carts:    carts,
		products: products,
		orders:   orders,
		metrics:  metrics,
	}
}

type CartItemResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

type CartResponse struct {
	UserID     string             `json:"user_id"`
	Items      []CartItemResponse `json:"items"`
	TotalItems int64              `json:"total_items"`
	Subtotal   float64            `json:"subtotal"`
}

// PUT /cart の1行。nameとpriceはカタログから取り直す。
type CartLineInput struct {
	ID       string `json:"id"`
	Quantity int64  `json:"quantity"`
}

// GetCart はカート取得（無ければ空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, userID string) (CartResponse, error) {
	cart, err := u.load(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}
	return toCartResponse(cart), nil
}

// AddItem はカートに追加（同一商品は数量+1）。
func (u *CartUsecase) AddItem(ctx context.Context, userID string, productID string) (CartResponse, error) {
	cart, err := u.load(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}

	// 商品チェック
	p, err := u.products.FindProduct(ctx, productID)
	if err != nil {
		return CartResponse{}, err
	}

	if err := cart.AddItem(p.ToCartItem()); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	return u.save(ctx, cart, "add")
}

// RemoveItem は行ごと削除。無い行は何もしない。
func (u *CartUsecase) RemoveItem(ctx context.Context, userID string, itemID string) (CartResponse, error) {
	cart, err := u.load(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}
	cart.RemoveItem(itemID)
	return u.save(ctx, cart, "remove")
}

// DecreaseItem は数量-1（0なら行を消す）。
func (u *CartUsecase) DecreaseItem(ctx context.Context, userID string, itemID string) (CartResponse, error) {
	cart, err := u.load(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}
	cart.DecreaseItem(itemID)
	return u.save(ctx, cart, "decrease")
}

// ReplaceItems はカートを丸ごと置き換える（フロントに残っていたカートの取り込み）。
func (u *CartUsecase) ReplaceItems(ctx context.Context, userID string, lines []CartLineInput) (CartResponse, error) {
	cart, err := u.load(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}

	items := make([]model.CartItem, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l.ID) == "" || l.Quantity < 1 {
			return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid item")
		}
		p, err := u.products.FindProduct(ctx, l.ID)
		if err != nil {
			return CartResponse{}, err
		}
		it := p.ToCartItem()
		it.Quantity = l.Quantity
		items = append(items, it)
	}

	if err := cart.SetItems(items); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid item")
	}
	return u.save(ctx, cart, "set")
}

// Checkout はカートの中身で注文を作る。成功した時だけ注文した分をカートから消す。
func (u *CartUsecase) Checkout(ctx context.Context, userID string) (OrderOutput, error) {
	cart, err := u.load(ctx, userID)
	if err != nil {
		return OrderOutput{}, err
	}
	if cart.Len() == 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "cart empty")
	}

	lines := cart.OrderLines()
	in := CreateOrderInput{UserID: cart.UserID, Items: make([]OrderLineInput, 0, len(lines))}
	for _, l := range lines {
		in.Items = append(in.Items, OrderLineInput{
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			PriceAtPurchase: l.PriceAtPurchase,
		})
	}

	out, err := u.orders.CreateOrder(ctx, in)
	if err != nil {
		return OrderOutput{}, err
	}

	//注文した分だけカートから引く（注文中に追加された分は残す）。失敗しても注文は成立済み
	err = u.carts.Update(ctx, cart.UserID, func(current *model.Cart) error {
		current.RemoveOrdered(lines)
		return nil
	})
	if err != nil {
		logging.FromContext(ctx).Warn("cart clear after checkout failed", "user_id", cart.UserID, "order_id", out.ID, "error", err.Error())
	}
	u.metrics.CartOperations.WithLabelValues("checkout").Inc()
	return out, nil
}

func (u *CartUsecase) load(ctx context.Context, userID string) (*model.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid user_id")
	}

	cart, err := u.carts.Load(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.NewCart(userID), nil
	}
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "cart store error")
	}
	return cart, nil
}

func (u *CartUsecase) save(ctx context.Context, cart *model.Cart, op string) (CartResponse, error) {
	if err := u.carts.Save(ctx, cart); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "cart store error")
	}
	u.metrics.CartOperations.WithLabelValues(op).Inc()
	return toCartResponse(cart), nil
}

func toCartResponse(cart *model.Cart) CartResponse {
	items := cart.Items()
	out := make([]CartItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, CartItemResponse{
			ID:       it.ID,
			Name:     it.Name,
			Price:    it.Price.InexactFloat64(),
			Quantity: it.Quantity,
		})
	}
	return CartResponse{
		UserID:     cart.UserID,
		Items:      out,
		TotalItems: cart.TotalItems(),
		Subtotal:   cart.Subtotal().InexactFloat64(),
	}
}
