package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

type ProductUsecase struct {
	productRepo repo.ProductRepository
}

// DI
func NewProductUsecase(productRepo repo.ProductRepository) *ProductUsecase {
	return &ProductUsecase{productRepo: productRepo}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page  int
	Limit int
	Q     string
}

type ProductOutput struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"image_url,omitempty"`
}

type ProductListOutput struct {
	Items []ProductOutput `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) ListProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "q too long")
	}

	items, total, err := u.productRepo.List(ctx, repo.ProductListQuery{
		Page:  in.Page,
		Limit: in.Limit,
		Q:     strings.TrimSpace(in.Q),
	})
	if err != nil {
		return ProductListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	out := make([]ProductOutput, 0, len(items))
	for _, p := range items {
		out = append(out, toProductOutput(p))
	}

	return ProductListOutput{
		Items: out,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

func (u *ProductUsecase) GetProduct(ctx context.Context, productID string) (ProductOutput, error) {
	p, err := u.FindProduct(ctx, productID)
	if err != nil {
		return ProductOutput{}, err
	}
	return toProductOutput(p), nil
}

// FindProduct はカート追加でも使う（価格はカタログの値）。
func (u *ProductUsecase) FindProduct(ctx context.Context, productID string) (model.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return p, nil
}

// SeedIfEmpty は商品が1件も無い時だけ初期カタログを入れる。
func (u *ProductUsecase) SeedIfEmpty(ctx context.Context, products []model.Product) (bool, error) {
	n, err := u.productRepo.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if err := u.productRepo.CreateBulk(ctx, products); err != nil {
		return false, err
	}
	return true, nil
}

// 初期カタログ
func DefaultCatalog() []model.Product {
	seed := []struct {
		id, name, price string
	}{
		{"1", "Whole Pineapple", "19.99"},
		{"2", "Canned Pineapple", "29.99"},
		{"3", "Pineapple Juice", "39.99"},
		{"4", "Pineapple Sauce", "49.99"},
		{"5", "Sliced Pineapple", "59.99"},
		{"6", "Pineapple Bar Soap", "69.99"},
		{"7", "Pineapple State Flag", "79.99"},
		{"8", "Pineapple Hat", "89.99"},
	}

	out := make([]model.Product, 0, len(seed))
	for _, s := range seed {
		out = append(out, model.Product{
			ID:    s.id,
			Name:  s.name,
			Price: decimal.RequireFromString(s.price),
		})
	}
	return out
}

func toProductOutput(p model.Product) ProductOutput {
	return ProductOutput{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price.InexactFloat64(),
		ImageURL: p.ImageURL,
	}
}
