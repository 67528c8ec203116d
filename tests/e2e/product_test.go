package e2e

import (
	"context"
	"net/http"
	"testing"
	"time"
)

type ProductList struct {
	Items []struct {
		ID    string  `json:"id"`
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	} `json:"items"`
	Total int64 `json:"total"`
}

func TestProducts_List(t *testing.T) {
	c := NewTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, data := c.doJSON(ctx, t, http.MethodGet, "/products?q=pineapple", nil)
	requireStatus(t, resp, http.StatusOK, data)

	list := mustDecode[ProductList](t, data)
	if list.Total == 0 || len(list.Items) == 0 {
		t.Fatalf("catalog is empty: %s", string(data))
	}

	resp, data = c.doJSON(ctx, t, http.MethodGet, "/products/does-not-exist", nil)
	requireStatus(t, resp, http.StatusNotFound, data)
}
