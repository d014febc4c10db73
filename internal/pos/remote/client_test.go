package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"shop-pos/internal/apperr"
	"shop-pos/internal/pos/inventory"
	"shop-pos/internal/pos/lookup"
	"shop-pos/internal/pos/session"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 2*time.Second)
}

func TestCreateOrder(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/basket/create", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"order_id":"ord-1","client_name":"Asha"}`))
	})

	id, err := c.CreateOrder(context.Background(), "shop-1", "Asha")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", id)
	assert.Equal(t, map[string]string{"shop_id": "shop-1", "client_name": "Asha"}, got)
}

func TestCreateOrderMissingIDIsTransport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"client_name":"Asha"}`))
	})
	_, err := c.CreateOrder(context.Background(), "shop-1", "Asha")
	assert.True(t, apperr.Is(err, apperr.CodeTransport))
}

func TestGetOrderDecodesSnapshot(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/basket/details/ord-1", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"id":"ord-1","shop_id":"shop-1","client_name":"Asha","status":"pi",
			"discount_percent":"10","final_total":"270.00",
			"order_items":[{"product_id":"p-a","item_code":"A-100","quantity":2,"unit_price":"150.00"}]
		}`))
	})

	o, err := c.GetOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusPI, o.Status)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.True(t, o.DiscountPercent.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "270", o.GrandTotal().String())
}

func TestGetOrderRejectsIncompleteSnapshot(t *testing.T) {
	bodies := []string{
		`{"status":"bucket","order_items":[]}`,
		`{"id":"ord-1","status":"weird"}`,
		`{"id":"ord-1","status":"bucket","order_items":[{"product_id":"p","quantity":0}]}`,
		`{"error":"boom"`,
	}
	for _, body := range bodies {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		_, err := c.GetOrder(context.Background(), "ord-1")
		assert.True(t, apperr.Is(err, apperr.CodeTransport), "body %s: %v", body, err)
	}
}

func TestGetOrderRequiresSnapshotFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no client name", `{"id":"ord-1","status":"bucket","discount_percent":"0","order_items":[]}`},
		{"no discount", `{"id":"ord-1","status":"bucket","client_name":"Asha","order_items":[]}`},
		{"no items", `{"id":"ord-1","status":"bucket","client_name":"Asha","discount_percent":"0"}`},
		{"null items", `{"id":"ord-1","status":"bucket","client_name":"Asha","discount_percent":"0","order_items":null}`},
		{"sold without total", `{"id":"ord-1","status":"sold","client_name":"Asha","discount_percent":"0","order_items":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.GetOrder(context.Background(), "ord-1")
			assert.True(t, apperr.Is(err, apperr.CodeTransport), "%v", err)

			_, ok, err := c.ActiveBucket(context.Background(), "shop-1")
			assert.False(t, ok)
			assert.True(t, apperr.Is(err, apperr.CodeTransport), "%v", err)
		})
	}
}

func TestGetOrderSoldWithTotal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"ord-1","status":"sold","client_name":"","discount_percent":"0",
			"final_total":"80.00","order_items":[{"product_id":"p-b","item_code":"B-200","quantity":1,"unit_price":"80"}]}`))
	})

	o, err := c.GetOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusSold, o.Status)
	require.NotNil(t, o.FinalTotal)
	assert.Equal(t, "80", o.FinalTotal.String())
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   apperr.Code
	}{
		{"coded state violation", http.StatusBadRequest, `{"error":"only draft buckets can be deleted","code":"STATE_VIOLATION"}`, apperr.CodeStateViolation},
		{"plain bad request", http.StatusBadRequest, `{"error":"bad"}`, apperr.CodeValidation},
		{"not found", http.StatusNotFound, `{"error":"order not found"}`, apperr.CodeNotFound},
		{"unprocessable", http.StatusUnprocessableEntity, ``, apperr.CodeStateViolation},
		{"server error", http.StatusInternalServerError, `{"error":"db down"}`, apperr.CodeTransport},
		{"bad gateway", http.StatusBadGateway, `oops`, apperr.CodeTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			err := c.DeleteOrder(context.Background(), "ord-1")
			assert.Equal(t, tt.want, apperr.CodeOf(err))
		})
	}
}

func TestUnreachableStoreIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second)
	err := c.FinalizeSale(context.Background(), "ord-1")
	assert.True(t, apperr.Is(err, apperr.CodeTransport))
}

func TestQueryEscaping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/product/by-code":
			assert.Equal(t, "SAR/001 #2", r.URL.Query().Get("item_code"))
			_, _ = w.Write([]byte(`[{"id":"p-1","item_code":"SAR/001 #2","selling_price":10}]`))
		case "/order/remove-item":
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "ord-1", r.URL.Query().Get("order_id"))
			assert.Equal(t, "p-1", r.URL.Query().Get("product_id"))
			_, _ = w.Write([]byte(`{"status":"success"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	p, err := lookup.New(c).ByCode(context.Background(), "SAR/001 #2")
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)

	require.NoError(t, c.RemoveItem(context.Background(), "ord-1", "p-1"))
}

func TestActiveBucketEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, ok, err := c.ActiveBucket(context.Background(), "shop-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearchShopsRequiresResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":0}`))
	})
	_, err := c.SearchShops(context.Background(), "silk")
	assert.True(t, apperr.Is(err, apperr.CodeTransport))
}

func TestInventoryErrorBodyIsTransport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"relation does not exist"}`))
	})
	_, err := c.Inventory(context.Background(), "shop-1")
	assert.True(t, apperr.Is(err, apperr.CodeTransport))
}

func TestInventoryRejectsMalformedListing(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"null body", `null`},
		{"product without id", `[{"item_code":"A-100","selling_price":"150"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Inventory(context.Background(), "shop-1")
			assert.True(t, apperr.Is(err, apperr.CodeTransport), "%v", err)
		})
	}
}

func TestInventoryEmptyListing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	items, err := c.Inventory(context.Background(), "shop-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCacheKeepsListingOnNullBody(t *testing.T) {
	var body atomic.Value
	body.Store(`[{"id":"p-a","item_code":"A-100","selling_price":"150"}]`)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body.Load().(string)))
	})
	cache := inventory.NewCache(c)

	_, err := cache.Load(context.Background(), "shop-1")
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	body.Store(`null`)
	_, err = cache.Load(context.Background(), "shop-1")
	assert.True(t, apperr.Is(err, apperr.CodeTransport))
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, "shop-1", cache.ShopID())
}
