package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shop-pos/internal/apperr"
	"shop-pos/internal/pos/catalog"
	"shop-pos/internal/pos/session"
	"shop-pos/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 20

// Client talks to the order/inventory store over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a store client for baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  util.GetLogger(),
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details"`
}

func (c *Client) raw(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	ctx, span := util.StartSpan(ctx, "remote."+method+" "+path)
	defer span.End()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		util.RemoteCallsTotal.WithLabelValues(method, "error").Inc()
		return nil, apperr.Transport(err, fmt.Sprintf("%s %s", method, path))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		util.RemoteCallsTotal.WithLabelValues(method, "error").Inc()
		return nil, apperr.Transport(err, fmt.Sprintf("read %s %s", method, path))
	}

	util.RemoteCallsTotal.WithLabelValues(method, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	c.logger.Debug("Remote call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, data, method, path)
	}
	return data, nil
}

func statusError(status int, data []byte, method, path string) error {
	var eb errorBody
	_ = json.Unmarshal(data, &eb)

	msg := eb.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	code := apperr.Code(eb.Code)
	switch code {
	case apperr.CodeValidation, apperr.CodeNotFound, apperr.CodeStateViolation:
		return apperr.New(code, msg)
	}

	switch status {
	case http.StatusBadRequest:
		return apperr.Validation(msg)
	case http.StatusNotFound:
		return apperr.NotFound(msg)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return apperr.StateViolation(msg)
	}
	return apperr.Transport(fmt.Errorf("status %d: %s", status, msg), fmt.Sprintf("%s %s", method, path))
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	data, err := c.raw(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Transport(err, fmt.Sprintf("decode %s %s", method, path))
	}
	return nil
}

func malformed(what string) error {
	return apperr.Transport(errors.New("response missing expected fields"), what)
}

// SearchShops finds shops whose name contains name.
func (c *Client) SearchShops(ctx context.Context, name string) ([]catalog.Shop, error) {
	var resp struct {
		Results *[]catalog.Shop `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/search", url.Values{"name": {name}}, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return nil, malformed("search shops")
	}
	return *resp.Results, nil
}

// Inventory fetches every product of a shop. A null body or a product without
// an id is malformed, so a cache never gets replaced by a broken listing.
func (c *Client) Inventory(ctx context.Context, shopID string) ([]catalog.Product, error) {
	var items []catalog.Product
	if err := c.do(ctx, http.MethodGet, "/inventory/"+url.PathEscape(shopID), nil, nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		return nil, malformed("inventory listing")
	}
	for _, p := range items {
		if p.ID == "" {
			return nil, malformed("inventory product")
		}
	}
	return items, nil
}

// ProductByCode returns the undecoded lookup body; the lookup normalizes it.
func (c *Client) ProductByCode(ctx context.Context, code string) (json.RawMessage, error) {
	data, err := c.raw(ctx, http.MethodGet, "/product/by-code", url.Values{"item_code": {code}}, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// CreateOrder opens a bucket for a client and returns its id.
func (c *Client) CreateOrder(ctx context.Context, shopID, clientName string) (string, error) {
	req := map[string]string{"shop_id": shopID, "client_name": clientName}
	var resp struct {
		OrderID string `json:"order_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/basket/create", nil, req, &resp); err != nil {
		return "", err
	}
	if resp.OrderID == "" {
		return "", malformed("create order")
	}
	return resp.OrderID, nil
}

// AddItem adds qty of a product to an order.
func (c *Client) AddItem(ctx context.Context, orderID, productID string, qty int) error {
	req := map[string]any{"order_id": orderID, "product_id": productID, "qty": qty}
	return c.do(ctx, http.MethodPost, "/basket/add", nil, req, nil)
}

// ChangeQty adjusts a line quantity by delta.
func (c *Client) ChangeQty(ctx context.Context, orderID, productID string, delta int) error {
	req := map[string]any{"order_id": orderID, "product_id": productID, "change": delta}
	return c.do(ctx, http.MethodPost, "/order/update-qty", nil, req, nil)
}

// RemoveItem deletes a line from an order.
func (c *Client) RemoveItem(ctx context.Context, orderID, productID string) error {
	q := url.Values{"order_id": {orderID}, "product_id": {productID}}
	return c.do(ctx, http.MethodDelete, "/order/remove-item", q, nil, nil)
}

// orderBody is the wire form of a snapshot. Pointer fields tell a missing
// field apart from a zero value.
type orderBody struct {
	ID              string              `json:"id"`
	ShopID          string              `json:"shop_id"`
	ClientName      *string             `json:"client_name"`
	Status          session.Status      `json:"status"`
	DiscountPercent *decimal.Decimal    `json:"discount_percent"`
	Items           *[]session.LineItem `json:"order_items"`
	FinalTotal      *decimal.Decimal    `json:"final_total"`
	CreatedAt       time.Time           `json:"created_at"`
}

func (b orderBody) snapshot() (session.Order, error) {
	if b.ID == "" || !b.Status.Valid() {
		return session.Order{}, malformed("order snapshot")
	}
	if b.ClientName == nil || b.DiscountPercent == nil || b.Items == nil {
		return session.Order{}, malformed("order snapshot")
	}
	if b.Status == session.StatusSold && b.FinalTotal == nil {
		return session.Order{}, malformed("sold order total")
	}
	for _, li := range *b.Items {
		if li.ProductID == "" || li.Quantity < 1 {
			return session.Order{}, malformed("order line")
		}
	}
	return session.Order{
		ID:              b.ID,
		ShopID:          b.ShopID,
		ClientName:      *b.ClientName,
		Status:          b.Status,
		DiscountPercent: *b.DiscountPercent,
		Items:           *b.Items,
		FinalTotal:      b.FinalTotal,
		CreatedAt:       b.CreatedAt,
	}, nil
}

// GetOrder fetches the authoritative order snapshot.
func (c *Client) GetOrder(ctx context.Context, orderID string) (session.Order, error) {
	var body orderBody
	if err := c.do(ctx, http.MethodGet, "/basket/details/"+url.PathEscape(orderID), nil, nil, &body); err != nil {
		return session.Order{}, err
	}
	return body.snapshot()
}

// ActiveBucket returns the newest draft of a shop, or false when none exists.
func (c *Client) ActiveBucket(ctx context.Context, shopID string) (session.Order, bool, error) {
	var body orderBody
	if err := c.do(ctx, http.MethodGet, "/basket/"+url.PathEscape(shopID), nil, nil, &body); err != nil {
		return session.Order{}, false, err
	}
	if body.ID == "" {
		return session.Order{}, false, nil
	}
	o, err := body.snapshot()
	if err != nil {
		return session.Order{}, false, err
	}
	return o, true, nil
}

// ConvertToPI stamps a discount and moves the order to pi.
func (c *Client) ConvertToPI(ctx context.Context, orderID string, discount decimal.Decimal) error {
	req := map[string]any{"order_id": orderID, "discount_percent": discount}
	return c.do(ctx, http.MethodPost, "/order/convert-to-pi", nil, req, nil)
}

// FinalizeSale marks the order sold; the store deducts stock.
func (c *Client) FinalizeSale(ctx context.Context, orderID string) error {
	return c.do(ctx, http.MethodPost, "/order/finalize-sale", url.Values{"order_id": {orderID}}, nil, nil)
}

// DeleteOrder removes a draft.
func (c *Client) DeleteOrder(ctx context.Context, orderID string) error {
	return c.do(ctx, http.MethodDelete, "/order/delete/"+url.PathEscape(orderID), nil, nil, nil)
}

// ListOrders lists a shop's orders, newest first.
func (c *Client) ListOrders(ctx context.Context, shopID string) ([]session.Summary, error) {
	var out []session.Summary
	if err := c.do(ctx, http.MethodGet, "/orders/list/"+url.PathEscape(shopID), nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []session.Summary{}
	}
	return out, nil
}
