package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shop-pos/internal/apperr"
	"shop-pos/internal/models"
	"shop-pos/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const orderColumns = `
	o.id, o.shop_id, o.client_id, COALESCE(c.name, '') AS client_name, o.status,
	o.discount_percent, o.final_total, o.created_at, o.updated_at
	FROM orders o
	LEFT JOIN clients c ON o.client_id = c.id`

// CreateBasket inserts the client and its bucket order in one transaction.
// order.ID and order.ClientID must be set; timestamps are filled in.
func (s *Store) CreateBasket(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO clients (id, shop_id, name) VALUES ($1, $2, $3)",
		order.ClientID, order.ShopID, order.ClientName)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (id, shop_id, client_id, status, discount_percent, final_total)
		VALUES ($1, $2, $3, 'bucket', 0, 0)
		RETURNING id, shop_id, client_id, $4::text AS client_name, status,
			discount_percent, final_total, created_at, updated_at`,
		order.ID, order.ShopID, order.ClientID, order.ClientName)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" WHERE o.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.CodeNotFound, "order not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetLatestBucket returns the newest draft of a shop, or nil when there is none.
func (s *Store) GetLatestBucket(ctx context.Context, shopID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT "+orderColumns+" WHERE o.shop_id = $1 AND o.status = 'bucket' ORDER BY o.created_at DESC LIMIT 1",
		shopID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders lists a shop's orders, newest first.
func (s *Store) ListOrders(ctx context.Context, shopID string) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" WHERE o.shop_id = $1 ORDER BY o.created_at DESC", shopID)
	return orders, err
}

// GetOrderItems retrieves all lines of an order in the order they were first
// added. Merging into an existing line keeps its position.
func (s *Store) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT oi.order_id, oi.product_id, p.item_code, oi.quantity, oi.unit_price, oi.total_price
		FROM order_items oi
		JOIN products p ON oi.product_id = p.id
		WHERE oi.order_id = $1
		ORDER BY oi.line_seq`, orderID)
	return items, err
}

// lockOrder takes a row lock on the order and returns its status.
func lockOrder(ctx context.Context, tx *sqlx.Tx, orderID string) (string, error) {
	var status string
	err := tx.GetContext(ctx, &status, "SELECT status FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.Newf(apperr.CodeNotFound, "order not found: %s", orderID)
	}
	return status, err
}

func lockMutable(ctx context.Context, tx *sqlx.Tx, orderID string) error {
	status, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if status != models.OrderStatusBucket && status != models.OrderStatusPI {
		return apperr.Newf(apperr.CodeStateViolation, "order %s is %s and can no longer change", orderID, status)
	}
	return nil
}

// recomputeTotal refreshes the running final_total of an open order.
func recomputeTotal(ctx context.Context, tx *sqlx.Tx, orderID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders SET
			final_total = ROUND(
				COALESCE((SELECT SUM(total_price) FROM order_items WHERE order_id = $1), 0)
				* (1 - discount_percent / 100), 2),
			updated_at = NOW()
		WHERE id = $1`, orderID)
	return err
}

// UpsertItem adds qty of a product. An existing line keeps its unit price.
func (s *Store) UpsertItem(ctx context.Context, orderID, productID string, qty int, unitPrice decimal.Decimal) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockMutable(ctx, tx, orderID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id, product_id) DO UPDATE
		SET quantity = order_items.quantity + EXCLUDED.quantity`,
		orderID, productID, qty, unitPrice)
	if err != nil {
		return fmt.Errorf("failed to upsert order item: %w", err)
	}

	if err := recomputeTotal(ctx, tx, orderID); err != nil {
		return err
	}
	return tx.Commit()
}

// ChangeQty adjusts a line by delta and deletes it when it drops below 1.
func (s *Store) ChangeQty(ctx context.Context, orderID, productID string, delta int) (removed bool, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if err := lockMutable(ctx, tx, orderID); err != nil {
		return false, err
	}

	var current int
	err = tx.GetContext(ctx, &current,
		"SELECT quantity FROM order_items WHERE order_id = $1 AND product_id = $2", orderID, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, apperr.Newf(apperr.CodeNotFound, "product %s is not in order %s", productID, orderID)
	}
	if err != nil {
		return false, err
	}

	if current+delta < 1 {
		removed = true
		_, err = tx.ExecContext(ctx,
			"DELETE FROM order_items WHERE order_id = $1 AND product_id = $2", orderID, productID)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE order_items SET quantity = quantity + $3 WHERE order_id = $1 AND product_id = $2",
			orderID, productID, delta)
	}
	if err != nil {
		return false, fmt.Errorf("failed to change quantity: %w", err)
	}

	if err := recomputeTotal(ctx, tx, orderID); err != nil {
		return false, err
	}
	return removed, tx.Commit()
}

// DeleteItem removes a line. Removing an absent line is not an error.
func (s *Store) DeleteItem(ctx context.Context, orderID, productID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockMutable(ctx, tx, orderID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM order_items WHERE order_id = $1 AND product_id = $2", orderID, productID); err != nil {
		return fmt.Errorf("failed to remove order item: %w", err)
	}

	if err := recomputeTotal(ctx, tx, orderID); err != nil {
		return err
	}
	return tx.Commit()
}

// ConvertToPI stamps the discount on a bucket and moves it to pi.
func (s *Store) ConvertToPI(ctx context.Context, orderID string, discount decimal.Decimal) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	status, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if status != models.OrderStatusBucket {
		return nil, apperr.Newf(apperr.CodeStateViolation, "only a bucket can become a proforma invoice, order %s is %s", orderID, status)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = 'pi', discount_percent = $2 WHERE id = $1", orderID, discount); err != nil {
		return nil, fmt.Errorf("failed to convert order: %w", err)
	}
	if err := recomputeTotal(ctx, tx, orderID); err != nil {
		return nil, err
	}

	var order models.Order
	if err := tx.GetContext(ctx, &order, "SELECT "+orderColumns+" WHERE o.id = $1", orderID); err != nil {
		return nil, err
	}
	return &order, tx.Commit()
}

// FinalizeSale moves an open order to sold, freezes its total and deducts
// every line from stock, godown first. It runs in one transaction so the
// deduction happens exactly once per order.
func (s *Store) FinalizeSale(ctx context.Context, orderID string) (*models.Order, []models.SoldItemData, error) {
	logger := util.GetLogger()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	status, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if status == models.OrderStatusSold {
		return nil, nil, apperr.Newf(apperr.CodeStateViolation, "order %s is already sold", orderID)
	}

	var lines []struct {
		ProductID string `db:"product_id"`
		Quantity  int    `db:"quantity"`
	}
	if err := tx.SelectContext(ctx, &lines,
		"SELECT product_id, quantity FROM order_items WHERE order_id = $1 ORDER BY product_id", orderID); err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		return nil, nil, apperr.Validation("cannot finalize an empty order")
	}

	sold := make([]models.SoldItemData, 0, len(lines))
	for _, line := range lines {
		var stock models.Stock
		err := tx.GetContext(ctx, &stock,
			"SELECT product_id, qty_display, qty_godown, updated_at FROM inventory WHERE product_id = $1 FOR UPDATE",
			line.ProductID)
		if errors.Is(err, sql.ErrNoRows) {
			stock = models.Stock{ProductID: line.ProductID}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO inventory (product_id) VALUES ($1)", line.ProductID); err != nil {
				return nil, nil, fmt.Errorf("failed to create inventory row: %w", err)
			}
		} else if err != nil {
			return nil, nil, fmt.Errorf("failed to lock inventory: %w", err)
		}

		d := Waterfall(stock.QtyGodown, stock.QtyDisplay, line.Quantity)
		if d.Shortfall > 0 {
			util.StockShortfallTotal.Add(float64(d.Shortfall))
			logger.Warn("Sale exceeds recorded stock",
				zap.String("order_id", orderID),
				zap.String("product_id", line.ProductID),
				zap.Int("shortfall", d.Shortfall))
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE inventory SET qty_godown = $2, qty_display = $3, updated_at = NOW() WHERE product_id = $1",
			line.ProductID, d.Godown, d.Display); err != nil {
			return nil, nil, fmt.Errorf("failed to deduct stock: %w", err)
		}

		sold = append(sold, models.SoldItemData{
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			FromGodown:  d.FromGodown,
			FromDisplay: d.FromDisplay,
		})
	}

	if err := recomputeTotal(ctx, tx, orderID); err != nil {
		return nil, nil, err
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = 'sold', updated_at = NOW() WHERE id = $1 AND status IN ('bucket', 'pi')", orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to mark order sold: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, nil, apperr.Newf(apperr.CodeStateViolation, "order %s changed during finalize", orderID)
	}

	var order models.Order
	if err := tx.GetContext(ctx, &order, "SELECT "+orderColumns+" WHERE o.id = $1", orderID); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &order, sold, nil
}

// DeleteOrder removes a draft and its lines.
func (s *Store) DeleteOrder(ctx context.Context, orderID string) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	status, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if status != models.OrderStatusBucket {
		return nil, apperr.Newf(apperr.CodeStateViolation, "order %s is %s; only draft buckets can be deleted", orderID, status)
	}

	var order models.Order
	if err := tx.GetContext(ctx, &order, "SELECT "+orderColumns+" WHERE o.id = $1", orderID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
		return nil, fmt.Errorf("failed to delete order items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", orderID); err != nil {
		return nil, fmt.Errorf("failed to delete order: %w", err)
	}
	return &order, tx.Commit()
}
