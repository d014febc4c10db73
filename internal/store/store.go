package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"shop-pos/internal/apperr"
	"shop-pos/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate applies the embedded goose migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db.DB, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// ListShops returns every shop.
func (s *Store) ListShops(ctx context.Context) ([]models.Shop, error) {
	shops := []models.Shop{}
	err := s.db.SelectContext(ctx, &shops, "SELECT id, name FROM shops ORDER BY name")
	return shops, err
}

// SearchShops finds shops whose name contains term, case-insensitively.
func (s *Store) SearchShops(ctx context.Context, term string) ([]models.Shop, error) {
	shops := []models.Shop{}
	err := s.db.SelectContext(ctx, &shops,
		"SELECT id, name FROM shops WHERE name ILIKE '%' || $1 || '%' ORDER BY name", term)
	return shops, err
}

const inventoryColumns = `
	p.id, p.item_code, p.photo_url, p.cost_price, p.selling_price, p.vendor_name, p.remark,
	COALESCE(c.name, '') AS category_name,
	COALESCE(i.qty_display, 0) AS qty_display,
	COALESCE(i.qty_godown, 0) AS qty_godown
	FROM products p
	LEFT JOIN categories c ON p.category_id = c.id
	LEFT JOIN inventory i ON p.id = i.product_id`

// GetInventoryByShop lists every product of a shop with its stock.
func (s *Store) GetInventoryByShop(ctx context.Context, shopID string) ([]models.InventoryRow, error) {
	rows := []models.InventoryRow{}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+inventoryColumns+" WHERE p.shop_id = $1 ORDER BY p.item_code", shopID)
	return rows, err
}

// GetProductByCode retrieves a product by its item code
func (s *Store) GetProductByCode(ctx context.Context, code string) (*models.InventoryRow, error) {
	var row models.InventoryRow
	err := s.db.GetContext(ctx, &row, "SELECT "+inventoryColumns+" WHERE p.item_code = $1 LIMIT 1", code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.CodeNotFound, "product not found: %s", code)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.InventoryRow, error) {
	var row models.InventoryRow
	err := s.db.GetContext(ctx, &row, "SELECT "+inventoryColumns+" WHERE p.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.CodeNotFound, "product not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
