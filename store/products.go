package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Product is the latest known state of one goods page.
type Product struct {
	GoodsID   string   `json:"goods_id"`
	PageURL   string   `json:"page_url"`
	Title     string   `json:"title,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	Currency  string   `json:"currency,omitempty"`
	Category  string   `json:"category,omitempty"`
	ShopName  string   `json:"shop_name,omitempty"`
	Images    string   `json:"images"`    // JSON array of image records (url, local path)
	Fields    string   `json:"fields"`    // JSON object of parsed analytics fields
	Samples   string   `json:"samples"`   // JSON array of chart sample points
	Auxiliary string   `json:"auxiliary"` // JSON array of auxiliary signals
	FirstSeen int64    `json:"first_seen"`
	UpdatedAt int64    `json:"updated_at"`
}

// PricePoint is one observed price change.
type PricePoint struct {
	GoodsID    string  `json:"goods_id"`
	Price      float64 `json:"price"`
	Currency   string  `json:"currency,omitempty"`
	RecordedAt int64   `json:"recorded_at"`
}

// UpsertProduct creates or updates a product record. When the price
// changes (or is seen for the first time) a price_history row is added
// in the same transaction.
func (s *Store) UpsertProduct(ctx context.Context, p *Product) error {
	now := time.Now().UnixMilli()
	if p.UpdatedAt == 0 {
		p.UpdatedAt = now
	}
	if p.FirstSeen == 0 {
		p.FirstSeen = now
	}
	if p.Images == "" {
		p.Images = "[]"
	}
	if p.Fields == "" {
		p.Fields = "{}"
	}
	if p.Samples == "" {
		p.Samples = "[]"
	}
	if p.Auxiliary == "" {
		p.Auxiliary = "[]"
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var prevPrice sql.NullFloat64
	err = tx.QueryRowContext(ctx,
		`SELECT price FROM products WHERE goods_id = ?`, p.GoodsID).Scan(&prevPrice)
	known := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (goods_id, page_url, title, price, currency, category,
		                      shop_name, images, fields, samples, auxiliary, first_seen, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(goods_id) DO UPDATE SET
			page_url=excluded.page_url, title=excluded.title, price=excluded.price,
			currency=excluded.currency, category=excluded.category,
			shop_name=excluded.shop_name, images=excluded.images,
			fields=excluded.fields, samples=excluded.samples,
			auxiliary=excluded.auxiliary, updated_at=excluded.updated_at`,
		p.GoodsID, p.PageURL, p.Title, p.Price, p.Currency, p.Category,
		p.ShopName, p.Images, p.Fields, p.Samples, p.Auxiliary, p.FirstSeen, p.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if p.Price != nil {
		changed := !known || !prevPrice.Valid || prevPrice.Float64 != *p.Price
		if changed {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO price_history (goods_id, price, currency, recorded_at)
				VALUES (?,?,?,?)`,
				p.GoodsID, *p.Price, p.Currency, p.UpdatedAt,
			)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// GetProduct retrieves a product by goods ID. Returns (nil, nil) when
// the product is unknown.
func (s *Store) GetProduct(ctx context.Context, goodsID string) (*Product, error) {
	p := &Product{}
	var price sql.NullFloat64
	err := s.DB.QueryRowContext(ctx, `
		SELECT goods_id, page_url, title, price, currency, category,
		       shop_name, images, fields, samples, auxiliary, first_seen, updated_at
		FROM products WHERE goods_id = ?`, goodsID).Scan(
		&p.GoodsID, &p.PageURL, &p.Title, &price, &p.Currency, &p.Category,
		&p.ShopName, &p.Images, &p.Fields, &p.Samples, &p.Auxiliary, &p.FirstSeen, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if price.Valid {
		p.Price = &price.Float64
	}
	return p, nil
}

// ListProducts returns products ordered by last update, newest first.
func (s *Store) ListProducts(ctx context.Context, limit int) ([]*Product, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT goods_id, page_url, title, price, currency, category,
		       shop_name, images, fields, samples, auxiliary, first_seen, updated_at
		FROM products ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p := &Product{}
		var price sql.NullFloat64
		if err := rows.Scan(&p.GoodsID, &p.PageURL, &p.Title, &price, &p.Currency,
			&p.Category, &p.ShopName, &p.Images, &p.Fields, &p.Samples, &p.Auxiliary,
			&p.FirstSeen, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if price.Valid {
			p.Price = &price.Float64
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// PriceHistory returns the recorded price changes for a product, newest
// first.
func (s *Store) PriceHistory(ctx context.Context, goodsID string, limit int) ([]*PricePoint, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT goods_id, price, currency, recorded_at
		FROM price_history WHERE goods_id = ?
		ORDER BY recorded_at DESC LIMIT ?`, goodsID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []*PricePoint
	for rows.Next() {
		pt := &PricePoint{}
		if err := rows.Scan(&pt.GoodsID, &pt.Price, &pt.Currency, &pt.RecordedAt); err != nil {
			return nil, err
		}
		points = append(points, pt)
	}
	return points, rows.Err()
}
