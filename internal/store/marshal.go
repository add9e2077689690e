package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/warranty/internal/dates"
	"github.com/roach88/warranty/internal/model"
)

// timestampLayout is the storage format for created_at / claim_date columns.
const timestampLayout = time.RFC3339

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func formatDate(d time.Time) string {
	return dates.Format(d)
}

func parseDate(column, s string) (time.Time, error) {
	d, err := time.Parse(dates.ISOLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode %s %q: %w", column, s, err)
	}
	return d, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(column, s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode %s %q: %w", column, s, err)
	}
	return t, nil
}

// nullable converts "" to SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullableID converts a nil reference to SQL NULL.
func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// warrantyColumns is the column list decoded by scanWarranty.
const warrantyColumns = `warranty_id, user_id, product_id, product_name, brand,
	purchase_date, warranty_period_months, expiry_date, invoice_path`

func scanWarranty(sc scanner) (model.Warranty, error) {
	var (
		w                model.Warranty
		productID        sql.NullInt64
		brand, invoice   sql.NullString
		purchase, expiry string
	)
	if err := sc.Scan(&w.ID, &w.UserID, &productID, &w.ProductName, &brand,
		&purchase, &w.PeriodMonths, &expiry, &invoice); err != nil {
		return model.Warranty{}, err
	}

	var err error
	if w.PurchaseDate, err = parseDate("purchase_date", purchase); err != nil {
		return model.Warranty{}, err
	}
	if w.ExpiryDate, err = parseDate("expiry_date", expiry); err != nil {
		return model.Warranty{}, err
	}
	if productID.Valid {
		id := productID.Int64
		w.ProductID = &id
	}
	w.Brand = brand.String
	w.InvoicePath = invoice.String
	return w, nil
}

const productColumns = `product_id, brand, model_name, category, image_url, verified`

func scanProduct(sc scanner) (model.Product, error) {
	var (
		p                  model.Product
		category, imageURL sql.NullString
	)
	if err := sc.Scan(&p.ID, &p.Brand, &p.ModelName, &category, &imageURL, &p.Verified); err != nil {
		return model.Product{}, err
	}
	p.Category = category.String
	p.ImageURL = imageURL.String
	return p, nil
}
