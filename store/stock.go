package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-api/database"
)

// StockRow is a variant joined to its product for the admin stock view.
type StockRow struct {
	VariantID     int64  `json:"variant_id"`
	ProductID     int64  `json:"product_id"`
	ProductName   string `json:"product_name"`
	Size          string `json:"size"`
	StockQuantity int    `json:"stock_quantity"`
}

func ListStock(ctx context.Context, db *sql.DB) ([]StockRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT v.id, v.product_id, p.name, v.size, v.stock_quantity
		 FROM product_variants v
		 JOIN products p ON p.id = v.product_id
		 ORDER BY p.name, v.size`)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()

	var result []StockRow
	for rows.Next() {
		var r StockRow
		if err := rows.Scan(&r.VariantID, &r.ProductID, &r.ProductName, &r.Size, &r.StockQuantity); err != nil {
			return nil, fmt.Errorf("scan stock row: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// SetStock sets a variant's absolute stock quantity. Negative values are
// rejected by the handler; the table CHECK is the last line of defence.
func SetStock(ctx context.Context, db *sql.DB, productID int64, size string, quantity int) error {
	result, err := db.ExecContext(ctx,
		`UPDATE product_variants SET stock_quantity = $3, updated_at = NOW()
		 WHERE product_id = $1 AND size = $2`,
		productID, size, quantity)
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrVariantNotFound
	}
	return nil
}
