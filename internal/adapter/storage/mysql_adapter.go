package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopworks/fulfillment/internal/core/domain"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Price, p.Quantity, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, description, price, quantity, created_at, updated_at
		FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, price = ?, quantity = ?, updated_at = NOW()
		WHERE id = ?`,
		p.Name, p.Description, p.Price, p.Quantity, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (m *MySQLAdapter) SearchProducts(ctx context.Context, term string) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, description, price, quantity, created_at, updated_at
		FROM products WHERE LOWER(name) LIKE LOWER(?)`,
		"%"+term+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// DecrementStock applies the conditional decrement and the processing-ledger
// insert in one transaction. The UPDATE ... WHERE quantity >= ? is the single
// point of mutual exclusion for concurrent orders against a product; the
// quantity column never goes negative.
func (m *MySQLAdapter) DecrementStock(ctx context.Context, productID string, qty int, ledgerKey, correlationID string) (*domain.Product, string, bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT IGNORE INTO processed_messages (ledger_key, correlation_id, processed_at)
		VALUES (?, ?, NOW())`,
		ledgerKey, correlationID,
	)
	if err != nil {
		return nil, "", false, fmt.Errorf("insert ledger entry: %w", err)
	}

	inserted, _ := result.RowsAffected()
	if inserted == 0 {
		// Redelivery: the decrement already ran under an earlier attempt. Hand
		// back the correlation id minted then so downstream dedup still holds.
		var storedID string
		err := tx.QueryRowContext(ctx,
			`SELECT correlation_id FROM processed_messages WHERE ledger_key = ?`, ledgerKey,
		).Scan(&storedID)
		if err != nil {
			return nil, "", false, fmt.Errorf("query ledger entry: %w", err)
		}

		p, err := m.getProductTx(ctx, tx, productID)
		if err != nil {
			return nil, "", false, err
		}
		if p == nil {
			return nil, "", false, domain.ErrProductNotFound
		}
		return p, storedID, false, tx.Commit()
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity - ?, updated_at = NOW()
		WHERE id = ? AND quantity >= ?`,
		qty, productID, qty,
	)
	if err != nil {
		return nil, "", false, fmt.Errorf("decrement stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Rolled back, so the ledger keeps no record of a rejected order.
		p, err := m.getProductTx(ctx, tx, productID)
		if err != nil {
			return nil, "", false, err
		}
		if p == nil {
			return nil, "", false, domain.ErrProductNotFound
		}
		return nil, "", false, domain.ErrInsufficientStock
	}

	p, err := m.getProductTx(ctx, tx, productID)
	if err != nil {
		return nil, "", false, err
	}
	return p, correlationID, true, tx.Commit()
}

func (m *MySQLAdapter) getProductTx(ctx context.Context, tx *sql.Tx, id string) (*domain.Product, error) {
	var p domain.Product
	err := tx.QueryRowContext(ctx, `
		SELECT id, name, description, price, quantity, created_at, updated_at
		FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}
