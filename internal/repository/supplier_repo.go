// Package repository implements the sqlite persistence behind the invoice
// service endpoints: supplier lookup, conflict queries and the upserting
// batch write.
package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/talkoren/invoice-intake/internal/models"
	"go.uber.org/zap"
)

// SupplierRepository handles supplier database operations.
type SupplierRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSupplierRepository creates a new supplier repository.
func NewSupplierRepository(db *sql.DB, logger *zap.Logger) *SupplierRepository {
	return &SupplierRepository{
		db:     db,
		logger: logger,
	}
}

// FindByName looks a supplier up by customer and name, case-insensitively.
func (r *SupplierRepository) FindByName(tx *sql.Tx, customerID int64, name string) (*models.Supplier, error) {
	query := `
		SELECT id, customer_id, name, created_at
		FROM suppliers
		WHERE customer_id = ? AND name = ? COLLATE NOCASE
		LIMIT 1
	`

	var s models.Supplier
	err := r.queryRow(tx, query, customerID, strings.TrimSpace(name)).
		Scan(&s.ID, &s.CustomerID, &s.Name, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to look up supplier", zap.Error(err))
		return nil, fmt.Errorf("failed to look up supplier: %w", err)
	}
	return &s, nil
}

// FindOrCreate returns the supplier id for the given name, creating the row
// when it does not exist yet. created reports whether a new row was made.
func (r *SupplierRepository) FindOrCreate(tx *sql.Tx, customerID int64, name string) (id int64, created bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false, fmt.Errorf("supplier name is empty")
	}

	existing, err := r.FindByName(tx, customerID, name)
	if err != nil {
		return 0, false, err
	}
	if existing != nil {
		return existing.ID, false, nil
	}

	result, err := r.exec(tx,
		"INSERT INTO suppliers (customer_id, name) VALUES (?, ?)",
		customerID, name)
	if err != nil {
		r.logger.Error("Failed to create supplier",
			zap.Int64("customer_id", customerID),
			zap.String("name", name),
			zap.Error(err))
		return 0, false, fmt.Errorf("failed to create supplier: %w", err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get supplier id: %w", err)
	}
	return id, true, nil
}

func (r *SupplierRepository) queryRow(tx *sql.Tx, query string, args ...interface{}) *sql.Row {
	if tx != nil {
		return tx.QueryRow(query, args...)
	}
	return r.db.QueryRow(query, args...)
}

func (r *SupplierRepository) exec(tx *sql.Tx, query string, args ...interface{}) (sql.Result, error) {
	if tx != nil {
		return tx.Exec(query, args...)
	}
	return r.db.Exec(query, args...)
}
