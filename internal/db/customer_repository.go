package db

import (
	"context"
	"fmt"

	"github.com/chepyr/go-kanban/internal/models"
)

type CustomerRepository struct {
	db DBTX
}

func NewCustomerRepository(db DBTX) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	query := `INSERT INTO customer (username, password_hash, created_at, updated_at)
	 VALUES ($1, $2, $3, $4) RETURNING id`

	err := r.db.QueryRowContext(
		ctx, query, customer.Username, customer.PasswordHash, customer.CreatedAt, customer.UpdatedAt,
	).Scan(&customer.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (r *CustomerRepository) GetByUsername(ctx context.Context, username string) (*models.Customer, error) {
	query := `SELECT id, username, password_hash, created_at, updated_at FROM customer WHERE username = $1`
	customer := &models.Customer{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&customer.ID, &customer.Username, &customer.PasswordHash, &customer.CreatedAt, &customer.UpdatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return customer, nil
}
