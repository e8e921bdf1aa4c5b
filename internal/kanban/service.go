// Package kanban manages the lifecycle of boards, sections and cards. Every
// operation checks ownership and applies its writes in one transaction.
package kanban

import (
	"context"
	"errors"
	"time"

	"github.com/chepyr/go-kanban/internal/access"
	"github.com/chepyr/go-kanban/internal/auth"
	"github.com/chepyr/go-kanban/internal/db"
	"github.com/chepyr/go-kanban/internal/models"
	"github.com/chepyr/go-kanban/internal/ordering"
)

type Service struct {
	store      *db.Store
	order      *ordering.Engine
	bcryptCost int
	now        func() time.Time
}

func NewService(store *db.Store, order *ordering.Engine, bcryptCost int) *Service {
	if order == nil {
		order = ordering.New(ordering.Weak)
	}
	return &Service{
		store:      store,
		order:      order,
		bcryptCost: bcryptCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// inTx runs fn in one transaction and translates repository errors.
func (s *Service) inTx(ctx context.Context, fn func(r *db.Repositories) error) error {
	return translate(s.store.InTx(ctx, fn))
}

func authorize(ctx context.Context, r *db.Repositories, customerID int64, entity access.Entity) error {
	d, err := access.Authorize(ctx, r, customerID, entity)
	if err != nil {
		return err
	}
	return decisionErr(d)
}

// CreateCustomer hashes the password and stores a new customer.
func (s *Service) CreateCustomer(ctx context.Context, username, password string) (*models.Customer, error) {
	username, err := validateCredentials(username, password)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	customer := &models.Customer{Username: username, PasswordHash: hash, CreatedAt: now, UpdatedAt: now}
	err = s.inTx(ctx, func(r *db.Repositories) error {
		_, err := r.Customers.GetByUsername(ctx, username)
		switch {
		case err == nil:
			return ErrUsernameTaken
		case !errors.Is(err, db.ErrNotFound):
			return err
		}
		if err := r.Customers.Create(ctx, customer); err != nil {
			if errors.Is(err, db.ErrDuplicate) {
				return ErrUsernameTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}

// SignIn returns the customer if the password matches. Unknown usernames and
// wrong passwords both yield auth.ErrInvalidCredentials.
func (s *Service) SignIn(ctx context.Context, username, password string) (*models.Customer, error) {
	customer, err := db.NewRepositories(s.store.DB()).Customers.GetByUsername(ctx, username)
	if errors.Is(err, db.ErrNotFound) {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.VerifyPassword(password, customer.PasswordHash) {
		return nil, auth.ErrInvalidCredentials
	}
	return customer, nil
}

func (s *Service) CustomerByUsername(ctx context.Context, username string) (*models.Customer, error) {
	customer, err := db.NewRepositories(s.store.DB()).Customers.GetByUsername(ctx, username)
	if err != nil {
		return nil, translate(err)
	}
	return customer, nil
}

func (s *Service) OrderingStrategy() ordering.Strategy {
	return s.order.Strategy()
}

// Ping reports whether the database is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
