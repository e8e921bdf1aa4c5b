package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a row (or an ancestor needed to resolve it)
// does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate")

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

var DefaultPool = PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 30 * time.Minute}

func Connect(ctx context.Context, driverName, dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	return db, nil
}

type Repositories struct {
	Customers *CustomerRepository
	Boards    *BoardRepository
	Sections  *SectionRepository
	Cards     *CardRepository
}

func NewRepositories(q DBTX) *Repositories {
	return &Repositories{
		Customers: NewCustomerRepository(q),
		Boards:    NewBoardRepository(q),
		Sections:  NewSectionRepository(q),
		Cards:     NewCardRepository(q),
	}
}

// BoardOwner, SectionOwner and CardOwner walk the ownership chain up to the
// board and return its customer id.

func (r *Repositories) BoardOwner(ctx context.Context, boardID int64) (int64, error) {
	return r.Boards.OwnerID(ctx, boardID)
}

func (r *Repositories) SectionOwner(ctx context.Context, sectionID int64) (int64, error) {
	_, customerID, err := r.Sections.LoadWithOwner(ctx, sectionID)
	return customerID, err
}

func (r *Repositories) CardOwner(ctx context.Context, cardID int64) (int64, error) {
	_, chain, err := r.Cards.LoadWithOwnerChain(ctx, cardID)
	return chain.CustomerID, err
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn inside a single transaction at the driver's default isolation
// (read committed on Postgres). Any error from fn rolls everything back.
func (s *Store) InTx(ctx context.Context, fn func(r *Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(NewRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

type sqlStateError interface {
	SQLState() string
}

// notFoundOr maps missing rows and foreign key violations (parent deleted
// by a concurrent transaction) to ErrNotFound.
func notFoundOr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if sqlState(err) == "23503" {
		return ErrNotFound
	}
	return err
}

// sqlState extracts the SQLSTATE code from lib/pq and pgx errors.
func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var se sqlStateError
	if errors.As(err, &se) {
		return se.SQLState()
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return sqlState(err) == "23505"
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
