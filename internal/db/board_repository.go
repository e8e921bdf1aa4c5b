package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chepyr/go-kanban/internal/models"
)

type BoardRepository struct {
	db DBTX
}

func NewBoardRepository(db DBTX) *BoardRepository {
	return &BoardRepository{db: db}
}

const boardColumns = `id, customer_id, title, created_at, updated_at`

func scanBoard(row interface{ Scan(...any) error }) (*models.Board, error) {
	board := &models.Board{Sections: []*models.Section{}}
	if err := row.Scan(
		&board.ID, &board.CustomerID, &board.Title, &board.CreatedAt, &board.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return board, nil
}

func (r *BoardRepository) Create(ctx context.Context, board *models.Board) error {
	query := `INSERT INTO boards (customer_id, title, created_at, updated_at)
	 VALUES ($1, $2, $3, $4) RETURNING id`

	err := r.db.QueryRowContext(
		ctx, query, board.CustomerID, board.Title, board.CreatedAt, board.UpdatedAt,
	).Scan(&board.ID)
	if err != nil {
		return fmt.Errorf("insert board: %w", notFoundOr(err))
	}
	if board.Sections == nil {
		board.Sections = []*models.Section{}
	}
	return nil
}

func (r *BoardRepository) GetByID(ctx context.Context, id int64) (*models.Board, error) {
	query := `SELECT ` + boardColumns + ` FROM boards WHERE id = $1`
	board, err := scanBoard(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err)
	}
	return board, nil
}

func (r *BoardRepository) OwnerID(ctx context.Context, id int64) (int64, error) {
	var customerID int64
	err := r.db.QueryRowContext(ctx, `SELECT customer_id FROM boards WHERE id = $1`, id).Scan(&customerID)
	if err != nil {
		return 0, notFoundOr(err)
	}
	return customerID, nil
}

func (r *BoardRepository) ListByCustomerID(ctx context.Context, customerID int64) ([]*models.Board, error) {
	query := `SELECT ` + boardColumns + ` FROM boards WHERE customer_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	boards := []*models.Board{}
	for rows.Next() {
		board, err := scanBoard(rows)
		if err != nil {
			return nil, err
		}
		boards = append(boards, board)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return boards, nil
}

// LoadWithSections returns the board with its sections and their cards,
// both ordered by position then id.
func (r *BoardRepository) LoadWithSections(ctx context.Context, id int64) (*models.Board, error) {
	board, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sections, err := querySections(ctx, r.db,
		`SELECT `+sectionColumns+` FROM sections WHERE board_id = $1 ORDER BY position, id`, id)
	if err != nil {
		return nil, err
	}
	cards, err := queryCards(ctx, r.db,
		`SELECT `+prefixed("c", cardColumnList)+` FROM cards c
		 JOIN sections s ON s.id = c.section_id
		 WHERE s.board_id = $1 ORDER BY c.position, c.id`, id)
	if err != nil {
		return nil, err
	}
	assemble([]*models.Board{board}, sections, cards)
	return board, nil
}

// LoadAllForCustomer returns every board of the customer with sections and
// cards, using one query per level.
func (r *BoardRepository) LoadAllForCustomer(ctx context.Context, customerID int64) ([]*models.Board, error) {
	boards, err := r.ListByCustomerID(ctx, customerID)
	if err != nil || len(boards) == 0 {
		return boards, err
	}
	sections, err := querySections(ctx, r.db,
		`SELECT `+prefixed("s", sectionColumnList)+` FROM sections s
		 JOIN boards b ON b.id = s.board_id
		 WHERE b.customer_id = $1 ORDER BY s.position, s.id`, customerID)
	if err != nil {
		return nil, err
	}
	cards, err := queryCards(ctx, r.db,
		`SELECT `+prefixed("c", cardColumnList)+` FROM cards c
		 JOIN sections s ON s.id = c.section_id
		 JOIN boards b ON b.id = s.board_id
		 WHERE b.customer_id = $1 ORDER BY c.position, c.id`, customerID)
	if err != nil {
		return nil, err
	}
	assemble(boards, sections, cards)
	return boards, nil
}

func (r *BoardRepository) UpdateTitle(ctx context.Context, id int64, title string, updatedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE boards SET title = $1, updated_at = $2 WHERE id = $3`, title, updatedAt, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// Delete removes the board's cards, then its sections, then the board. It is
// only atomic when r runs on a transaction.
func (r *BoardRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM cards WHERE section_id IN (SELECT id FROM sections WHERE board_id = $1)`, id); err != nil {
		return fmt.Errorf("delete board cards: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sections WHERE board_id = $1`, id); err != nil {
		return fmt.Errorf("delete board sections: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	return expectAffected(res)
}

// assemble attaches cards to sections and sections to boards. Inputs are
// already ordered, so appending keeps that order.
func assemble(boards []*models.Board, sections []*models.Section, cards []*models.Card) {
	bySection := make(map[int64]*models.Section, len(sections))
	for _, s := range sections {
		bySection[s.ID] = s
	}
	for _, c := range cards {
		if s, ok := bySection[c.SectionID]; ok {
			s.Cards = append(s.Cards, c)
		}
	}
	byBoard := make(map[int64]*models.Board, len(boards))
	for _, b := range boards {
		byBoard[b.ID] = b
	}
	for _, s := range sections {
		if b, ok := byBoard[s.BoardID]; ok {
			b.Sections = append(b.Sections, s)
		}
	}
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
