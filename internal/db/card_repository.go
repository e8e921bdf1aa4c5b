package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/chepyr/go-kanban/internal/models"
)

type CardRepository struct {
	db DBTX
}

func NewCardRepository(db DBTX) *CardRepository {
	return &CardRepository{db: db}
}

var (
	cardColumnList = []string{"id", "section_id", "title", "description", "position", "created_at", "updated_at"}
	cardColumns    = strings.Join(cardColumnList, ", ")
)

// OwnerChain is the resolved Card -> Section -> Board -> Customer path.
type OwnerChain struct {
	SectionID  int64
	BoardID    int64
	CustomerID int64
}

func scanCard(row interface{ Scan(...any) error }, extra ...any) (*models.Card, error) {
	card := &models.Card{}
	var description sql.NullString
	dest := append([]any{
		&card.ID, &card.SectionID, &card.Title, &description, &card.Position,
		&card.CreatedAt, &card.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if description.Valid {
		card.Description = &description.String
	}
	return card, nil
}

func queryCards(ctx context.Context, q DBTX, query string, args ...any) ([]*models.Card, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []*models.Card{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

func (r *CardRepository) Create(ctx context.Context, card *models.Card) error {
	query := `INSERT INTO cards (section_id, title, description, position, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	err := r.db.QueryRowContext(
		ctx, query, card.SectionID, card.Title, nullableString(card.Description), card.Position,
		card.CreatedAt, card.UpdatedAt,
	).Scan(&card.ID)
	if err != nil {
		return fmt.Errorf("insert card: %w", notFoundOr(err))
	}
	return nil
}

func (r *CardRepository) GetByID(ctx context.Context, id int64) (*models.Card, error) {
	card, err := scanCard(r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err)
	}
	return card, nil
}

// LoadWithOwnerChain returns the card with its section, board and customer
// ids. A broken chain resolves to ErrNotFound.
func (r *CardRepository) LoadWithOwnerChain(ctx context.Context, id int64) (*models.Card, OwnerChain, error) {
	query := `SELECT ` + prefixed("c", cardColumnList) + `, s.board_id, b.customer_id
	 FROM cards c
	 JOIN sections s ON s.id = c.section_id
	 JOIN boards b ON b.id = s.board_id
	 WHERE c.id = $1`
	var chain OwnerChain
	card, err := scanCard(r.db.QueryRowContext(ctx, query, id), &chain.BoardID, &chain.CustomerID)
	if err != nil {
		return nil, OwnerChain{}, notFoundOr(err)
	}
	chain.SectionID = card.SectionID
	return card, chain, nil
}

func (r *CardRepository) ListBySectionID(ctx context.Context, sectionID int64) ([]*models.Card, error) {
	return queryCards(ctx, r.db,
		`SELECT `+cardColumns+` FROM cards WHERE section_id = $1 ORDER BY position, id`, sectionID)
}

func (r *CardRepository) UpdateContent(ctx context.Context, id int64, title string, description *string, updatedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cards SET title = $1, description = $2, updated_at = $3 WHERE id = $4`,
		title, nullableString(description), updatedAt, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// Move sets section and position together in one statement.
func (r *CardRepository) Move(ctx context.Context, id, sectionID, position int64, updatedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cards SET section_id = $1, position = $2, updated_at = $3 WHERE id = $4`,
		sectionID, position, updatedAt, id)
	if err != nil {
		return notFoundOr(err)
	}
	return expectAffected(res)
}

func (r *CardRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// Sibling set methods: the parent of a card is its section.

func (r *CardRepository) MaxPosition(ctx context.Context, sectionID int64) (int64, bool, error) {
	return maxPosition(ctx, r.db, `SELECT MAX(position) FROM cards WHERE section_id = $1`, sectionID)
}

func (r *CardRepository) PositionTaken(ctx context.Context, sectionID, position, excludeID int64) (bool, error) {
	return exists(ctx, r.db,
		`SELECT EXISTS(SELECT 1 FROM cards WHERE section_id = $1 AND position = $2 AND id <> $3)`,
		sectionID, position, excludeID)
}

func (r *CardRepository) ShiftPositions(ctx context.Context, sectionID, from, excludeID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE cards SET position = position + 1 WHERE section_id = $1 AND position >= $2 AND id <> $3`,
		sectionID, from, excludeID)
	return err
}
