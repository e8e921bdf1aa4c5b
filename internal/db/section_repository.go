package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/chepyr/go-kanban/internal/models"
)

type SectionRepository struct {
	db DBTX
}

func NewSectionRepository(db DBTX) *SectionRepository {
	return &SectionRepository{db: db}
}

var (
	sectionColumnList = []string{"id", "board_id", "title", "position", "created_at", "updated_at"}
	sectionColumns    = strings.Join(sectionColumnList, ", ")
)

func prefixed(alias string, columns []string) string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return strings.Join(out, ", ")
}

func scanSection(row interface{ Scan(...any) error }) (*models.Section, error) {
	section := &models.Section{Cards: []*models.Card{}}
	if err := row.Scan(
		&section.ID, &section.BoardID, &section.Title, &section.Position,
		&section.CreatedAt, &section.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return section, nil
}

func querySections(ctx context.Context, q DBTX, query string, args ...any) ([]*models.Section, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sections := []*models.Section{}
	for rows.Next() {
		section, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sections, nil
}

func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	query := `INSERT INTO sections (board_id, title, position, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5) RETURNING id`

	err := r.db.QueryRowContext(
		ctx, query, section.BoardID, section.Title, section.Position, section.CreatedAt, section.UpdatedAt,
	).Scan(&section.ID)
	if err != nil {
		return fmt.Errorf("insert section: %w", notFoundOr(err))
	}
	if section.Cards == nil {
		section.Cards = []*models.Card{}
	}
	return nil
}

func (r *SectionRepository) GetByID(ctx context.Context, id int64) (*models.Section, error) {
	query := `SELECT ` + sectionColumns + ` FROM sections WHERE id = $1`
	section, err := scanSection(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err)
	}
	return section, nil
}

// LoadWithOwner returns the section and the customer id of its board. A
// section whose board is gone resolves to ErrNotFound.
func (r *SectionRepository) LoadWithOwner(ctx context.Context, id int64) (*models.Section, int64, error) {
	query := `SELECT ` + prefixed("s", sectionColumnList) + `, b.customer_id
	 FROM sections s JOIN boards b ON b.id = s.board_id WHERE s.id = $1`
	section := &models.Section{Cards: []*models.Card{}}
	var customerID int64
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&section.ID, &section.BoardID, &section.Title, &section.Position,
		&section.CreatedAt, &section.UpdatedAt, &customerID,
	)
	if err != nil {
		return nil, 0, notFoundOr(err)
	}
	return section, customerID, nil
}

// LoadWithCards returns the section with its cards ordered by position then id.
func (r *SectionRepository) LoadWithCards(ctx context.Context, id int64) (*models.Section, error) {
	section, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cards, err := queryCards(ctx, r.db,
		`SELECT `+cardColumns+` FROM cards WHERE section_id = $1 ORDER BY position, id`, id)
	if err != nil {
		return nil, err
	}
	section.Cards = cards
	return section, nil
}

func (r *SectionRepository) ListByBoardID(ctx context.Context, boardID int64) ([]*models.Section, error) {
	return querySections(ctx, r.db,
		`SELECT `+sectionColumns+` FROM sections WHERE board_id = $1 ORDER BY position, id`, boardID)
}

func (r *SectionRepository) UpdateTitle(ctx context.Context, id int64, title string, updatedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sections SET title = $1, updated_at = $2 WHERE id = $3`, title, updatedAt, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *SectionRepository) UpdatePosition(ctx context.Context, id, position int64, updatedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sections SET position = $1, updated_at = $2 WHERE id = $3`, position, updatedAt, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// Delete removes the section's cards and then the section. It is only atomic
// when r runs on a transaction.
func (r *SectionRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE section_id = $1`, id); err != nil {
		return fmt.Errorf("delete section cards: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM sections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return expectAffected(res)
}

// Sibling set methods: the parent of a section is its board.

func (r *SectionRepository) MaxPosition(ctx context.Context, boardID int64) (int64, bool, error) {
	return maxPosition(ctx, r.db, `SELECT MAX(position) FROM sections WHERE board_id = $1`, boardID)
}

func (r *SectionRepository) PositionTaken(ctx context.Context, boardID, position, excludeID int64) (bool, error) {
	return exists(ctx, r.db,
		`SELECT EXISTS(SELECT 1 FROM sections WHERE board_id = $1 AND position = $2 AND id <> $3)`,
		boardID, position, excludeID)
}

func (r *SectionRepository) ShiftPositions(ctx context.Context, boardID, from, excludeID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sections SET position = position + 1 WHERE board_id = $1 AND position >= $2 AND id <> $3`,
		boardID, from, excludeID)
	return err
}

func maxPosition(ctx context.Context, q DBTX, query string, parentID int64) (int64, bool, error) {
	var highest sql.NullInt64
	if err := q.QueryRowContext(ctx, query, parentID).Scan(&highest); err != nil {
		return 0, false, err
	}
	return highest.Int64, highest.Valid, nil
}

func exists(ctx context.Context, q DBTX, query string, args ...any) (bool, error) {
	var found bool
	if err := q.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}
