package kanban

import (
	"context"

	"github.com/chepyr/go-kanban/internal/access"
	"github.com/chepyr/go-kanban/internal/db"
	"github.com/chepyr/go-kanban/internal/models"
)

// CreateSection adds a section to the board. A nil position appends after
// the last section; an explicit one is written as given.
func (s *Service) CreateSection(ctx context.Context, customerID, boardID int64, title string, position *int64) (*models.Section, error) {
	title, err := ValidateTitle("title", title)
	if err != nil {
		return nil, err
	}
	if position != nil {
		if err := ValidatePosition(*position); err != nil {
			return nil, err
		}
	}

	now := s.now()
	section := &models.Section{BoardID: boardID, Title: title, CreatedAt: now, UpdatedAt: now}
	err = s.inTx(ctx, func(r *db.Repositories) error {
		if err := authorize(ctx, r, customerID, access.Board(boardID)); err != nil {
			return err
		}
		var err error
		if position == nil {
			section.Position, err = s.order.Append(ctx, r.Sections, boardID)
		} else {
			section.Position, err = s.order.Place(ctx, r.Sections, boardID, *position, 0)
		}
		if err != nil {
			return err
		}
		return r.Sections.Create(ctx, section)
	})
	if err != nil {
		return nil, err
	}
	return section, nil
}

func (s *Service) RenameSection(ctx context.Context, customerID, sectionID int64, title string) (*models.Section, error) {
	title, err := ValidateTitle("newTitle", title)
	if err != nil {
		return nil, err
	}
	var section *models.Section
	err = s.inTx(ctx, func(r *db.Repositories) error {
		if err := authorize(ctx, r, customerID, access.Section(sectionID)); err != nil {
			return err
		}
		if err := r.Sections.UpdateTitle(ctx, sectionID, title, s.now()); err != nil {
			return err
		}
		var err error
		section, err = r.Sections.GetByID(ctx, sectionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return section, nil
}

// MoveSection sets the section's position within its board.
func (s *Service) MoveSection(ctx context.Context, customerID, sectionID, position int64) (*models.Section, error) {
	if err := ValidatePosition(position); err != nil {
		return nil, err
	}
	var section *models.Section
	err := s.inTx(ctx, func(r *db.Repositories) error {
		if err := authorize(ctx, r, customerID, access.Section(sectionID)); err != nil {
			return err
		}
		current, err := r.Sections.GetByID(ctx, sectionID)
		if err != nil {
			return err
		}
		target, err := s.order.Place(ctx, r.Sections, current.BoardID, position, sectionID)
		if err != nil {
			return err
		}
		if err := r.Sections.UpdatePosition(ctx, sectionID, target, s.now()); err != nil {
			return err
		}
		section, err = r.Sections.GetByID(ctx, sectionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return section, nil
}

// DeleteSection removes the section and its cards. Sibling positions are
// left as they are.
func (s *Service) DeleteSection(ctx context.Context, customerID, sectionID int64) (*models.Section, error) {
	var section *models.Section
	err := s.inTx(ctx, func(r *db.Repositories) error {
		if err := authorize(ctx, r, customerID, access.Section(sectionID)); err != nil {
			return err
		}
		var err error
		if section, err = r.Sections.LoadWithCards(ctx, sectionID); err != nil {
			return err
		}
		return r.Sections.Delete(ctx, sectionID)
	})
	if err != nil {
		return nil, err
	}
	return section, nil
}
