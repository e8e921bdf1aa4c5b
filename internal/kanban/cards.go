package kanban

import (
	"context"

	"github.com/chepyr/go-kanban/internal/access"
	"github.com/chepyr/go-kanban/internal/db"
	"github.com/chepyr/go-kanban/internal/models"
)

// CreateCard appends a card to the section. Cards are always appended.
func (s *Service) CreateCard(ctx context.Context, customerID, sectionID int64, title string, description *string) (*models.Card, error) {
	title, err := ValidateTitle("title", title)
	if err != nil {
		return nil, err
	}
	if err := ValidateDescription(description); err != nil {
		return nil, err
	}

	now := s.now()
	card := &models.Card{SectionID: sectionID, Title: title, Description: description, CreatedAt: now, UpdatedAt: now}
	err = s.inTx(ctx, func(r *db.Repositories) error {
		if err := authorize(ctx, r, customerID, access.Section(sectionID)); err != nil {
			return err
		}
		var err error
		if card.Position, err = s.order.Append(ctx, r.Cards, sectionID); err != nil {
			return err
		}
		return r.Cards.Create(ctx, card)
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// UpdateCard replaces the card's title and description. A nil description
// clears it.
func (s *Service) UpdateCard(ctx context.Context, customerID, cardID int64, title string, description *string) (*models.Card, error) {
	title, err := ValidateTitle("title", title)
	if err != nil {
		return nil, err
	}
	if err := ValidateDescription(description); err != nil {
		return nil, err
	}

	var card *models.Card
	err = s.inTx(ctx, func(r *db.Repositories) error {
		if err := authorize(ctx, r, customerID, access.Card(cardID)); err != nil {
			return err
		}
		if err := r.Cards.UpdateContent(ctx, cardID, title, description, s.now()); err != nil {
			return err
		}
		var err error
		card, err = r.Cards.GetByID(ctx, cardID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// MoveCard puts the card into sectionID at position. Both the card and the
// target section must belong to the caller.
func (s *Service) MoveCard(ctx context.Context, customerID, cardID, sectionID, position int64) (*models.Card, error) {
	if err := ValidatePosition(position); err != nil {
		return nil, err
	}
	var card *models.Card
	err := s.inTx(ctx, func(r *db.Repositories) error {
		if err := authorize(ctx, r, customerID, access.Card(cardID)); err != nil {
			return err
		}
		if err := authorize(ctx, r, customerID, access.Section(sectionID)); err != nil {
			return err
		}
		target, err := s.order.Place(ctx, r.Cards, sectionID, position, cardID)
		if err != nil {
			return err
		}
		if err := r.Cards.Move(ctx, cardID, sectionID, target, s.now()); err != nil {
			return err
		}
		card, err = r.Cards.GetByID(ctx, cardID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (s *Service) DeleteCard(ctx context.Context, customerID, cardID int64) (*models.Card, error) {
	var card *models.Card
	err := s.inTx(ctx, func(r *db.Repositories) error {
		if err := authorize(ctx, r, customerID, access.Card(cardID)); err != nil {
			return err
		}
		var err error
		if card, err = r.Cards.GetByID(ctx, cardID); err != nil {
			return err
		}
		return r.Cards.Delete(ctx, cardID)
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}
