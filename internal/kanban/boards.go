package kanban

import (
	"context"

	"github.com/chepyr/go-kanban/internal/access"
	"github.com/chepyr/go-kanban/internal/db"
	"github.com/chepyr/go-kanban/internal/models"
)

// ListBoards returns every board of the customer with sections and cards.
// A customer without boards gets ErrNotFound.
func (s *Service) ListBoards(ctx context.Context, customerID int64) ([]*models.Board, error) {
	var boards []*models.Board
	err := s.inTx(ctx, func(r *db.Repositories) error {
		var err error
		boards, err = r.Boards.LoadAllForCustomer(ctx, customerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(boards) == 0 {
		return nil, ErrNotFound
	}
	return boards, nil
}

func (s *Service) CreateBoard(ctx context.Context, customerID int64, title string) (*models.Board, error) {
	title, err := ValidateTitle("title", title)
	if err != nil {
		return nil, err
	}
	now := s.now()
	board := &models.Board{CustomerID: customerID, Title: title, CreatedAt: now, UpdatedAt: now}
	if err := s.inTx(ctx, func(r *db.Repositories) error {
		return r.Boards.Create(ctx, board)
	}); err != nil {
		return nil, err
	}
	return board, nil
}

func (s *Service) GetBoard(ctx context.Context, customerID, boardID int64) (*models.Board, error) {
	var board *models.Board
	err := s.inTx(ctx, func(r *db.Repositories) error {
		if err := authorize(ctx, r, customerID, access.Board(boardID)); err != nil {
			return err
		}
		var err error
		board, err = r.Boards.LoadWithSections(ctx, boardID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}

func (s *Service) RenameBoard(ctx context.Context, customerID, boardID int64, title string) (*models.Board, error) {
	title, err := ValidateTitle("newTitle", title)
	if err != nil {
		return nil, err
	}
	var board *models.Board
	err = s.inTx(ctx, func(r *db.Repositories) error {
		if err := authorize(ctx, r, customerID, access.Board(boardID)); err != nil {
			return err
		}
		if err := r.Boards.UpdateTitle(ctx, boardID, title, s.now()); err != nil {
			return err
		}
		var err error
		board, err = r.Boards.GetByID(ctx, boardID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}

// DeleteBoard removes the board with its sections and cards and returns the
// board as it was before deletion.
func (s *Service) DeleteBoard(ctx context.Context, customerID, boardID int64) (*models.Board, error) {
	var board *models.Board
	err := s.inTx(ctx, func(r *db.Repositories) error {
		if err := authorize(ctx, r, customerID, access.Board(boardID)); err != nil {
			return err
		}
		var err error
		if board, err = r.Boards.LoadWithSections(ctx, boardID); err != nil {
			return err
		}
		return r.Boards.Delete(ctx, boardID)
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}
