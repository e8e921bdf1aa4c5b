// Package ordering assigns integer positions to items inside a parent
// (sections in a board, cards in a section).
package ordering

import (
	"context"
	"errors"
	"fmt"
)

type Strategy string

const (
	// Weak appends at max+1 and writes explicit positions as given.
	// Duplicate positions are allowed and resolved by id on read.
	Weak Strategy = "weak"
	// Renumber shifts siblings at or after the target by one when the
	// target position is already taken, keeping positions unique.
	Renumber Strategy = "renumber"
)

var ErrInvalidPosition = errors.New("position must be non-negative")

// Siblings is the set of items sharing one parent.
type Siblings interface {
	MaxPosition(ctx context.Context, parentID int64) (int64, bool, error)
	PositionTaken(ctx context.Context, parentID, position, excludeID int64) (bool, error)
	ShiftPositions(ctx context.Context, parentID, from, excludeID int64) error
}

type Engine struct {
	strategy Strategy
}

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case Weak, Renumber:
		return Strategy(s), nil
	case "":
		return Weak, nil
	}
	return "", fmt.Errorf("unknown ordering strategy %q", s)
}

func New(strategy Strategy) *Engine {
	if strategy == "" {
		strategy = Weak
	}
	return &Engine{strategy: strategy}
}

func (e *Engine) Strategy() Strategy {
	return e.strategy
}

// Append returns the position for a new last item: max+1, or 0 for an
// empty parent.
func (e *Engine) Append(ctx context.Context, s Siblings, parentID int64) (int64, error) {
	highest, ok, err := s.MaxPosition(ctx, parentID)
	if err != nil {
		return 0, fmt.Errorf("max position: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return highest + 1, nil
}

// Place prepares the parent for itemID to be written at position and
// returns the position to write. itemID is 0 for an item not yet stored.
func (e *Engine) Place(ctx context.Context, s Siblings, parentID, position, itemID int64) (int64, error) {
	if position < 0 {
		return 0, ErrInvalidPosition
	}
	if e.strategy != Renumber {
		return position, nil
	}

	taken, err := s.PositionTaken(ctx, parentID, position, itemID)
	if err != nil {
		return 0, fmt.Errorf("check position: %w", err)
	}
	if taken {
		if err := s.ShiftPositions(ctx, parentID, position, itemID); err != nil {
			return 0, fmt.Errorf("shift positions: %w", err)
		}
	}
	return position, nil
}
