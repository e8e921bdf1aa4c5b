// Package access resolves the owning customer of a board, section or card
// and decides whether a caller may touch it.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/chepyr/go-kanban/internal/db"
)

type Decision int

const (
	NotFound Decision = iota
	Forbidden
	Allowed
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Forbidden:
		return "forbidden"
	default:
		return "not found"
	}
}

type Kind int

const (
	BoardKind Kind = iota
	SectionKind
	CardKind
)

func (k Kind) String() string {
	switch k {
	case BoardKind:
		return "board"
	case SectionKind:
		return "section"
	case CardKind:
		return "card"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Entity struct {
	Kind Kind
	ID   int64
}

func Board(id int64) Entity   { return Entity{Kind: BoardKind, ID: id} }
func Section(id int64) Entity { return Entity{Kind: SectionKind, ID: id} }
func Card(id int64) Entity    { return Entity{Kind: CardKind, ID: id} }

// OwnerLookup walks an entity up to its board and returns the board's
// customer id, or db.ErrNotFound if any link of the chain is missing.
type OwnerLookup interface {
	BoardOwner(ctx context.Context, boardID int64) (int64, error)
	SectionOwner(ctx context.Context, sectionID int64) (int64, error)
	CardOwner(ctx context.Context, cardID int64) (int64, error)
}

// Authorize resolves the owner of entity on every call. The returned error is
// set only for lookup failures other than a missing row.
func Authorize(ctx context.Context, lookup OwnerLookup, customerID int64, entity Entity) (Decision, error) {
	var (
		owner int64
		err   error
	)
	switch entity.Kind {
	case BoardKind:
		owner, err = lookup.BoardOwner(ctx, entity.ID)
	case SectionKind:
		owner, err = lookup.SectionOwner(ctx, entity.ID)
	case CardKind:
		owner, err = lookup.CardOwner(ctx, entity.ID)
	default:
		return NotFound, fmt.Errorf("authorize: unknown entity kind %v", entity.Kind)
	}

	if errors.Is(err, db.ErrNotFound) {
		return NotFound, nil
	}
	if err != nil {
		return NotFound, fmt.Errorf("resolve %s %d owner: %w", entity.Kind, entity.ID, err)
	}
	if owner != customerID {
		return Forbidden, nil
	}
	return Allowed, nil
}
