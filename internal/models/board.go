package models

import "time"

// Board is a root entity owned directly by a customer.
type Board struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Sections is empty unless the board was loaded with its descendants.
	Sections []*Section `json:"sections"`
}

type Section struct {
	ID        int64     `json:"id"`
	BoardID   int64     `json:"board_id"`
	Title     string    `json:"title"`
	Position  int64     `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Cards []*Card `json:"cards"`
}

type Card struct {
	ID          int64     `json:"id"`
	SectionID   int64     `json:"section_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Position    int64     `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
