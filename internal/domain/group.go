package domain

import "time"

// Group es un grupo externo observado; el nombre es único.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
}
