package models

import "time"

// Asset is a file (image, pdf, ...) referenced by one or more pages
type Asset struct {
	ID        string    `json:"id" db:"id"`
	Type      string    `json:"type" db:"type"`
	URL       string    `json:"url" db:"url"`
	CreatedAt time.Time `json:"-" db:"created_at"`
	UpdatedAt time.Time `json:"-" db:"updated_at"`
}
