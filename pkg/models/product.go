package models

import "time"

// Product is a product-line tag attached to pages
type Product struct {
	ID        string    `json:"id" db:"id"`
	Slug      string    `json:"slug,omitempty" db:"slug"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SetProductsRequest assigns products to a page, replacing previous ones
type SetProductsRequest struct {
	WebpageID  string   `json:"webpage_id"`
	ProductIDs []string `json:"product_ids"`
}
