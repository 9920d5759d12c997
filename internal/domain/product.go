package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCategory is assigned to products created without a category.
const DefaultCategory = "Traditional Craft"

// Product is an artisan product carrying geographical-indication metadata.
// Only ID is needed to link to the product; every other field may be empty.
type Product struct {
	ID             uuid.UUID `json:"_id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description,omitempty" db:"description"`
	GITag          string    `json:"gi_tag" db:"gi_tag"`
	Region         string    `json:"region" db:"region"`
	ArtisanName    string    `json:"artisan_name" db:"artisan_name"`
	ArtisanContact string    `json:"artisan_contact,omitempty" db:"artisan_contact"`
	Price          *float64  `json:"price,omitempty" db:"price"`
	Category       string    `json:"category,omitempty" db:"category"`
	ImageURL       string    `json:"image_url,omitempty" db:"image_url"`
	Location       *Location `json:"location,omitempty"`
	CulturalStory  string    `json:"cultural_story,omitempty" db:"cultural_story"`
	Barcode        string    `json:"barcode,omitempty" db:"barcode"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Location is the workshop position of a product's artisan.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ProductFilter narrows a product listing. Text filters match
// case-insensitively anywhere in the field.
type ProductFilter struct {
	Region      string
	GITag       string
	ArtisanName string
	Limit       int
	Skip        int
}

// VerificationResponse is the outcome of looking up a verification code.
// Verified is false with no Product when the code matched nothing usable.
type VerificationResponse struct {
	Verified bool     `json:"verified"`
	Product  *Product `json:"product,omitempty"`
}
