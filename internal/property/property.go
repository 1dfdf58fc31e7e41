// Package property provides the read-only property catalogue.
package property

import (
	"context"
	"time"

	"propflow/internal/common/money"
)

// Property is a unit offered for sale.
type Property struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Price         money.Money `json:"price"`
	Location      string      `json:"location"`
	Bedrooms      int         `json:"bedrooms"`
	Bathrooms     int         `json:"bathrooms"`
	Developer     string      `json:"developer"`
	HTBEligible   bool        `json:"htb_eligible"`
	Image         string      `json:"image,omitempty"`
	DevelopmentID string      `json:"development_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Store reads properties.
type Store interface {
	Get(ctx context.Context, id string) (*Property, error)
	List(ctx context.Context, developmentID string, limit, offset int) ([]*Property, int64, error)
}
