package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// dateLayout is how history dates are stored; only the day matters.
const dateLayout = "2006-01-02"

// Product is the single mutable snapshot row per catalog product.
type Product struct {
	SKU           string
	Brand         string
	ModelName     string
	Currency      string
	Availability  string
	ShippingETA   string
	ReviewCount   int
	AverageRating float64
	UpdatedAt     time.Time
}

// PricePoint is one append-only price history record.
type PricePoint struct {
	ID         int64
	SKU        string
	Price      float64
	RecordedOn time.Time
	Vendor     string
	Promo      string
}

// Review is one append-only customer review record.
type Review struct {
	ID         int64
	SKU        string
	Rating     int
	Body       string
	RecordedOn time.Time
	Source     string
}

// Question is one append-only Q&A excerpt.
type Question struct {
	ID         int64
	SKU        string
	Question   string
	Answer     string
	RecordedOn time.Time
	Source     string
}

// AttributeBlock bundles everything the fusion step needs for one product:
// the current snapshot and bounded recent slices of each history table.
// The zero value is the "no dynamic data for this product" block.
type AttributeBlock struct {
	Snapshot  Product
	Prices    []PricePoint
	Reviews   []Review
	Questions []Question
}

// Interaction records one answered query for diagnostics.
type Interaction struct {
	ID        string
	CreatedAt time.Time
	UserQuery string
	Prompt    string
	Answer    string
	ChunkIDs  string // JSON array stored as text
	Truncated bool
}

// ProductFilter narrows ListProducts results. Zero-value fields are ignored.
type ProductFilter struct {
	Brand        string
	MinRating    float64
	Availability string
}
