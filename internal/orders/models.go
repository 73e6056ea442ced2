package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Line is a snapshot of what was ordered. ProductID is a lookup key only;
// Name keeps the line readable after the product leaves the catalog.
type Line struct {
	ProductID string `json:"product"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	Name      string `json:"name"`
}

type Order struct {
	ID           string          `json:"id"`
	CustomerInfo json.RawMessage `json:"customer_info"`
	Lines        []Line          `json:"items"`
	Total        decimal.Decimal `json:"total"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ProductSummary is the catalog data shown next to an order line.
type ProductSummary struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Brand  string   `json:"brand"`
	Images []string `json:"images"`
}

type LineView struct {
	Line
	// Product is nil when the product no longer exists.
	Product *ProductSummary `json:"product_info"`
}

// OrderView is an order with its lines joined against the catalog.
type OrderView struct {
	ID           string          `json:"id"`
	CustomerInfo json.RawMessage `json:"customer_info"`
	Items        []LineView      `json:"items"`
	Total        decimal.Decimal `json:"total"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type PlaceOrderInput struct {
	CustomerInfo json.RawMessage
	Lines        []Line
	Total        *decimal.Decimal
}
