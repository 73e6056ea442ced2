package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// SizeStock is the stock counter for one size of a product. It has no
// identity of its own: it is addressed by (product id, size label).
type SizeStock struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Category    Category        `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Images      []string        `json:"images"`
	Sizes       []SizeStock     `json:"sizes"`
	Tags        []Tag           `json:"tags"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Size returns the stock entry for label.
func (p Product) Size(label string) (SizeStock, bool) {
	for _, s := range p.Sizes {
		if s.Size == label {
			return s, true
		}
	}
	return SizeStock{}, false
}

// Filter narrows ListProducts. Zero value lists everything.
type Filter struct {
	Category Category
}
