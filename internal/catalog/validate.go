package catalog

import (
	"strings"

	"github.com/ariefcatur/boutique-orders/internal/apperr"
	"github.com/shopspring/decimal"
)

// maxAmount is the first value NUMERIC(12, 2) cannot hold.
var maxAmount = decimal.New(1, 10)

// ValidAmount reports whether d is a non-negative money amount that the
// stores keep exactly: at most two decimal places, below maxAmount.
func ValidAmount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Round(2)) && d.LessThan(maxAmount)
}

// Normalize trims free-text fields and fills nil slices so the product
// serializes the same way whether it came from a store or a request.
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Brand = strings.TrimSpace(p.Brand)
	for i := range p.Sizes {
		p.Sizes[i].Size = strings.TrimSpace(p.Sizes[i].Size)
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Sizes == nil {
		p.Sizes = []SizeStock{}
	}
	if p.Tags == nil {
		p.Tags = []Tag{}
	}
}

// Validate enforces the product schema. Call Normalize first.
func (p Product) Validate() error {
	if p.Name == "" {
		return apperr.New(apperr.CodeInvalidInput, "name is required")
	}
	if p.Brand == "" {
		return apperr.New(apperr.CodeInvalidInput, "brand is required")
	}
	if !p.Category.Valid() {
		return apperr.Newf(apperr.CodeInvalidInput, "unknown category %q", p.Category)
	}
	if p.Price.IsNegative() {
		return apperr.New(apperr.CodeInvalidInput, "price must be >= 0")
	}
	if !ValidAmount(p.Price) {
		return apperr.New(apperr.CodeInvalidInput, "price must have at most 2 decimal places and stay below 10000000000")
	}

	seen := make(map[string]bool, len(p.Sizes))
	for _, s := range p.Sizes {
		if s.Size == "" {
			return apperr.New(apperr.CodeInvalidInput, "size label is required")
		}
		if seen[s.Size] {
			return apperr.Newf(apperr.CodeInvalidInput, "duplicate size %q", s.Size)
		}
		seen[s.Size] = true
		if s.Stock < 0 {
			return apperr.Newf(apperr.CodeInvalidInput, "stock for size %q must be >= 0", s.Size)
		}
	}
	for _, t := range p.Tags {
		if !t.Valid() {
			return apperr.Newf(apperr.CodeInvalidInput, "unknown tag %q", t)
		}
	}
	return nil
}
