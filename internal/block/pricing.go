package block

import (
	"fmt"
	"math"
)

// Discount kinds. Percent discounts are applied to the subtotal; fixed
// discounts are subtracted as an absolute amount in the table currency.
const (
	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

type Discount struct {
	Kind  string  `json:"kind" bson:"kind"`
	Value float64 `json:"value" bson:"value"`
}

// LineItem is one row of a pricing table.
type LineItem struct {
	Name        string  `json:"name" bson:"name"`
	Description string  `json:"description,omitempty" bson:"description,omitempty"`
	Quantity    float64 `json:"quantity" bson:"quantity"`
	UnitPrice   float64 `json:"unitPrice" bson:"unitPrice"`
	Optional    bool    `json:"optional,omitempty" bson:"optional,omitempty"`
	Selected    bool    `json:"selected" bson:"selected"`
	QtyEditable bool    `json:"qtyEditable,omitempty" bson:"qtyEditable,omitempty"`
}

// PricingTable holds an ordered list of line items. Row order is preserved
// from the source (authoring order or provider order).
type PricingTable struct {
	base     `bson:",inline"`
	Items    []LineItem `json:"items" bson:"items"`
	Currency string     `json:"currency" bson:"currency"`
	TaxRate  float64    `json:"taxRate,omitempty" bson:"taxRate,omitempty"`
	Discount *Discount  `json:"discount,omitempty" bson:"discount,omitempty"`
}

func NewPricingTable(currency string, items []LineItem) *PricingTable {
	if currency == "" {
		currency = "USD"
	}
	return &PricingTable{base: newBase(), Currency: currency, Items: items}
}

func (*PricingTable) Type() Type { return TypePricingTable }

func (p *PricingTable) Validate() error {
	for i, it := range p.Items {
		if it.Quantity < 0 {
			return fmt.Errorf("%w: line item %d negative quantity", ErrInvalid, i)
		}
		if it.UnitPrice < 0 {
			return fmt.Errorf("%w: line item %d negative unit price", ErrInvalid, i)
		}
	}
	if p.TaxRate < 0 {
		return fmt.Errorf("%w: negative tax rate", ErrInvalid)
	}
	if p.Discount != nil {
		switch p.Discount.Kind {
		case DiscountPercent, DiscountFixed:
		default:
			return fmt.Errorf("%w: discount kind %q", ErrInvalid, p.Discount.Kind)
		}
		if p.Discount.Value < 0 {
			return fmt.Errorf("%w: negative discount", ErrInvalid)
		}
	}
	return nil
}

// Subtotal sums quantity × unit price over selected rows. Optional rows the
// recipient has not selected do not count.
func (p *PricingTable) Subtotal() float64 {
	var sum float64
	for _, it := range p.Items {
		if it.Optional && !it.Selected {
			continue
		}
		sum += it.Quantity * it.UnitPrice
	}
	return sum
}

// Total applies the discount and then tax to the subtotal.
func (p *PricingTable) Total() float64 {
	t := p.Subtotal()
	if p.Discount != nil {
		switch p.Discount.Kind {
		case DiscountPercent:
			t -= t * p.Discount.Value / 100
		case DiscountFixed:
			t -= p.Discount.Value
		}
		t = math.Max(t, 0)
	}
	if p.TaxRate > 0 {
		t += t * p.TaxRate / 100
	}
	return t
}
