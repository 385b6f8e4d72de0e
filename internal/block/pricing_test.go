package block

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func items() []LineItem {
	return []LineItem{
		{Name: "Design", Quantity: 10, UnitPrice: 150, Selected: true},
		{Name: "Hosting", Quantity: 12, UnitPrice: 25, Selected: true},
		{Name: "Support", Quantity: 1, UnitPrice: 500, Optional: true},
	}
}

func TestPricingSubtotalSkipsUnselectedOptionals(t *testing.T) {
	p := NewPricingTable("USD", items())
	require.NoError(t, p.Validate())
	require.InDelta(t, 1800.0, p.Subtotal(), 0.001)

	p.Items[2].Selected = true
	require.InDelta(t, 2300.0, p.Subtotal(), 0.001)
}

func TestPricingTotalPercentDiscountAndTax(t *testing.T) {
	p := NewPricingTable("USD", items())
	p.Discount = &Discount{Kind: DiscountPercent, Value: 10}
	p.TaxRate = 20
	// 1800 - 10% = 1620, + 20% tax = 1944
	require.InDelta(t, 1944.0, p.Total(), 0.001)
}

func TestPricingTotalFixedDiscountFloorsAtZero(t *testing.T) {
	p := NewPricingTable("EUR", []LineItem{{Name: "One", Quantity: 1, UnitPrice: 50, Selected: true}})
	p.Discount = &Discount{Kind: DiscountFixed, Value: 80}
	require.Equal(t, 0.0, p.Total())
}

func TestPricingValidateRejectsNegatives(t *testing.T) {
	p := NewPricingTable("USD", []LineItem{{Name: "Bad", Quantity: -1, UnitPrice: 10}})
	require.ErrorIs(t, p.Validate(), ErrInvalid)

	p = NewPricingTable("USD", []LineItem{{Name: "Bad", Quantity: 1, UnitPrice: -10}})
	require.ErrorIs(t, p.Validate(), ErrInvalid)

	p = NewPricingTable("USD", nil)
	p.Discount = &Discount{Kind: "buy-one-get-one"}
	require.ErrorIs(t, p.Validate(), ErrInvalid)
}
