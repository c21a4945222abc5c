package domain

import (
	"math/rand"
	"reflect"
	"testing"
)

func int64Ptr(v int64) *int64 {
	return &v
}

func TestComputeTotalsBlackCatBelowThreshold(t *testing.T) {
	lines := []CartLine{
		{Product: Product{ID: "p1", Price: 4999}, Quantity: 1},
	}

	quote := ComputeTotals(lines, ShippingBlackCat, ShippingSettings{})

	if quote.Subtotal != 4999 {
		t.Fatalf("expected subtotal 4999, got %d", quote.Subtotal)
	}
	if quote.FreeShipping {
		t.Fatalf("expected paid shipping below courier threshold")
	}
	if quote.ShippingFee != 290 {
		t.Fatalf("expected fee 290, got %d", quote.ShippingFee)
	}
	if quote.Total != 5289 {
		t.Fatalf("expected total 5289, got %d", quote.Total)
	}
}

func TestComputeTotalsBlackCatAtThreshold(t *testing.T) {
	lines := []CartLine{
		{Product: Product{ID: "p1", Price: 3000}, Quantity: 2},
	}

	quote := ComputeTotals(lines, ShippingBlackCat, ShippingSettings{})

	if quote.Subtotal != 6000 {
		t.Fatalf("expected subtotal 6000, got %d", quote.Subtotal)
	}
	if !quote.FreeShipping {
		t.Fatalf("expected free shipping at courier threshold")
	}
	if quote.ShippingFee != 0 {
		t.Fatalf("expected fee 0, got %d", quote.ShippingFee)
	}
	if quote.Total != 6000 {
		t.Fatalf("expected total 6000, got %d", quote.Total)
	}
}

func TestComputeTotalsStoreToStoreItemThreshold(t *testing.T) {
	// One qualifying line is sufficient regardless of subtotal or other lines.
	lines := []CartLine{
		{Product: Product{ID: "p1", Price: 300}, Quantity: 2},
		{Product: Product{ID: "p2", Price: 150, FreeShippingQuantity: 1}, Quantity: 1},
	}

	quote := ComputeTotals(lines, ShippingFamilyMart, ShippingSettings{FreeShippingThreshold: int64Ptr(1000)})

	if quote.Subtotal != 750 {
		t.Fatalf("expected subtotal 750, got %d", quote.Subtotal)
	}
	if !quote.FreeShipping {
		t.Fatalf("expected item-based free shipping")
	}
	if quote.Total != 750 {
		t.Fatalf("expected total 750, got %d", quote.Total)
	}
}

func TestComputeTotalsStoreToStoreOrCombination(t *testing.T) {
	lines := []CartLine{
		{Product: Product{ID: "p1", Price: 10, FreeShippingQuantity: 5}, Quantity: 5},
		{Product: Product{ID: "p2", Price: 10}, Quantity: 1},
	}

	quote := ComputeTotals(lines, ShippingSevenEleven, ShippingSettings{})

	if !quote.FreeShipping {
		t.Fatalf("expected free shipping from the single qualifying line")
	}
	if quote.ShippingFee != 0 {
		t.Fatalf("expected fee 0, got %d", quote.ShippingFee)
	}
}

func TestComputeTotalsStoreToStoreAmountThreshold(t *testing.T) {
	lines := []CartLine{
		{Product: Product{ID: "p1", Price: 500}, Quantity: 2},
	}

	cases := []struct {
		name      string
		settings  ShippingSettings
		method    ShippingMethod
		wantFree  bool
		wantFee   int64
		wantTotal int64
	}{
		{
			name:      "threshold met",
			settings:  ShippingSettings{FreeShippingThreshold: int64Ptr(1000)},
			method:    ShippingSevenEleven,
			wantFree:  true,
			wantFee:   0,
			wantTotal: 1000,
		},
		{
			name:      "threshold not met",
			settings:  ShippingSettings{FreeShippingThreshold: int64Ptr(1001)},
			method:    ShippingSevenEleven,
			wantFree:  false,
			wantFee:   225,
			wantTotal: 1225,
		},
		{
			name:      "threshold absent",
			settings:  ShippingSettings{},
			method:    ShippingFamilyMart,
			wantFree:  false,
			wantFee:   205,
			wantTotal: 1205,
		},
		{
			name:      "amount threshold ignored for courier",
			settings:  ShippingSettings{FreeShippingThreshold: int64Ptr(100)},
			method:    ShippingBlackCat,
			wantFree:  false,
			wantFee:   290,
			wantTotal: 1290,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quote := ComputeTotals(lines, tc.method, tc.settings)
			if quote.FreeShipping != tc.wantFree {
				t.Fatalf("expected free=%v, got %v", tc.wantFree, quote.FreeShipping)
			}
			if quote.ShippingFee != tc.wantFee {
				t.Fatalf("expected fee %d, got %d", tc.wantFee, quote.ShippingFee)
			}
			if quote.Total != tc.wantTotal {
				t.Fatalf("expected total %d, got %d", tc.wantTotal, quote.Total)
			}
		})
	}
}

func TestComputeTotalsEmptyCart(t *testing.T) {
	quote := ComputeTotals(nil, ShippingSevenEleven, ShippingSettings{})

	if quote.Subtotal != 0 {
		t.Fatalf("expected subtotal 0, got %d", quote.Subtotal)
	}
	if quote.ShippingFee != 225 {
		t.Fatalf("expected flat fee for empty cart, got %d", quote.ShippingFee)
	}
}

func TestComputeTotalsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	methods := []ShippingMethod{ShippingBlackCat, ShippingSevenEleven, ShippingFamilyMart}

	for i := 0; i < 200; i++ {
		var lines []CartLine
		for j := 0; j < rng.Intn(6); j++ {
			lines = append(lines, CartLine{
				Product: Product{
					ID:                   "p",
					Price:                rng.Int63n(5000),
					FreeShippingQuantity: rng.Int63n(4),
				},
				Quantity: 1 + rng.Int63n(9),
			})
		}
		method := methods[rng.Intn(len(methods))]
		settings := ShippingSettings{}
		if rng.Intn(2) == 0 {
			settings.FreeShippingThreshold = int64Ptr(rng.Int63n(4000))
		}

		first := ComputeTotals(lines, method, settings)
		second := ComputeTotals(lines, method, settings)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("pricing not deterministic: %+v vs %+v", first, second)
		}
		if first.Total != first.Subtotal+first.ShippingFee {
			t.Fatalf("total %d does not equal subtotal %d plus fee %d", first.Total, first.Subtotal, first.ShippingFee)
		}
		if first.FreeShipping && first.ShippingFee != 0 {
			t.Fatalf("free shipping must zero the fee, got %d", first.ShippingFee)
		}
	}
}
