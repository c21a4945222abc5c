package domain

// BlackCatFreeShippingThreshold is the fixed courier free-shipping subtotal.
// It is carrier-specific and deliberately not configurable.
const BlackCatFreeShippingThreshold int64 = 5000

// Quote is the deterministic pricing outcome for a cart and carrier choice.
type Quote struct {
	Subtotal     int64 `json:"subtotal"`
	ShippingFee  int64 `json:"shippingFee"`
	FreeShipping bool  `json:"isFreeShipping"`
	Total        int64 `json:"total"`
}

// ComputeTotals prices the cart for the chosen carrier. It is a pure function of its
// inputs: subtotal is the sum of line subtotals; store-to-store carriers waive the fee
// when any single line meets its product's quantity threshold or the subtotal meets the
// configured amount threshold; the courier waives it at the fixed subtotal threshold.
func ComputeTotals(lines []CartLine, method ShippingMethod, settings ShippingSettings) Quote {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.LineSubtotal()
	}

	free := false
	switch {
	case method.IsStoreToStore():
		for _, line := range lines {
			if line.FreeShippingQuantity > 0 && line.Quantity >= line.FreeShippingQuantity {
				free = true
				break
			}
		}
		if !free && settings.FreeShippingThreshold != nil && subtotal >= *settings.FreeShippingThreshold {
			free = true
		}
	case method == ShippingBlackCat:
		free = subtotal >= BlackCatFreeShippingThreshold
	}

	fee := method.FlatFee()
	if free {
		fee = 0
	}

	return Quote{
		Subtotal:     subtotal,
		ShippingFee:  fee,
		FreeShipping: free,
		Total:        subtotal + fee,
	}
}
