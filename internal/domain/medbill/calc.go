package medbill

// Calculate derives bill totals from line items. The discount comes off the
// subtotal first and tax is charged on what remains.
func Calculate(items []LineItem, discountPercent, taxPercent float64) Totals {
	var subtotal float64
	for _, item := range items {
		subtotal += item.Amount
	}
	discount := subtotal * discountPercent / 100
	tax := (subtotal - discount) * taxPercent / 100
	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxAmount:      tax,
		GrandTotal:     subtotal - discount + tax,
	}
}
