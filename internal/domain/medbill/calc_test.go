package medbill

import "testing"

func TestCalculate(t *testing.T) {
	items := []LineItem{
		{Medicine: "Arnica", Amount: 120},
		{Medicine: "Belladonna", Amount: 80},
	}

	got := Calculate(items, 10, 5)

	if got.Subtotal != 200 {
		t.Errorf("expected subtotal 200, got %v", got.Subtotal)
	}
	if got.DiscountAmount != 20 {
		t.Errorf("expected discount 20, got %v", got.DiscountAmount)
	}
	if got.TaxAmount != 9 {
		t.Errorf("expected tax 9, got %v", got.TaxAmount)
	}
	if got.GrandTotal != 189 {
		t.Errorf("expected grand total 189, got %v", got.GrandTotal)
	}
}

func TestCalculate_TaxAppliesAfterDiscount(t *testing.T) {
	got := Calculate([]LineItem{{Medicine: "Nux", Amount: 100}}, 50, 10)

	if got.TaxAmount != 5 {
		t.Errorf("expected tax on discounted subtotal (5), got %v", got.TaxAmount)
	}
	if got.GrandTotal != 55 {
		t.Errorf("expected grand total 55, got %v", got.GrandTotal)
	}
}

func TestCalculate_Empty(t *testing.T) {
	got := Calculate(nil, 10, 5)

	if got.Subtotal != 0 || got.GrandTotal != 0 {
		t.Errorf("expected zero totals, got %+v", got)
	}
}
