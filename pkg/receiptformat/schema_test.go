package receiptformat

import (
	"errors"
	"strings"
	"testing"
)

func validPayload() *Payload {
	return &Payload{
		StoreName:     "Corner Cafe",
		Address:       "1 Main St",
		OrderNumber:   "A-100",
		CustomerName:  "Sam",
		PaymentMethod: "Card",
		Items: []Item{
			{Name: "Cappuccino", Qty: 2, Price: 150},
			{Name: "Croissant", Qty: 1, Price: 80},
		},
		Subtotal: 380,
		Tax:      38,
		Total:    418,
	}
}

func TestValidate_ValidPayload(t *testing.T) {
	if err := Validate(validPayload()); err != nil {
		t.Errorf("Expected valid payload, got error: %v", err)
	}
}

func TestValidate_MissingFields(t *testing.T) {
	p := validPayload()
	p.StoreName = ""
	p.PaymentMethod = "  "

	err := Validate(p)
	if err == nil {
		t.Fatal("Expected error for missing fields")
	}
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Expected ErrInvalidPayload, got %v", err)
	}
	if !strings.Contains(err.Error(), "storeName") || !strings.Contains(err.Error(), "paymentMethod") {
		t.Errorf("Expected both missing fields in message, got %q", err.Error())
	}
}

func TestValidate_NoItems(t *testing.T) {
	p := validPayload()
	p.Items = nil

	if err := Validate(p); err == nil {
		t.Error("Expected error for no items")
	}
}

func TestValidate_ItemConstraints(t *testing.T) {
	tests := []struct {
		name string
		item Item
	}{
		{"zero qty", Item{Name: "Tea", Qty: 0, Price: 10}},
		{"negative qty", Item{Name: "Tea", Qty: -1, Price: 10}},
		{"negative price", Item{Name: "Tea", Qty: 1, Price: -0.5}},
		{"empty name", Item{Name: "", Qty: 1, Price: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload()
			p.Items = []Item{tt.item}
			if err := Validate(p); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}
}

func TestValidate_FreeItemAllowed(t *testing.T) {
	p := validPayload()
	p.Items = append(p.Items, Item{Name: "Water", Qty: 1, Price: 0})

	if err := Validate(p); err != nil {
		t.Errorf("Expected zero price to be valid, got %v", err)
	}
}

func TestValidate_TotalsAreNotReconciled(t *testing.T) {
	p := validPayload()
	p.Total = 1

	if err := Validate(p); err != nil {
		t.Errorf("Expected mismatched totals to pass validation, got %v", err)
	}
}

func TestParse(t *testing.T) {
	data := []byte(`{
		"storeName": "Corner Cafe",
		"address": "1 Main St",
		"orderNumber": "A-100",
		"customerName": "Sam",
		"paymentMethod": "Card",
		"items": [{"name": "Cappuccino", "qty": 2, "price": 150}],
		"subtotal": 300,
		"tax": 30,
		"total": 330,
		"qrCode": "ORD-1"
	}`)

	p, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.StoreName != "Corner Cafe" {
		t.Errorf("Expected store name 'Corner Cafe', got %q", p.StoreName)
	}
	if len(p.Items) != 1 || p.Items[0].LineTotal() != 300 {
		t.Errorf("Unexpected items: %+v", p.Items)
	}
	if !p.HasQRCode() {
		t.Error("Expected QR code to be present")
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	if _, err := Parse([]byte(`{"storeName":`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestSample_IsValid(t *testing.T) {
	if err := Validate(Sample()); err != nil {
		t.Errorf("Sample payload should be valid: %v", err)
	}
}
