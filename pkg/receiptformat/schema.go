// Package receiptformat defines the receipt payload accepted by the print endpoints
package receiptformat

// Payload is one receipt as sent by the checkout system
type Payload struct {
	StoreName     string  `json:"storeName"`
	Address       string  `json:"address"`
	OrderNumber   string  `json:"orderNumber"`
	CustomerName  string  `json:"customerName"`
	PaymentMethod string  `json:"paymentMethod"`
	Items         []Item  `json:"items"`
	Subtotal      float64 `json:"subtotal"`
	Tax           float64 `json:"tax"`
	Total         float64 `json:"total"`
	QRCode        string  `json:"qrCode,omitempty"`
}

// Item is a single order line. Items print in the order given.
type Item struct {
	Name  string  `json:"name"`
	Qty   float64 `json:"qty"`
	Price float64 `json:"price"`
}

// LineTotal returns qty * price
func (i Item) LineTotal() float64 {
	return i.Qty * i.Price
}

// HasQRCode reports whether a QR block should be printed
func (p *Payload) HasQRCode() bool {
	return p.QRCode != ""
}

// Sample returns the fixed payload used for test prints
func Sample() *Payload {
	return &Payload{
		StoreName:     "Test Store",
		Address:       "123 Sample Street",
		OrderNumber:   "TEST-0001",
		CustomerName:  "Test Customer",
		PaymentMethod: "Cash",
		Items: []Item{
			{Name: "Cappuccino", Qty: 2, Price: 150},
			{Name: "Croissant", Qty: 1, Price: 80},
		},
		Subtotal: 380,
		Tax:      38,
		Total:    418,
		QRCode:   "TEST-0001",
	}
}
