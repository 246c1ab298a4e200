package receiptformat

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidPayload is wrapped by every validation failure
var ErrInvalidPayload = errors.New("invalid receipt")

// Validate checks the required fields and item constraints.
// Totals are not reconciled against the items; the caller's arithmetic is trusted.
func Validate(p *Payload) error {
	if p == nil {
		return fmt.Errorf("%w: payload is required", ErrInvalidPayload)
	}

	required := []struct {
		name  string
		value string
	}{
		{"storeName", p.StoreName},
		{"address", p.Address},
		{"orderNumber", p.OrderNumber},
		{"customerName", p.CustomerName},
		{"paymentMethod", p.PaymentMethod},
	}

	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidPayload, strings.Join(missing, ", "))
	}

	if len(p.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidPayload)
	}

	for i, item := range p.Items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: item[%d]: name is required", ErrInvalidPayload, i)
		}
		if !(item.Qty > 0) || math.IsInf(item.Qty, 0) {
			return fmt.Errorf("%w: item[%d] '%s': qty must be greater than 0", ErrInvalidPayload, i, item.Name)
		}
		if !(item.Price >= 0) || math.IsInf(item.Price, 0) {
			return fmt.Errorf("%w: item[%d] '%s': price must not be negative", ErrInvalidPayload, i, item.Name)
		}
	}

	for _, amount := range []struct {
		name  string
		value float64
	}{{"subtotal", p.Subtotal}, {"tax", p.Tax}, {"total", p.Total}} {
		if math.IsNaN(amount.value) || math.IsInf(amount.value, 0) {
			return fmt.Errorf("%w: %s is not a number", ErrInvalidPayload, amount.name)
		}
	}

	return nil
}
