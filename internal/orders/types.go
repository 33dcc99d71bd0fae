package orders

import (
	"math"
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusDraft     OrderStatus = "draft"
	StatusSubmitted OrderStatus = "submitted"
	StatusReceived  OrderStatus = "received"
	StatusCancelled OrderStatus = "cancelled"
)

func IsValidStatus(s OrderStatus) bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusReceived, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a status change is allowed.
// received and cancelled are terminal.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case StatusDraft:
		return to == StatusSubmitted || to == StatusCancelled
	case StatusSubmitted:
		return to == StatusReceived || to == StatusCancelled
	default:
		return false
	}
}

// Actor is who performed a mutating action against an order.
type Actor struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

type OrderItem struct {
	ID                string  `json:"id"`
	ProductSKU        string  `json:"productSku"`
	Name              string  `json:"name"`
	Quantity          float64 `json:"quantity"`
	ReceivedQuantity  float64 `json:"receivedQuantity"`
	RemainingQuantity float64 `json:"remainingQuantity"`
	Note              string  `json:"note"`
}

type PurchaseOrder struct {
	ID        string      `json:"id"`
	Status    OrderStatus `json:"status"`
	Supplier  string      `json:"supplier"`
	CreatedBy string      `json:"createdBy"`
	Items     []OrderItem `json:"items"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// NormalizeItems coerces every item into a storable shape: quantities become
// finite numbers (zero when not), the remaining quantity is derived and
// clamped at zero, and text fields are trimmed so absent values are an
// explicit empty string rather than left undefined.
func NormalizeItems(items []OrderItem) []OrderItem {
	out := make([]OrderItem, len(items))
	for i, item := range items {
		item.ProductSKU = strings.TrimSpace(item.ProductSKU)
		item.Name = strings.TrimSpace(item.Name)
		item.Note = strings.TrimSpace(item.Note)
		item.Quantity = finiteOrZero(item.Quantity)
		item.ReceivedQuantity = finiteOrZero(item.ReceivedQuantity)
		item.RemainingQuantity = item.Quantity - item.ReceivedQuantity
		if item.RemainingQuantity < 0 {
			item.RemainingQuantity = 0
		}
		out[i] = item
	}
	return out
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
