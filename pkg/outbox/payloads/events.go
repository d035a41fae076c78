package payloads

import "time"

// OrderLine is the denormalized line carried in order events.
type OrderLine struct {
	Description    string `json:"description"`
	Units          int    `json:"units"`
	LineTotalCents int64  `json:"lineTotalCents,omitempty"`
}

// OrderCreatedEvent carries everything the shop owner needs to fulfil an
// order from the chat notification alone.
type OrderCreatedEvent struct {
	OrderID         string      `json:"orderId"`
	CustomerName    string      `json:"customerName"`
	CustomerEmail   string      `json:"customerEmail"`
	CustomerPhone   string      `json:"customerPhone"`
	ShippingAddress string      `json:"shippingAddress"`
	Items           []OrderLine `json:"items"`
	SubtotalCents   int64       `json:"subtotalCents"`
	DiscountCents   int64       `json:"discountCents"`
	TotalCents      int64       `json:"totalCents"`
	CouponCode      string      `json:"couponCode,omitempty"`
	PaymentChannel  string      `json:"paymentChannel"`
	PaymentMethod   string      `json:"paymentMethod"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// OrderStatusChangedEvent is emitted by admin status updates.
type OrderStatusChangedEvent struct {
	OrderID        string `json:"orderId"`
	From           string `json:"from"`
	To             string `json:"to"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	StockDeducted  bool   `json:"stockDeducted"`
	StockRestocked bool   `json:"stockRestocked"`
}

// StockSyncedEvent records the public stock written by an inventory sync.
type StockSyncedEvent struct {
	ProductID string         `json:"productId"`
	Stock     int            `json:"stock"`
	Variants  map[string]int `json:"variants,omitempty"`
}
