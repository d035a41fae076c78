package enums

import "fmt"

// OrderStatus tracks an order from placement to delivery. Values are stored
// verbatim because existing order rows and the admin screens use them.
type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "Processamento"
	OrderStatusPaid       OrderStatus = "Pago"
	OrderStatusShipped    OrderStatus = "Enviado"
	OrderStatusDelivered  OrderStatus = "Entregue"
	OrderStatusCanceled   OrderStatus = "Cancelado"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusProcessing,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCanceled,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusDelivered || o == OrderStatusCanceled
}

// CountsTowardSpend reports whether the order contributes to loyalty spend.
func (o OrderStatus) CountsTowardSpend() bool {
	return o.IsValid() && o != OrderStatusCanceled
}

// ConsumesStock reports whether inventory must already be deducted for an
// order in this status.
func (o OrderStatus) ConsumesStock() bool {
	switch o {
	case OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
