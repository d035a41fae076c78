package enums

import "fmt"

// CashbackStatus tracks supplier cashback on an inventory batch.
type CashbackStatus string

const (
	CashbackNone     CashbackStatus = "none"
	CashbackPending  CashbackStatus = "pending"
	CashbackReceived CashbackStatus = "received"
)

var validCashbackStatuses = []CashbackStatus{CashbackNone, CashbackPending, CashbackReceived}

func (c CashbackStatus) IsValid() bool {
	for _, candidate := range validCashbackStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseCashbackStatus(value string) (CashbackStatus, error) {
	for _, candidate := range validCashbackStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cashback status %q", value)
}

// PointsReason labels an entry in the loyalty points ledger.
type PointsReason string

const (
	PointsOrderDelivered PointsReason = "order_delivered"
	PointsAdjustment     PointsReason = "adjustment"
)
