package enums

import "fmt"

// CouponType selects how a coupon's value is applied to the subtotal.
type CouponType string

const (
	CouponPercentage CouponType = "percentage"
	CouponFixed      CouponType = "fixed"
)

func (c CouponType) IsValid() bool {
	return c == CouponPercentage || c == CouponFixed
}

func ParseCouponType(value string) (CouponType, error) {
	ct := CouponType(value)
	if !ct.IsValid() {
		return "", fmt.Errorf("invalid coupon type %q", value)
	}
	return ct, nil
}
