package checkout

import (
	"fmt"

	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
)

// Reasons a cart line cannot be ordered.
const (
	ReasonProductMissing  = "product_missing"
	ReasonProductInactive = "product_inactive"
	ReasonUnknownVariant  = "unknown_variant"
	ReasonBadQuantity     = "bad_quantity"
)

// LineCheck describes what checkout knows about one cart line.
type LineCheck struct {
	ProductID     string
	ProductName   string
	Variant       string
	Quantity      int
	Found         bool
	Active        bool
	VariantExists bool
}

// LineViolation is returned to callers for every line that cannot be ordered.
type LineViolation struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Variant     string `json:"variant,omitempty"`
	Reason      string `json:"reason"`
}

// ValidateLines reports every unorderable line at once so the storefront can
// prune the cart in a single pass.
func ValidateLines(lines []LineCheck) error {
	var violations []LineViolation
	for _, line := range lines {
		reason := ""
		switch {
		case !line.Found:
			reason = ReasonProductMissing
		case !line.Active:
			reason = ReasonProductInactive
		case line.Variant != "" && !line.VariantExists:
			reason = ReasonUnknownVariant
		case line.Quantity <= 0:
			reason = ReasonBadQuantity
		}
		if reason == "" {
			continue
		}
		violations = append(violations, LineViolation{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Variant:     line.Variant,
			Reason:      reason,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%d cart item(s) no longer available", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
