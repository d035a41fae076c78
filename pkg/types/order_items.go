package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// OrderItem is one line of an order. Orders written before line items were
// structured carry free-text lines; both shapes live in the same column and
// are told apart once, when the column is decoded.
type OrderItem interface {
	Description() string
	Units() int
	isOrderItem()
}

// LegacyItem is a free-text line such as "2x Vestido Midi (M)".
type LegacyItem struct {
	Text string
}

var legacyQuantityPrefix = regexp.MustCompile(`^\s*(\d+)\s*[xX]\s+`)

func (l LegacyItem) Description() string { return l.Text }

// Units reads the leading "<n>x" quantity when present.
func (l LegacyItem) Units() int {
	m := legacyQuantityPrefix.FindStringSubmatch(l.Text)
	if len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

func (LegacyItem) isOrderItem() {}

// StructuredItem is a priced line referencing a catalog product.
type StructuredItem struct {
	ProductID      string `json:"productId"`
	Name           string `json:"name"`
	Variant        string `json:"variant,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Image          string `json:"image,omitempty"`
}

func (s StructuredItem) Description() string {
	if s.Variant == "" {
		return fmt.Sprintf("%dx %s", s.Quantity, s.Name)
	}
	return fmt.Sprintf("%dx %s (%s)", s.Quantity, s.Name, s.Variant)
}

func (s StructuredItem) Units() int { return s.Quantity }

// LineTotalCents is quantity times unit price.
func (s StructuredItem) LineTotalCents() int64 {
	return int64(s.Quantity) * s.UnitPriceCents
}

func (StructuredItem) isOrderItem() {}

// OrderItems is stored as a JSON array mixing strings (legacy) and objects.
type OrderItems []OrderItem

// Structured returns only the structured lines.
func (items OrderItems) Structured() []StructuredItem {
	out := make([]StructuredItem, 0, len(items))
	for _, item := range items {
		if s, ok := item.(StructuredItem); ok {
			out = append(out, s)
		}
	}
	return out
}

// Summary joins every line description.
func (items OrderItems) Summary() string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, item.Description())
	}
	return strings.Join(parts, ", ")
}

func (items OrderItems) MarshalJSON() ([]byte, error) {
	raw := make([]any, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case LegacyItem:
			raw = append(raw, v.Text)
		case StructuredItem:
			raw = append(raw, v)
		default:
			return nil, fmt.Errorf("order items: unsupported item %T", item)
		}
	}
	return json.Marshal(raw)
}

func (items *OrderItems) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("order items: %w", err)
	}
	out := make(OrderItems, 0, len(raw))
	for i, elem := range raw {
		trimmed := bytes.TrimSpace(elem)
		if len(trimmed) == 0 {
			continue
		}
		switch trimmed[0] {
		case '"':
			var text string
			if err := json.Unmarshal(trimmed, &text); err != nil {
				return fmt.Errorf("order items[%d]: %w", i, err)
			}
			out = append(out, LegacyItem{Text: text})
		case '{':
			var s StructuredItem
			if err := json.Unmarshal(trimmed, &s); err != nil {
				return fmt.Errorf("order items[%d]: %w", i, err)
			}
			if s.Quantity <= 0 {
				s.Quantity = 1
			}
			out = append(out, s)
		default:
			return fmt.Errorf("order items[%d]: unexpected json %s", i, trimmed)
		}
	}
	*items = out
	return nil
}

func (items OrderItems) Value() (driver.Value, error) {
	if items == nil {
		items = OrderItems{}
	}
	b, err := items.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (items *OrderItems) Scan(src any) error {
	if src == nil {
		*items = OrderItems{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("order items: unsupported scan type %T", src)
	}
	return items.UnmarshalJSON(data)
}
