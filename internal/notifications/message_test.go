package notifications

import (
	"strings"
	"testing"
	"time"

	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox/payloads"
)

func sampleOrder() payloads.OrderCreatedEvent {
	return payloads.OrderCreatedEvent{
		OrderID:         "VT-260310-AB12CD",
		CustomerName:    "Ana_Souza",
		CustomerEmail:   "ana@example.com",
		CustomerPhone:   "11999990000",
		ShippingAddress: "Rua A, 10 - São Paulo/SP - 01000-000",
		Items: []payloads.OrderLine{
			{Description: "2x Vestido Midi (M)", Units: 2, LineTotalCents: 31980},
			{Description: "1x Bolsa *Couro*", Units: 1},
		},
		SubtotalCents:  31980,
		DiscountCents:  3198,
		TotalCents:     28782,
		CouponCode:     "BEMVINDA10",
		PaymentChannel: "whatsapp",
		PaymentMethod:  "pix",
		CreatedAt:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestFormatOrderMessage(t *testing.T) {
	msg := FormatOrderMessage(sampleOrder())

	for _, want := range []string{
		"*Novo pedido VT-260310-AB12CD*",
		`Cliente: Ana\_Souza`,
		"• 2x Vestido Midi (M) - R$ 319,80",
		`• 1x Bolsa \*Couro\*`,
		"Subtotal: R$ 319,80",
		"Desconto (BEMVINDA10): -R$ 31,98",
		"*Total: R$ 287,82*",
		"Pagamento: pix via whatsapp",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatOrderMessageWithoutDiscount(t *testing.T) {
	order := sampleOrder()
	order.DiscountCents = 0
	order.CouponCode = ""
	if strings.Contains(FormatOrderMessage(order), "Desconto") {
		t.Fatal("expected no discount line")
	}
}

func TestFormatStatusMessage(t *testing.T) {
	msg := FormatStatusMessage(payloads.OrderStatusChangedEvent{OrderID: "VT-1", From: "Pago", To: "Enviado", TrackingNumber: "BR123BR"})
	if !strings.Contains(msg, "Pago → Enviado") || !strings.Contains(msg, "`BR123BR`") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestHandoffText(t *testing.T) {
	text := HandoffText(sampleOrder())
	if !strings.HasPrefix(text, "Olá! Acabei de fazer o pedido VT-260310-AB12CD.") {
		t.Fatalf("unexpected prefix %q", text)
	}
	if !strings.Contains(text, "Total: R$ 287,82") {
		t.Fatalf("missing total in %q", text)
	}
}
