package notifications

import (
	"fmt"
	"strings"

	"github.com/vitrine-commerce/vitrine-backend/pkg/money"
	"github.com/vitrine-commerce/vitrine-backend/pkg/outbox/payloads"
)

var markdownEscaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

// escapeMarkdown protects shopper-provided text from Telegram's legacy
// Markdown parser.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatOrderMessage renders the shop owner's Telegram summary of a new order.
func FormatOrderMessage(o payloads.OrderCreatedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Novo pedido %s*\n", escapeMarkdown(o.OrderID))
	fmt.Fprintf(&b, "Cliente: %s\n", escapeMarkdown(o.CustomerName))
	fmt.Fprintf(&b, "Email: %s\n", escapeMarkdown(o.CustomerEmail))
	if o.CustomerPhone != "" {
		fmt.Fprintf(&b, "Telefone: %s\n", escapeMarkdown(o.CustomerPhone))
	}
	if o.ShippingAddress != "" {
		fmt.Fprintf(&b, "Endereço: %s\n", escapeMarkdown(o.ShippingAddress))
	}

	b.WriteString("\n*Itens*\n")
	for _, line := range o.Items {
		if line.LineTotalCents > 0 {
			fmt.Fprintf(&b, "• %s - %s\n", escapeMarkdown(line.Description), money.FormatBRL(line.LineTotalCents))
			continue
		}
		fmt.Fprintf(&b, "• %s\n", escapeMarkdown(line.Description))
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Subtotal: %s\n", money.FormatBRL(o.SubtotalCents))
	if o.DiscountCents > 0 {
		label := "Desconto"
		if o.CouponCode != "" {
			label = fmt.Sprintf("Desconto (%s)", escapeMarkdown(o.CouponCode))
		}
		fmt.Fprintf(&b, "%s: -%s\n", label, money.FormatBRL(o.DiscountCents))
	}
	fmt.Fprintf(&b, "*Total: %s*\n", money.FormatBRL(o.TotalCents))
	fmt.Fprintf(&b, "Pagamento: %s via %s", escapeMarkdown(o.PaymentMethod), escapeMarkdown(o.PaymentChannel))
	return b.String()
}

// FormatStatusMessage renders a one-line status change notice.
func FormatStatusMessage(e payloads.OrderStatusChangedEvent) string {
	msg := fmt.Sprintf("Pedido *%s*: %s → %s", escapeMarkdown(e.OrderID), escapeMarkdown(e.From), escapeMarkdown(e.To))
	if e.TrackingNumber != "" {
		msg += fmt.Sprintf("\nRastreio: `%s`", strings.ReplaceAll(e.TrackingNumber, "`", ""))
	}
	if e.StockRestocked {
		msg += "\nEstoque devolvido ao inventário."
	}
	return msg
}

// HandoffText is the plain-text order summary prefilled in the shopper's
// WhatsApp or Telegram chat with the shop.
func HandoffText(o payloads.OrderCreatedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá! Acabei de fazer o pedido %s.\n", o.OrderID)
	for _, line := range o.Items {
		fmt.Fprintf(&b, "- %s\n", line.Description)
	}
	fmt.Fprintf(&b, "Total: %s\n", money.FormatBRL(o.TotalCents))
	fmt.Fprintf(&b, "Pagamento: %s", o.PaymentMethod)
	return b.String()
}
