package handoff

import (
	"strings"
	"testing"

	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
)

func TestWhatsAppURLStripsFormatting(t *testing.T) {
	link, err := WhatsAppURL("+55 (11) 98888-7777", "Pedido VT-1 & total")
	if err != nil {
		t.Fatalf("whatsapp url: %v", err)
	}
	if !strings.HasPrefix(link, "https://wa.me/5511988887777?text=") {
		t.Fatalf("unexpected link %q", link)
	}
	if !strings.Contains(link, "Pedido+VT-1+%26+total") {
		t.Fatalf("expected escaped text, got %q", link)
	}
}

func TestTelegramURLAcceptsAtPrefix(t *testing.T) {
	link, err := TelegramURL("@vitrine_loja", "")
	if err != nil {
		t.Fatalf("telegram url: %v", err)
	}
	if link != "https://t.me/vitrine_loja" {
		t.Fatalf("unexpected link %q", link)
	}
}

func TestLinkRequiresConfiguredAccount(t *testing.T) {
	cfg := Config{TelegramUsername: "loja"}
	if _, err := cfg.Link(enums.HandoffWhatsApp, "x"); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if _, err := cfg.Link(enums.HandoffChannel("sms"), "x"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	link, err := cfg.Link(enums.HandoffTelegram, "oi")
	if err != nil || link != "https://t.me/loja?text=oi" {
		t.Fatalf("unexpected link %q err %v", link, err)
	}
}
