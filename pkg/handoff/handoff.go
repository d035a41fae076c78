// Package handoff builds the chat deep links a shopper follows to finish
// payment with the store attendant.
package handoff

import (
	"net/url"
	"strings"

	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
)

const (
	whatsAppBase = "https://wa.me/"
	telegramBase = "https://t.me/"
)

// WhatsAppURL returns a wa.me link to phone with text prefilled. Non-digit
// characters in phone are dropped.
func WhatsAppURL(phone, text string) (string, error) {
	digits := digitsOnly(phone)
	if digits == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "whatsapp handoff phone not configured")
	}
	link := whatsAppBase + digits
	if text != "" {
		link += "?text=" + url.QueryEscape(text)
	}
	return link, nil
}

// TelegramURL returns a t.me link to username with text prefilled. A leading
// @ on username is accepted.
func TelegramURL(username, text string) (string, error) {
	name := strings.TrimPrefix(strings.TrimSpace(username), "@")
	if name == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "telegram handoff username not configured")
	}
	link := telegramBase + url.PathEscape(name)
	if text != "" {
		link += "?text=" + url.QueryEscape(text)
	}
	return link, nil
}

// Config names the store's chat accounts.
type Config struct {
	WhatsAppPhone    string
	TelegramUsername string
}

// Link picks the builder for channel.
func (c Config) Link(channel enums.HandoffChannel, text string) (string, error) {
	switch channel {
	case enums.HandoffWhatsApp:
		return WhatsAppURL(c.WhatsAppPhone, text)
	case enums.HandoffTelegram:
		return TelegramURL(c.TelegramUsername, text)
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported handoff channel").
			WithDetails(map[string]any{"channel": string(channel)})
	}
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
