package enums

import "fmt"

// HandoffChannel is the messaging app the shopper finishes the purchase in.
type HandoffChannel string

const (
	HandoffWhatsApp HandoffChannel = "whatsapp"
	HandoffTelegram HandoffChannel = "telegram"
)

var validHandoffChannels = []HandoffChannel{HandoffWhatsApp, HandoffTelegram}

func (c HandoffChannel) String() string {
	return string(c)
}

func (c HandoffChannel) IsValid() bool {
	for _, candidate := range validHandoffChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseHandoffChannel(value string) (HandoffChannel, error) {
	for _, candidate := range validHandoffChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid handoff channel %q", value)
}

// PaymentMethod is how the shopper intends to pay once in the chat.
type PaymentMethod string

const (
	PaymentMethodPix    PaymentMethod = "pix"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodBoleto PaymentMethod = "boleto"
	PaymentMethodCash   PaymentMethod = "cash"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodPix,
	PaymentMethodCard,
	PaymentMethodBoleto,
	PaymentMethodCash,
}

func (m PaymentMethod) String() string {
	return string(m)
}

func (m PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
