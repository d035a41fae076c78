package enums

import "fmt"

// LoyaltyTier is the customer tier derived from lifetime spend.
type LoyaltyTier string

const (
	TierBronze LoyaltyTier = "Bronze"
	TierSilver LoyaltyTier = "Prata"
	TierGold   LoyaltyTier = "Ouro"
)

var validLoyaltyTiers = []LoyaltyTier{TierBronze, TierSilver, TierGold}

func (t LoyaltyTier) String() string {
	return string(t)
}

func (t LoyaltyTier) IsValid() bool {
	for _, candidate := range validLoyaltyTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

func ParseLoyaltyTier(value string) (LoyaltyTier, error) {
	for _, candidate := range validLoyaltyTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid loyalty tier %q", value)
}
