package loyalty

import (
	"github.com/shopspring/decimal"

	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	"github.com/vitrine-commerce/vitrine-backend/pkg/money"
)

const (
	DefaultSilverThresholdCents int64 = 25000
	DefaultGoldThresholdCents   int64 = 60000
)

// Thresholds are lifetime spend boundaries in cents. Each is inclusive.
type Thresholds struct {
	SilverCents int64
	GoldCents   int64
}

func DefaultThresholds() Thresholds {
	return Thresholds{SilverCents: DefaultSilverThresholdCents, GoldCents: DefaultGoldThresholdCents}
}

// TierFor maps lifetime spend to a tier.
func TierFor(totalSpentCents int64, th Thresholds) enums.LoyaltyTier {
	switch {
	case totalSpentCents >= th.GoldCents:
		return enums.TierGold
	case totalSpentCents >= th.SilverCents:
		return enums.TierSilver
	default:
		return enums.TierBronze
	}
}

// PointsFor awards pointsPerUnit points per whole real of totalCents, rounded down.
func PointsFor(totalCents, pointsPerUnit int64) int64 {
	if totalCents <= 0 || pointsPerUnit <= 0 {
		return 0
	}
	return money.FromCents(totalCents).
		Mul(decimal.NewFromInt(pointsPerUnit)).
		Floor().
		IntPart()
}
