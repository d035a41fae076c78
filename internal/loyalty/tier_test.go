package loyalty

import (
	"testing"

	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
)

func TestTierForThresholds(t *testing.T) {
	th := DefaultThresholds()
	cases := map[int64]enums.LoyaltyTier{
		0:     enums.TierBronze,
		24900: enums.TierBronze,
		24999: enums.TierBronze,
		25000: enums.TierSilver,
		59999: enums.TierSilver,
		60000: enums.TierGold,
		99000: enums.TierGold,
	}
	for spent, want := range cases {
		if got := TierFor(spent, th); got != want {
			t.Fatalf("TierFor(%d) = %s, want %s", spent, got, want)
		}
	}
}

func TestPointsForFloorsWholeUnits(t *testing.T) {
	if got := PointsFor(25990, 1); got != 259 {
		t.Fatalf("expected 259 points, got %d", got)
	}
	if got := PointsFor(1999, 2); got != 39 {
		t.Fatalf("expected 39 points, got %d", got)
	}
	if got := PointsFor(99, 1); got != 0 {
		t.Fatalf("expected 0 points below one real, got %d", got)
	}
	if got := PointsFor(-500, 1); got != 0 {
		t.Fatalf("expected 0 points for negative totals, got %d", got)
	}
}
