package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
)

var now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func TestEvaluateRules(t *testing.T) {
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name     string
		coupon   models.Coupon
		subtotal int64
		discount int64
		code     pkgerrors.Code
	}{
		{name: "percentage rounds half up", coupon: models.Coupon{Code: "DEZ", Type: enums.CouponPercentage, Value: 10, IsActive: true}, subtotal: 12345, discount: 1235},
		{name: "fixed capped at subtotal", coupon: models.Coupon{Code: "CEM", Type: enums.CouponFixed, Value: 10000, IsActive: true}, subtotal: 4000, discount: 4000},
		{name: "inactive", coupon: models.Coupon{Code: "OFF", Type: enums.CouponFixed, Value: 100}, subtotal: 4000, code: pkgerrors.CodeValidation},
		{name: "expired", coupon: models.Coupon{Code: "OLD", Type: enums.CouponFixed, Value: 100, IsActive: true, ExpiresAt: &past}, subtotal: 4000, code: pkgerrors.CodeValidation},
		{name: "not yet expired", coupon: models.Coupon{Code: "NEW", Type: enums.CouponFixed, Value: 100, IsActive: true, ExpiresAt: &future}, subtotal: 4000, discount: 100},
		{name: "below minimum", coupon: models.Coupon{Code: "MIN", Type: enums.CouponFixed, Value: 100, IsActive: true, MinPurchaseCents: 5000}, subtotal: 4999, code: pkgerrors.CodeValidation},
		{name: "exhausted", coupon: models.Coupon{Code: "MAX", Type: enums.CouponFixed, Value: 100, IsActive: true, MaxUses: 2, UsageCount: 2}, subtotal: 4000, code: pkgerrors.CodeValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quote, err := Evaluate(tc.coupon, tc.subtotal, now)
			if tc.code != "" {
				assert.True(t, pkgerrors.IsCode(err, tc.code), "expected %s, got %v", tc.code, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.discount, quote.DiscountCents)
			assert.Equal(t, tc.subtotal-tc.discount, quote.TotalCents)
		})
	}
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := "file:coupons_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	svc.now = func() time.Time { return now }
	return svc, conn
}

func TestCreateValidateAndRedeem(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateCouponInput{Code: "bemvinda", Type: "percentage", Value: 15, MaxUses: 1, IsActive: true})
	require.NoError(t, err)

	quote, err := svc.Validate(ctx, " BemVinda ", 20000)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), quote.DiscountCents)
	assert.Equal(t, "BEMVINDA", quote.Code)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Redeem(ctx, tx, "bemvinda", 20000)
		return err
	}))

	err = conn.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Redeem(ctx, tx, "bemvinda", 20000)
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "second redeem should hit usage limit: %v", err)

	var coupon models.Coupon
	require.NoError(t, conn.First(&coupon, "code = ?", "BEMVINDA").Error)
	assert.Equal(t, 1, coupon.UsageCount)
}

func TestCreateRejectsDuplicatesAndBadPercent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateCouponInput{Code: "FRETE", Type: "fixed", Value: 1500, IsActive: true})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateCouponInput{Code: "frete", Type: "fixed", Value: 1500})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	_, err = svc.Create(ctx, CreateCouponInput{Code: "TUDO", Type: "percentage", Value: 150})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestValidateUnknownAndSetActive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Validate(ctx, "NADA", 1000)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = svc.Create(ctx, CreateCouponInput{Code: "PAUSA", Type: "fixed", Value: 100, IsActive: true})
	require.NoError(t, err)
	require.NoError(t, svc.SetActive(ctx, "pausa", false))

	_, err = svc.Validate(ctx, "PAUSA", 1000)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	assert.True(t, pkgerrors.IsCode(svc.SetActive(ctx, "NADA", true), pkgerrors.CodeNotFound))
}
