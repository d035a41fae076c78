package coupons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
	"github.com/vitrine-commerce/vitrine-backend/pkg/money"
)

// Quote is the result of applying a coupon to a subtotal.
type Quote struct {
	Code          string `json:"code"`
	SubtotalCents int64  `json:"subtotal_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TotalCents    int64  `json:"total_cents"`
}

type CreateCouponInput struct {
	Code             string     `json:"code" validate:"required,max=40,alphanum"`
	Type             string     `json:"type" validate:"required,oneof=percentage fixed"`
	Value            int64      `json:"value" validate:"gt=0"`
	MinPurchaseCents int64      `json:"min_purchase_cents" validate:"gte=0"`
	MaxUses          int        `json:"max_uses" validate:"gte=0"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	IsActive         bool       `json:"is_active"`
}

type Service struct {
	repo *Repository
	now  func() time.Time
}

func NewService(repo *Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &Service{repo: repo, now: time.Now}, nil
}

// NormalizeCode trims and upper-cases a shopper-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate quotes the discount the coupon gives on subtotal without consuming it.
func (s *Service) Validate(ctx context.Context, code string, subtotalCents int64) (*Quote, error) {
	coupon, err := s.load(ctx, s.repo, code)
	if err != nil {
		return nil, err
	}
	return Evaluate(*coupon, subtotalCents, s.now())
}

// Redeem re-validates the coupon inside tx and consumes one use.
func (s *Service) Redeem(ctx context.Context, tx *gorm.DB, code string, subtotalCents int64) (*Quote, error) {
	repo := s.repo.WithTx(tx)
	coupon, err := s.load(ctx, repo, code)
	if err != nil {
		return nil, err
	}
	quote, err := Evaluate(*coupon, subtotalCents, s.now())
	if err != nil {
		return nil, err
	}
	ok, err := repo.IncrementUsage(ctx, coupon.Code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment coupon usage")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon usage limit reached")
	}
	return quote, nil
}

func (s *Service) load(ctx context.Context, repo *Repository, code string) (*models.Coupon, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	coupon, err := repo.FindByCode(ctx, normalized)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	return coupon, nil
}

// Evaluate applies the coupon rules to subtotal at now.
func Evaluate(coupon models.Coupon, subtotalCents int64, now time.Time) (*Quote, error) {
	if !coupon.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon is not active")
	}
	if coupon.ExpiresAt != nil && !now.Before(*coupon.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon expired")
	}
	if coupon.MaxUses > 0 && coupon.UsageCount >= coupon.MaxUses {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon usage limit reached")
	}
	if subtotalCents < coupon.MinPurchaseCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subtotal below coupon minimum").
			WithDetails(map[string]any{"min_purchase_cents": coupon.MinPurchaseCents})
	}

	var discount int64
	switch coupon.Type {
	case enums.CouponPercentage:
		discount = money.Percent(subtotalCents, coupon.Value)
	case enums.CouponFixed:
		discount = coupon.Value
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unknown coupon type")
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	return &Quote{
		Code:          coupon.Code,
		SubtotalCents: subtotalCents,
		DiscountCents: discount,
		TotalCents:    subtotalCents - discount,
	}, nil
}

func (s *Service) Create(ctx context.Context, input CreateCouponInput) (*models.Coupon, error) {
	couponType, err := enums.ParseCouponType(input.Type)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coupon type")
	}
	if couponType == enums.CouponPercentage && input.Value > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage coupons cannot exceed 100")
	}
	coupon := &models.Coupon{
		Code:             NormalizeCode(input.Code),
		Type:             couponType,
		Value:            input.Value,
		MinPurchaseCents: input.MinPurchaseCents,
		MaxUses:          input.MaxUses,
		ExpiresAt:        input.ExpiresAt,
		IsActive:         input.IsActive,
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	return coupon, nil
}

func (s *Service) List(ctx context.Context) ([]models.Coupon, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	return rows, nil
}

func (s *Service) SetActive(ctx context.Context, code string, active bool) error {
	ok, err := s.repo.SetActive(ctx, NormalizeCode(code), active)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update coupon")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	return nil
}
