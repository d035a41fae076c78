package loyalty

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/enums"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
	"github.com/vitrine-commerce/vitrine-backend/pkg/types"
)

var reconcileTime = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := "file:loyalty_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	svc, err := NewService(db.Wrap(conn), NewRepository(conn), Config{Thresholds: DefaultThresholds(), PointsPerUnit: 1}, nil)
	require.NoError(t, err)
	svc.now = func() time.Time { return reconcileTime }
	return svc, conn
}

func seedUser(t *testing.T, conn *gorm.DB, id, email string) {
	t.Helper()
	require.NoError(t, conn.Create(&models.User{ID: id, Email: email, Name: "Cliente", Tier: enums.TierBronze}).Error)
}

var orderSeq int

func seedOrder(t *testing.T, conn *gorm.DB, userID *string, email string, status enums.OrderStatus, total int64) string {
	t.Helper()
	orderSeq++
	id := fmt.Sprintf("VT-260401-%06d", orderSeq)
	order := models.Order{
		ID:             id,
		UserID:         userID,
		CustomerEmail:  email,
		Status:         status,
		Items:          types.OrderItems{types.LegacyItem{Text: "1x Blusa Seda"}},
		ShippingInfo:   types.ShippingInfo{Name: "Cliente", Email: email},
		PaymentChannel: enums.HandoffWhatsApp,
		PaymentMethod:  enums.PaymentMethodPix,
		SubtotalCents:  total,
		TotalCents:     total,
	}
	require.NoError(t, conn.Create(&order).Error)
	return id
}

func strPtr(v string) *string { return &v }

func TestReconcileAwardsDeliveredOrdersOnce(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	seedUser(t, conn, "uid-1", "ana@example.com")
	seedOrder(t, conn, strPtr("uid-1"), "ana@example.com", enums.OrderStatusDelivered, 25990)
	seedOrder(t, conn, strPtr("uid-1"), "ana@example.com", enums.OrderStatusShipped, 10000)

	first, err := svc.Reconcile(ctx, "uid-1")
	require.NoError(t, err)
	require.Equal(t, int64(259), first.LoyaltyPoints)
	require.Equal(t, 1, first.AwardedOrders)
	require.Equal(t, int64(35990), first.TotalSpentCents)
	require.Equal(t, enums.TierSilver, first.Tier)

	second, err := svc.Reconcile(ctx, "uid-1")
	require.NoError(t, err)
	require.Equal(t, int64(259), second.LoyaltyPoints)
	require.Equal(t, 0, second.AwardedOrders)

	var entries int64
	require.NoError(t, conn.Model(&models.PointsEntry{}).Where("user_id = ?", "uid-1").Count(&entries).Error)
	require.Equal(t, int64(1), entries)

	var user models.User
	require.NoError(t, conn.First(&user, "id = ?", "uid-1").Error)
	require.Equal(t, int64(259), user.LoyaltyPoints)
	require.NotNil(t, user.LastReconciledAt)
}

func TestReconcileSkipsAwardWhenLedgerAlreadyHasIt(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	seedUser(t, conn, "uid-2", "bia@example.com")
	orderID := seedOrder(t, conn, strPtr("uid-2"), "bia@example.com", enums.OrderStatusDelivered, 5000)

	// The flag was lost but the ledger row survived.
	require.NoError(t, conn.Create(&models.PointsEntry{UserID: "uid-2", OrderID: &orderID, Reason: enums.PointsOrderDelivered, Points: 50}).Error)

	standing, err := svc.Reconcile(ctx, "uid-2")
	require.NoError(t, err)
	require.Equal(t, int64(50), standing.LoyaltyPoints)
	require.Equal(t, 0, standing.AwardedOrders)

	var order models.Order
	require.NoError(t, conn.First(&order, "id = ?", orderID).Error)
	require.True(t, order.PointsAwarded)
}

func TestReconcileClaimsGuestOrdersByEmail(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	seedUser(t, conn, "uid-3", "carla@example.com")
	guestID := seedOrder(t, conn, nil, "Carla@Example.com", enums.OrderStatusPaid, 60000)
	seedOrder(t, conn, nil, "outra@example.com", enums.OrderStatusPaid, 90000)
	seedOrder(t, conn, strPtr("uid-3"), "carla@example.com", enums.OrderStatusCanceled, 80000)

	standing, err := svc.Reconcile(ctx, "uid-3")
	require.NoError(t, err)
	require.Equal(t, int64(1), standing.ClaimedOrders)
	require.Equal(t, int64(60000), standing.TotalSpentCents)
	require.Equal(t, enums.TierGold, standing.Tier)

	var order models.Order
	require.NoError(t, conn.First(&order, "id = ?", guestID).Error)
	require.NotNil(t, order.UserID)
	require.Equal(t, "uid-3", *order.UserID)
}

func TestReconcileUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Reconcile(context.Background(), "ghost")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAddSpendMovesTier(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	seedUser(t, conn, "uid-4", "dani@example.com")

	tier, err := svc.AddSpend(ctx, "uid-4", 24900)
	require.NoError(t, err)
	require.Equal(t, enums.TierBronze, tier)

	tier, err = svc.AddSpend(ctx, "uid-4", 100)
	require.NoError(t, err)
	require.Equal(t, enums.TierSilver, tier)

	_, err = svc.AddSpend(ctx, "missing", 100)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestHistoryNewestFirst(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	seedUser(t, conn, "uid-5", "eva@example.com")
	older := models.PointsEntry{UserID: "uid-5", Reason: enums.PointsAdjustment, Points: 10, CreatedAt: reconcileTime.Add(-time.Hour)}
	newer := models.PointsEntry{UserID: "uid-5", OrderID: strPtr("VT-1"), Reason: enums.PointsOrderDelivered, Points: 90, CreatedAt: reconcileTime}
	require.NoError(t, conn.Create(&older).Error)
	require.NoError(t, conn.Create(&newer).Error)

	entries, err := svc.History(ctx, "uid-5", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(90), entries[0].Points)
	require.Equal(t, enums.PointsAdjustment, entries[1].Reason)
}

func TestPendingAwardsListsUncreditedUsers(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	seedUser(t, conn, "uid-a", "a@example.com")
	seedUser(t, conn, "uid-b", "b@example.com")
	seedOrder(t, conn, strPtr("uid-a"), "a@example.com", enums.OrderStatusDelivered, 1000)
	seedOrder(t, conn, strPtr("uid-a"), "a@example.com", enums.OrderStatusDelivered, 2000)
	seedOrder(t, conn, strPtr("uid-b"), "b@example.com", enums.OrderStatusShipped, 1000)
	seedOrder(t, conn, nil, "guest@example.com", enums.OrderStatusDelivered, 1000)

	ids, err := svc.PendingAwards(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"uid-a"}, ids)

	_, err = svc.Reconcile(ctx, "uid-a")
	require.NoError(t, err)
	ids, err = svc.PendingAwards(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, ids)
}
