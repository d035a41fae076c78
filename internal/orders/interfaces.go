package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/internal/inventory"
	"github.com/vitrine-commerce/vitrine-backend/internal/reservation"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	"github.com/vitrine-commerce/vitrine-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	LockByID(ctx context.Context, id string) (*models.Order, error)
	ListForUser(ctx context.Context, userID string, params pagination.Params) ([]models.Order, error)
	ListAll(ctx context.Context, params pagination.Params, filters AdminOrderFilters) ([]models.Order, error)
	Update(ctx context.Context, id string, updates map[string]any) error
}

// InventoryLedger moves stock between inventory batches and orders.
type InventoryLedger interface {
	Deduct(ctx context.Context, tx *gorm.DB, input inventory.DeductInput) ([]inventory.Allocation, error)
	ReverseOrder(ctx context.Context, tx *gorm.DB, orderID string) (int, error)
	SyncPublicStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*inventory.StockSnapshot, error)
}

// StockAllocations releases the stock claimed for an order at checkout.
// Empty keys release every line.
type StockAllocations interface {
	ReleaseOrder(ctx context.Context, tx *gorm.DB, orderID string, keys ...reservation.LineKey) (int64, error)
}

// Service defines order reads and the admin lifecycle.
type Service interface {
	Get(ctx context.Context, id string, viewer Viewer) (*OrderDTO, error)
	ListForUser(ctx context.Context, userID string, params pagination.Params) (*OrderList, error)
	ListAll(ctx context.Context, params pagination.Params, filters AdminOrderFilters) (*OrderList, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error)
	SetTracking(ctx context.Context, input SetTrackingInput) (*OrderDTO, error)
}
