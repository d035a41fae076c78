package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
	"github.com/vitrine-commerce/vitrine-backend/pkg/types"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := "file:users_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, conn
}

func TestEnsureUserCreatesThenRefreshes(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	user, err := svc.EnsureUser(ctx, Identity{UserID: "uid-1", Email: " Ana@Example.com ", Name: "Ana"})
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if user.Email != "ana@example.com" || user.Tier != "Bronze" {
		t.Fatalf("unexpected user %+v", user)
	}

	if err := conn.Model(&models.User{}).Where("id = ?", "uid-1").Update("loyalty_points", 40).Error; err != nil {
		t.Fatalf("seed points: %v", err)
	}
	user, err = svc.EnsureUser(ctx, Identity{UserID: "uid-1", Email: "ana@example.com", Name: "Ana Souza"})
	if err != nil {
		t.Fatalf("ensure user again: %v", err)
	}
	if user.Name != "Ana Souza" || user.LoyaltyPoints != 40 {
		t.Fatalf("expected name refresh and points kept, got %+v", user)
	}
}

func TestEnsureUserRequiresEmail(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.EnsureUser(context.Background(), Identity{UserID: "uid"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateProfileStoresAddresses(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.EnsureUser(ctx, Identity{UserID: "uid-2", Email: "bia@example.com"}); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	phone := "+55 11 90000-0000"
	addresses := []types.Address{{Label: "Casa", Street: "Rua A", Number: "10", City: "São Paulo", State: "SP", PostalCode: "01000-000"}}
	user, err := svc.UpdateProfile(ctx, "uid-2", UpdateProfileInput{Phone: &phone, Addresses: &addresses})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if user.Phone == nil || *user.Phone != phone {
		t.Fatalf("unexpected phone %v", user.Phone)
	}
	if len(user.Addresses) != 1 || user.Addresses[0].City != "São Paulo" {
		t.Fatalf("unexpected addresses %+v", user.Addresses)
	}
}
