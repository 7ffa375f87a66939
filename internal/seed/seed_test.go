package seed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/qatech/internal/actorcontext"
	"github.com/smallbiznis/qatech/internal/auth/password"
	"github.com/smallbiznis/qatech/internal/config"
	userdomain "github.com/smallbiznis/qatech/internal/user/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:seed_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&userdomain.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestEnsureAdminSkipsWhenUnset(t *testing.T) {
	conn := newTestDB(t)
	if err := EnsureAdmin(context.Background(), conn, config.BootstrapConfig{}, zap.NewNop()); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	var count int64
	conn.Model(&userdomain.User{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no users, got %d", count)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	conn := newTestDB(t)
	cfg := config.BootstrapConfig{AdminEmail: "Admin@Example.com", AdminPassword: "secret123"}

	for i := 0; i < 2; i++ {
		if err := EnsureAdmin(context.Background(), conn, cfg, zap.NewNop()); err != nil {
			t.Fatalf("ensure admin (run %d): %v", i, err)
		}
	}

	var users []userdomain.User
	if err := conn.Find(&users).Error; err != nil {
		t.Fatalf("load users: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	admin := users[0]
	if admin.Email != "admin@example.com" || admin.Role != actorcontext.RoleAdmin || !admin.IsActive {
		t.Fatalf("unexpected admin: %+v", admin)
	}
	if !password.Verify("secret123", admin.PasswordHash) {
		t.Fatalf("expected stored hash to verify")
	}
}

func TestEnsureAdminPromotesExistingUser(t *testing.T) {
	conn := newTestDB(t)
	now := time.Now().UTC()
	if err := conn.Create(&userdomain.User{
		ID: 7, Name: "Lan", Email: "lan@example.com", PasswordHash: "x",
		Role: actorcontext.RoleCustomer, IsActive: false, CreatedAt: now, UpdatedAt: now,
	}).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	cfg := config.BootstrapConfig{AdminEmail: "lan@example.com", AdminPassword: "secret123"}
	if err := EnsureAdmin(context.Background(), conn, cfg, zap.NewNop()); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	var user userdomain.User
	if err := conn.First(&user, 7).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user.Role != actorcontext.RoleAdmin || !user.IsActive {
		t.Fatalf("expected promoted admin, got role=%s active=%v", user.Role, user.IsActive)
	}
}
