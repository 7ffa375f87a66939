package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/qatech/internal/audit/domain"
	authdomain "github.com/smallbiznis/qatech/internal/auth/domain"
	cartdomain "github.com/smallbiznis/qatech/internal/cart/domain"
	orderdomain "github.com/smallbiznis/qatech/internal/order/domain"
	paymentdomain "github.com/smallbiznis/qatech/internal/payment/domain"
	productdomain "github.com/smallbiznis/qatech/internal/product/domain"
	reviewdomain "github.com/smallbiznis/qatech/internal/review/domain"
	userdomain "github.com/smallbiznis/qatech/internal/user/domain"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

// Models lists every table owned by the application, parents first.
func Models() []any {
	return []any{
		&userdomain.User{},
		&authdomain.PasswordReset{},
		&productdomain.Product{},
		&productdomain.Specification{},
		&productdomain.Image{},
		&orderdomain.Order{},
		&orderdomain.StatusEntry{},
		&paymentdomain.EventRecord{},
		&reviewdomain.Review{},
		&cartdomain.Session{},
		&auditdomain.AuditLog{},
	}
}

// AutoMigrate builds the schema from the models. Used for sqlite, mysql and tests.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	return db.AutoMigrate(Models()...)
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
