package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/dormitory/internal/audit/domain"
	fridgedomain "github.com/smallbiznis/dormitory/internal/fridge/domain"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// activeAssignmentIndex keeps at most one active row per (room, compartment) on
// dialects without golang-migrate support that still have partial indexes.
// The sqlite migrator re-parses stored index DDL on every AutoMigrate, so the
// statement stays on one line and without IF NOT EXISTS.
const (
	activeAssignmentIndexName = "ux_room_compartment_assignments_active"
	activeAssignmentIndex     = "CREATE UNIQUE INDEX " + activeAssignmentIndexName + " ON room_compartment_assignments (room_id, compartment_id) WHERE revoked_at IS NULL"
)

// Migrate brings the schema up to date. Postgres runs the embedded SQL
// migrations; other dialects fall back to AutoMigrate of the models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	switch conn.Dialector.Name() {
	case "postgres":
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	default:
		return autoMigrate(conn)
	}
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	src, err := newSource()
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
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

func newSource() (source.Driver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return src, nil
}

func autoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&fridgedomain.FridgeUnit{},
		&fridgedomain.FridgeCompartment{},
		&fridgedomain.Room{},
		&fridgedomain.RoomCompartmentAssignment{},
		&auditdomain.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if conn.Dialector.Name() == "sqlite" && !conn.Migrator().HasIndex(&fridgedomain.RoomCompartmentAssignment{}, activeAssignmentIndexName) {
		if err := conn.Exec(activeAssignmentIndex).Error; err != nil {
			return fmt.Errorf("create active assignment index: %w", err)
		}
	}
	return nil
}
