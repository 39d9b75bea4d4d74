package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module owns the database connection and the repository.
type Module struct {
	dbPath string
	db     *gorm.DB
	repo   *Repository
}

// Compile-time interface checks
var _ mono.Module = (*Module)(nil)

// NewModule creates a new storage module backed by a SQLite file.
func NewModule(dbPath string) *Module {
	return &Module{dbPath: dbPath}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "storage"
}

// Init opens the database and migrates the schema.
func (m *Module) Init(_ mono.ServiceContainer) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	m.db = db
	m.repo = NewRepository(db)
	log.Printf("[storage] Database ready at %s", m.dbPath)
	return nil
}

// Start starts the module (no-op; the connection is opened in Init).
func (m *Module) Start(_ context.Context) error {
	return nil
}

// Stop closes the underlying database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access database handle: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	log.Println("[storage] Database closed")
	return nil
}

// Repository returns the repository instance.
func (m *Module) Repository() *Repository {
	return m.repo
}
