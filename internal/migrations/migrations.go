// Package migrations применяет схему БД из встроенных SQL-файлов
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed all:migrations
var migrationsFS embed.FS

// Migrator управляет миграциями базы данных
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New создаёт мигратор для заданного database URL
func New(databaseURL string, logger *zap.Logger) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Migrator{migrate: m, logger: logger}, nil
}

// Up применяет все недостающие миграции
func (m *Migrator) Up() error {
	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("Схема БД уже актуальна")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, _, _ := m.migrate.Version()
	m.logger.Info("Миграции применены", zap.Uint("version", version))
	return nil
}

// Close закрывает мигратор и его соединение с БД
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return sourceErr
	}
	return dbErr
}
