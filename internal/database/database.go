// Пакет database - пул pgx, миграции golang-migrate из встроенных SQL-файлов
// и readiness-проверка PostgreSQL.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/dataviz/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const pingTimeout = 3 * time.Second

// Connect открывает пул и проверяет соединение ping-запросом.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("разбор DSN: %w", err)
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "dataviz"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("PostgreSQL %s:%d недоступен: %w", cfg.DBHost, cfg.DBPort, err)
	}

	logger.Info("Подключение к PostgreSQL установлено",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
		slog.Int("max_conns", int(poolCfg.MaxConns)),
	)
	return pool, nil
}

// withMigrator открывает мигратор над встроенными файлами и закрывает его после fn.
func withMigrator(cfg *config.Config, fn func(m *migrate.Migrate) error) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("источник миграций: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("инициализация миграций: %w", err)
	}
	defer m.Close()

	return fn(m)
}

func logVersion(m *migrate.Migrate, logger *slog.Logger, msg string) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info(msg, slog.String("version", "none"))
		return
	}
	logger.Info(msg, slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
}

// Migrate применяет все миграции. Отсутствие новых миграций не ошибка.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	return withMigrator(cfg, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("применение миграций: %w", err)
		}
		logVersion(m, logger, "Миграции применены")
		return nil
	})
}

// MigrateDown откатывает steps последних миграций.
func MigrateDown(cfg *config.Config, steps int, logger *slog.Logger) error {
	if steps < 1 {
		return fmt.Errorf("число шагов отката должно быть положительным: %d", steps)
	}
	return withMigrator(cfg, func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("откат миграций: %w", err)
		}
		logVersion(m, logger, "Миграции откачены")
		return nil
	})
}

// ReadinessChecker пингует пул для /health/ready.
type ReadinessChecker struct {
	pool *pgxpool.Pool
}

func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{pool: pool}
}

func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := c.pool.Ping(ctx); err != nil {
		return "fail", "PostgreSQL недоступен: " + err.Error()
	}
	stat := c.pool.Stat()
	return "ok", fmt.Sprintf("соединений: %d/%d", stat.AcquiredConns(), stat.MaxConns())
}
