// dephealth.go - мониторинг зависимостей через topologymetrics SDK.
//
// Зависимости dataviz:
//   - PostgreSQL - SQL checker через существующий pgxpool (critical)
//   - API языковой модели - HTTP checker (не critical: без него не работает только чат-бот)
//
// Метрики публикуются на /metrics вместе с остальными:
//   - app_dependency_health
//   - app_dependency_latency_seconds
//   - app_dependency_status
//   - app_dependency_status_detail
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для API модели
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// llmDependencyName - имя зависимости API языковой модели в метриках.
const llmDependencyName = "llm-api"

// DephealthService - сервис мониторинга зависимостей.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга. Метрики - в глобальном registry.
//
// Параметры:
//   - serviceID - имя вершины графа (dataviz)
//   - group - группа в метриках (DV_DEPHEALTH_GROUP)
//   - db - *sql.DB из stdlib.OpenDBFromPool(); nil - PostgreSQL не мониторится
//   - pgConnURL - URL PostgreSQL без пароля, только для лейблов
//   - llmURL, llmHealthPath - адрес API языковой модели и путь проверки
//   - checkInterval - интервал проверок (DV_DEPHEALTH_CHECK_INTERVAL)
func NewDephealthService(
	serviceID string,
	group string,
	db *sql.DB,
	pgConnURL string,
	llmURL string,
	llmHealthPath string,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, db, pgConnURL, llmURL, llmHealthPath, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer - то же с заданным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	db *sql.DB,
	pgConnURL string,
	llmURL string,
	llmHealthPath string,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, db, pgConnURL, llmURL, llmHealthPath, checkInterval, logger,
		dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	serviceID string,
	group string,
	db *sql.DB,
	pgConnURL string,
	llmURL string,
	llmHealthPath string,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	if llmHealthPath == "" {
		llmHealthPath = "/"
	}

	opts := []dephealth.Option{dephealth.WithLogger(logger)}
	if db != nil {
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(db)),
			dephealth.FromURL(pgConnURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		))
	}
	opts = append(opts, dephealth.HTTP(llmDependencyName,
		dephealth.FromURL(llmURL),
		dephealth.WithHTTPHealthPath(llmHealthPath),
		dephealth.CheckInterval(checkInterval),
		dephealth.Critical(false),
	))
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодические проверки.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает проверки.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает состояние зависимостей: ключ "имя:хост:порт" -> ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
