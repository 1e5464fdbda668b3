package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/bigkaa/dataviz/internal/api/handlers"
	"github.com/bigkaa/dataviz/internal/api/middleware"
	"github.com/bigkaa/dataviz/internal/api/openapi"
	"github.com/bigkaa/dataviz/internal/auth"
	"github.com/bigkaa/dataviz/internal/config"
	"github.com/bigkaa/dataviz/internal/database"
	"github.com/bigkaa/dataviz/internal/llm"
	"github.com/bigkaa/dataviz/internal/repository"
	"github.com/bigkaa/dataviz/internal/server"
	"github.com/bigkaa/dataviz/internal/service"
	"github.com/bigkaa/dataviz/internal/storage/filestore"
)

var skipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить HTTP API",
	Long: `Загружает конфигурацию из переменных окружения DV_*, применяет миграции,
подключается к PostgreSQL и запускает HTTP-сервер с graceful shutdown.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "не применять миграции при старте")
}

//nolint:funlen // последовательная сборка зависимостей
func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("загрузка конфигурации: %w", err)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("dataviz запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.Bool("strict_group_policy", cfg.StrictGroupPolicy),
	)

	if !skipMigrations {
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			return fmt.Errorf("миграции БД: %w", err)
		}
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("подключение к PostgreSQL: %w", err)
	}
	defer pool.Close()

	// *sql.DB поверх пула для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	store, err := filestore.New(cfg.MediaRoot)
	if err != nil {
		return fmt.Errorf("хранилище файлов: %w", err)
	}

	key, err := auth.LoadOrGenerateKey(cfg.JWTPrivateKeyPath, logger)
	if err != nil {
		return fmt.Errorf("ключ подписи JWT: %w", err)
	}
	issuer, err := auth.NewIssuer(ctx, key, auth.Options{
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		Leeway:     cfg.JWTLeeway,
	})
	if err != nil {
		return fmt.Errorf("выпуск токенов: %w", err)
	}

	completer, err := llm.New(llm.Config{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
	}, logger)
	if err != nil {
		return fmt.Errorf("клиент языковой модели: %w", err)
	}

	doc, err := openapi.Load(ctx)
	if err != nil {
		return fmt.Errorf("OpenAPI-схема: %w", err)
	}
	schema, err := openapi.JSON(doc)
	if err != nil {
		return fmt.Errorf("OpenAPI-схема: %w", err)
	}

	// Repositories
	fileRepo := repository.NewFileRecordRepository(pool)
	dataModelRepo := repository.NewDataModelRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	// Services
	validator := service.NewValidator()
	filesSvc := service.NewFileService(fileRepo, store, validator, cfg.PageSize, logger)
	usersSvc := service.NewUserService(userRepo, validator, logger)
	svc := handlers.Services{
		Files:         filesSvc,
		DataModels:    service.NewDataModelService(dataModelRepo, validator, cfg.PageSize, cfg.DataModelsOwnerScoped, logger),
		Visualization: service.NewVisualizationService(filesSvc, logger),
		Users:         usersSvc,
		Chatbot:       service.NewChatbotService(completer, logger),
		Tokens:        issuer,
	}

	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), store)
	apiHandler := handlers.NewAPIHandler(healthHandler, svc, schema, cfg.MaxUploadSize, logger)
	jwtAuth := middleware.NewJWTAuth(issuer, usersSvc, logger)

	// topologymetrics: недоступность не мешает старту
	dephealthSvc, err := service.NewDephealthService(
		"dataviz",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.LLMEndpoint(),
		cfg.LLMHealthPath,
		cfg.DephealthCheckInterval,
		logger,
	)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		dephealthSvc = nil
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		dephealthSvc = nil
	}

	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	runErr := srv.Run(ctx)

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	if runErr != nil {
		return runErr
	}

	logger.Info("dataviz остановлен")
	return nil
}
