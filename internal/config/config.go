// Пакет config - загрузка и валидация конфигурации сервиса dataviz
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Файлы ---

	// Корневая директория хранения загруженных файлов
	MediaRoot string
	// Максимальный размер загружаемого файла в байтах
	MaxUploadSize int64
	// Размер страницы в списках /files/ и /data-models/
	PageSize int

	// --- JWT ---

	// Issuer выпускаемых токенов
	JWTIssuer string
	// Путь к PEM-файлу приватного RSA-ключа (пусто - ключ генерируется при старте)
	JWTPrivateKeyPath string
	// Время жизни access-токена
	AccessTokenTTL time.Duration
	// Время жизни refresh-токена
	RefreshTokenTTL time.Duration
	// Допустимое отклонение часов при проверке токенов
	JWTLeeway time.Duration

	// --- Языковая модель ---

	// API-ключ OpenAI-совместимого провайдера (обязательный)
	LLMAPIKey string
	// Базовый URL API (пусто - api.openai.com)
	LLMBaseURL string
	// Имя модели
	LLMModel string
	// Путь для проверки доступности API в topologymetrics
	LLMHealthPath string

	// --- Политика доступа ---

	// Строгая групповая политика: запись - Admin/Analyst, чтение - любая группа
	StrictGroupPolicy bool
	// Список data-models ограничивается моделями вызывающего пользователя
	DataModelsOwnerScoped bool

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
//
//nolint:cyclop,funlen // линейная последовательность однотипных проверок
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// DV_PORT - порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("DV_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("DV_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("DV_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DV_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DV_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("DV_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DV_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	if cfg.HTTPReadTimeout, err = getEnvDuration("DV_HTTP_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("DV_HTTP_READ_TIMEOUT: %w", err)
	}
	if cfg.HTTPWriteTimeout, err = getEnvDuration("DV_HTTP_WRITE_TIMEOUT", 60*time.Second); err != nil {
		return nil, fmt.Errorf("DV_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.HTTPIdleTimeout, err = getEnvDuration("DV_HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return nil, fmt.Errorf("DV_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("DV_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("DV_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("DV_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("DV_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("DV_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("DV_DB_PASSWORD"); err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("DV_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("DV_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Файлы ---

	cfg.MediaRoot = getEnvDefault("DV_MEDIA_ROOT", "./media")

	// DV_MAX_UPLOAD_SIZE - в байтах (по умолчанию 100 MiB)
	cfg.MaxUploadSize, err = getEnvInt64("DV_MAX_UPLOAD_SIZE", 100<<20)
	if err != nil {
		return nil, fmt.Errorf("DV_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("DV_MAX_UPLOAD_SIZE: значение должно быть положительным")
	}

	cfg.PageSize, err = getEnvInt("DV_PAGE_SIZE", 10)
	if err != nil {
		return nil, fmt.Errorf("DV_PAGE_SIZE: %w", err)
	}
	if cfg.PageSize < 1 || cfg.PageSize > 1000 {
		return nil, fmt.Errorf("DV_PAGE_SIZE: значение %d вне допустимого диапазона 1-1000", cfg.PageSize)
	}

	// --- JWT ---

	cfg.JWTIssuer = getEnvDefault("DV_JWT_ISSUER", "dataviz")
	cfg.JWTPrivateKeyPath = getEnvDefault("DV_JWT_PRIVATE_KEY_PATH", "")

	// DV_ACCESS_TOKEN_TTL - время жизни access-токена (по умолчанию 5m)
	if cfg.AccessTokenTTL, err = getEnvDuration("DV_ACCESS_TOKEN_TTL", 5*time.Minute); err != nil {
		return nil, fmt.Errorf("DV_ACCESS_TOKEN_TTL: %w", err)
	}
	// DV_REFRESH_TOKEN_TTL - время жизни refresh-токена (по умолчанию 24h)
	if cfg.RefreshTokenTTL, err = getEnvDuration("DV_REFRESH_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, fmt.Errorf("DV_REFRESH_TOKEN_TTL: %w", err)
	}
	if cfg.RefreshTokenTTL <= cfg.AccessTokenTTL {
		return nil, fmt.Errorf("DV_REFRESH_TOKEN_TTL: должен быть больше DV_ACCESS_TOKEN_TTL (%s)", cfg.AccessTokenTTL)
	}
	if cfg.JWTLeeway, err = getEnvDuration("DV_JWT_LEEWAY", 5*time.Second); err != nil {
		return nil, fmt.Errorf("DV_JWT_LEEWAY: %w", err)
	}

	// --- Языковая модель ---

	// DV_LLM_API_KEY - обязательный: без ключа сервис не стартует
	if cfg.LLMAPIKey, err = getEnvRequired("DV_LLM_API_KEY"); err != nil {
		return nil, err
	}
	cfg.LLMBaseURL = strings.TrimRight(getEnvDefault("DV_LLM_BASE_URL", ""), "/")
	if cfg.LLMBaseURL != "" {
		if u, parseErr := url.Parse(cfg.LLMBaseURL); parseErr != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("DV_LLM_BASE_URL: некорректный URL %q", cfg.LLMBaseURL)
		}
	}
	cfg.LLMModel = getEnvDefault("DV_LLM_MODEL", "gpt-4")
	cfg.LLMHealthPath = getEnvDefault("DV_LLM_HEALTH_PATH", "/")

	// --- Политика доступа ---

	if cfg.StrictGroupPolicy, err = getEnvBool("DV_STRICT_GROUP_POLICY", false); err != nil {
		return nil, fmt.Errorf("DV_STRICT_GROUP_POLICY: %w", err)
	}
	if cfg.DataModelsOwnerScoped, err = getEnvBool("DV_DATA_MODELS_OWNER_SCOPED", false); err != nil {
		return nil, fmt.Errorf("DV_DATA_MODELS_OWNER_SCOPED: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("DV_DEPHEALTH_GROUP", "dataviz")
	if cfg.DephealthCheckInterval, err = getEnvDuration("DV_DEPHEALTH_CHECK_INTERVAL", 15*time.Second); err != nil {
		return nil, fmt.Errorf("DV_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	if cfg.ShutdownTimeout, err = getEnvDuration("DV_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("DV_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// LLMEndpoint возвращает базовый URL провайдера языковой модели.
func (c *Config) LLMEndpoint() string {
	if c.LLMBaseURL != "" {
		return c.LLMBaseURL
	}
	return "https://api.openai.com/v1"
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool принимает true/false, 1/0, yes/no.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := strings.ToLower(os.Getenv(key))
	switch val {
	case "":
		return defaultVal, nil
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
