package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"DV_DB_HOST":     "localhost",
		"DV_DB_NAME":     "dataviz",
		"DV_DB_USER":     "dataviz",
		"DV_DB_PASSWORD": "secret",
		"DV_LLM_API_KEY": "sk-test",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8000 {
		t.Errorf("Port = %d, ожидается 8000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.MediaRoot != "./media" {
		t.Errorf("MediaRoot = %q, ожидается ./media", cfg.MediaRoot)
	}
	if cfg.MaxUploadSize != 100<<20 {
		t.Errorf("MaxUploadSize = %d, ожидается %d", cfg.MaxUploadSize, 100<<20)
	}
	if cfg.PageSize != 10 {
		t.Errorf("PageSize = %d, ожидается 10", cfg.PageSize)
	}
	if cfg.AccessTokenTTL != 5*time.Minute {
		t.Errorf("AccessTokenTTL = %v, ожидается 5m", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 24*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, ожидается 24h", cfg.RefreshTokenTTL)
	}
	if cfg.LLMModel != "gpt-4" {
		t.Errorf("LLMModel = %q, ожидается gpt-4", cfg.LLMModel)
	}
	if cfg.LLMEndpoint() != "https://api.openai.com/v1" {
		t.Errorf("LLMEndpoint() = %q", cfg.LLMEndpoint())
	}
	if cfg.StrictGroupPolicy {
		t.Error("StrictGroupPolicy по умолчанию должен быть false")
	}
	if cfg.DataModelsOwnerScoped {
		t.Error("DataModelsOwnerScoped по умолчанию должен быть false")
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	required := []string{"DV_DB_HOST", "DV_DB_NAME", "DV_DB_USER", "DV_DB_PASSWORD", "DV_LLM_API_KEY"}

	for _, key := range required {
		t.Run(key, func(t *testing.T) {
			envs := minimalEnvs()
			envs[key] = ""
			setEnvs(t, envs)

			_, err := Load()
			if err == nil {
				t.Fatalf("ожидалась ошибка при отсутствии %s", key)
			}
			if !strings.Contains(err.Error(), key) {
				t.Errorf("ошибка должна упоминать %s: %v", key, err)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "порт не число", key: "DV_PORT", val: "abc"},
		{name: "порт вне диапазона", key: "DV_PORT", val: "70000"},
		{name: "уровень логов", key: "DV_LOG_LEVEL", val: "verbose"},
		{name: "формат логов", key: "DV_LOG_FORMAT", val: "xml"},
		{name: "ssl mode", key: "DV_DB_SSL_MODE", val: "prefer-not"},
		{name: "размер загрузки ноль", key: "DV_MAX_UPLOAD_SIZE", val: "0"},
		{name: "размер страницы", key: "DV_PAGE_SIZE", val: "0"},
		{name: "длительность", key: "DV_ACCESS_TOKEN_TTL", val: "5 минут"},
		{name: "refresh короче access", key: "DV_REFRESH_TOKEN_TTL", val: "1m"},
		{name: "логическое значение", key: "DV_STRICT_GROUP_POLICY", val: "maybe"},
		{name: "base url без схемы", key: "DV_LLM_BASE_URL", val: "localhost:11434"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tt.key] = tt.val
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("ожидалась ошибка для %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestLoad_Overrides(t *testing.T) {
	envs := minimalEnvs()
	envs["DV_PORT"] = "9090"
	envs["DV_LOG_LEVEL"] = "debug"
	envs["DV_LOG_FORMAT"] = "text"
	envs["DV_STRICT_GROUP_POLICY"] = "true"
	envs["DV_DATA_MODELS_OWNER_SCOPED"] = "1"
	envs["DV_LLM_BASE_URL"] = "http://localhost:11434/v1/"
	envs["DV_LLM_MODEL"] = "llama3"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, ожидается 9090", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if !cfg.StrictGroupPolicy || !cfg.DataModelsOwnerScoped {
		t.Error("флаги политики доступа не применены")
	}
	if cfg.LLMEndpoint() != "http://localhost:11434/v1" {
		t.Errorf("LLMEndpoint() = %q, trailing slash должен быть убран", cfg.LLMEndpoint())
	}
	if cfg.LLMModel != "llama3" {
		t.Errorf("LLMModel = %q", cfg.LLMModel)
	}
}

func TestMigrateURL_EscapesPassword(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: 5432, DBName: "dataviz",
		DBUser: "user", DBPassword: "p@ss/word", DBSSLMode: "disable",
	}

	got := cfg.MigrateURL()
	want := "pgx5://user:p%40ss%2Fword@db:5432/dataviz?sslmode=disable"
	if got != want {
		t.Errorf("MigrateURL() = %q, ожидается %q", got, want)
	}
	if strings.Contains(cfg.DatabaseURL(), "p@ss") {
		t.Error("DatabaseURL() не должен содержать пароль")
	}
}
