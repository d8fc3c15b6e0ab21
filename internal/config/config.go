// Пакет config — загрузка и валидация конфигурации Beryll Tracking Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Beryll Tracking Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8000-8009)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Keycloak ---

	// URL Keycloak (например, https://keycloak.yadro.lan)
	KeycloakURL string
	// Имя realm в Keycloak
	KeycloakRealm string
	// Путь к кастомному CA-сертификату (self-signed Keycloak в dev-среде)
	CACertPath string

	// --- JWT (fallback-валидация, основная на API Gateway) ---

	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string
	// Claim для ролей в JWT
	JWTRolesClaim string
	// Claim для групп в JWT
	JWTGroupsClaim string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал фонового обновления JWKS
	JWKSRefreshInterval time.Duration
	// Допустимый перекос часов при валидации exp/iat
	JWTLeeway time.Duration

	// --- Фоновые задачи и кэш ---

	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// TTL кэша шаблонов чеклистов
	ChecklistCacheTTL time.Duration
	// Максимальный размер кэша шаблонов чеклистов
	ChecklistCacheSize int

	// --- Пакетная загрузка ---

	// Максимальное количество комплектующих в одном batch-запросе
	BatchMaxItems int

	// --- Маппинг групп → ролей ---

	// Группы Keycloak, дающие роль admin (через запятую)
	RoleAdminGroups []string
	// Группы Keycloak, дающие роль inspector (через запятую)
	RoleInspectorGroups []string
	// Группы Keycloak, дающие роль engineer (через запятую)
	RoleEngineerGroups []string
	// Группы Keycloak, дающие роль readonly (через запятую)
	RoleReadonlyGroups []string

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// BT_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("BT_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("BT_PORT: %w", err)
	}
	if cfg.Port < 8000 || cfg.Port > 8009 {
		return nil, fmt.Errorf("BT_PORT: значение %d вне допустимого диапазона 8000-8009", cfg.Port)
	}

	// BT_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("BT_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("BT_LOG_LEVEL: %w", err)
	}

	// BT_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("BT_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("BT_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// BT_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("BT_DB_HOST")
	if err != nil {
		return nil, err
	}

	// BT_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("BT_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("BT_DB_PORT: %w", err)
	}

	// BT_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("BT_DB_NAME")
	if err != nil {
		return nil, err
	}

	// BT_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("BT_DB_USER")
	if err != nil {
		return nil, err
	}

	// BT_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("BT_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// BT_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("BT_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("BT_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Keycloak ---

	// BT_KEYCLOAK_URL — обязательный
	cfg.KeycloakURL, err = getEnvRequired("BT_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	// BT_KEYCLOAK_REALM — realm (по умолчанию beryll)
	cfg.KeycloakRealm = getEnvDefault("BT_KEYCLOAK_REALM", "beryll")

	// BT_CA_CERT_PATH — кастомный CA-сертификат (опциональный)
	cfg.CACertPath = os.Getenv("BT_CA_CERT_PATH")

	// --- JWT ---

	// BT_JWT_ISSUER — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTIssuer = getEnvDefault("BT_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))

	// BT_JWT_JWKS_URL — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTJWKSURL = getEnvDefault("BT_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))

	// BT_JWT_ROLES_CLAIM — claim для ролей (по умолчанию realm_access.roles)
	cfg.JWTRolesClaim = getEnvDefault("BT_JWT_ROLES_CLAIM", "realm_access.roles")

	// BT_JWT_GROUPS_CLAIM — claim для групп (по умолчанию groups)
	cfg.JWTGroupsClaim = getEnvDefault("BT_JWT_GROUPS_CLAIM", "groups")

	// BT_JWKS_CLIENT_TIMEOUT — таймаут HTTP-клиента JWKS (по умолчанию 10s)
	cfg.JWKSClientTimeout, err = getEnvDuration("BT_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BT_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// BT_JWKS_REFRESH_INTERVAL — интервал обновления JWKS (по умолчанию 1h)
	cfg.JWKSRefreshInterval, err = getEnvDuration("BT_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("BT_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// BT_JWT_LEEWAY — допустимый перекос часов (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("BT_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BT_JWT_LEEWAY: %w", err)
	}

	// --- Фоновые задачи и кэш ---

	// BT_DEPHEALTH_GROUP — имя группы в метриках topologymetrics (по умолчанию "beryll")
	cfg.DephealthGroup = getEnvDefault("BT_DEPHEALTH_GROUP", "beryll")

	// BT_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("BT_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BT_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// BT_CHECKLIST_CACHE_TTL — TTL кэша шаблонов чеклистов (по умолчанию 5m)
	cfg.ChecklistCacheTTL, err = getEnvDuration("BT_CHECKLIST_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("BT_CHECKLIST_CACHE_TTL: %w", err)
	}

	// BT_CHECKLIST_CACHE_SIZE — размер кэша шаблонов (по умолчанию 16)
	cfg.ChecklistCacheSize, err = getEnvInt("BT_CHECKLIST_CACHE_SIZE", 16)
	if err != nil {
		return nil, fmt.Errorf("BT_CHECKLIST_CACHE_SIZE: %w", err)
	}
	if cfg.ChecklistCacheSize < 1 {
		return nil, fmt.Errorf("BT_CHECKLIST_CACHE_SIZE: значение %d должно быть положительным", cfg.ChecklistCacheSize)
	}

	// --- Пакетная загрузка ---

	// BT_BATCH_MAX_ITEMS — максимум комплектующих в batch-запросе (по умолчанию 200)
	cfg.BatchMaxItems, err = getEnvInt("BT_BATCH_MAX_ITEMS", 200)
	if err != nil {
		return nil, fmt.Errorf("BT_BATCH_MAX_ITEMS: %w", err)
	}
	if cfg.BatchMaxItems < 1 || cfg.BatchMaxItems > 1000 {
		return nil, fmt.Errorf("BT_BATCH_MAX_ITEMS: значение %d вне допустимого диапазона 1-1000", cfg.BatchMaxItems)
	}

	// --- Маппинг групп → ролей ---

	// BT_ROLE_ADMIN_GROUPS — группы для роли admin (по умолчанию "beryll-admins")
	cfg.RoleAdminGroups = parseCSV(getEnvDefault("BT_ROLE_ADMIN_GROUPS", "beryll-admins"))

	// BT_ROLE_INSPECTOR_GROUPS — группы для роли inspector (по умолчанию "beryll-otk")
	cfg.RoleInspectorGroups = parseCSV(getEnvDefault("BT_ROLE_INSPECTOR_GROUPS", "beryll-otk"))

	// BT_ROLE_ENGINEER_GROUPS — группы для роли engineer (по умолчанию "beryll-assembly")
	cfg.RoleEngineerGroups = parseCSV(getEnvDefault("BT_ROLE_ENGINEER_GROUPS", "beryll-assembly"))

	// BT_ROLE_READONLY_GROUPS — группы для роли readonly (по умолчанию "beryll-viewers")
	cfg.RoleReadonlyGroups = parseCSV(getEnvDefault("BT_ROLE_READONLY_GROUPS", "beryll-viewers"))

	// --- Graceful shutdown ---

	// BT_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("BT_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BT_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL.
// Используется topologymetrics для лейблов метрик (хост, порт, база).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
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

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
