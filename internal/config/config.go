package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"finfeed/internal/domain"

	"github.com/joho/godotenv"
)

// Переменные окружения, переопределяющие значения из файла конфигурации.
const (
	EnvDBHost        = "FINFEED_DB_HOST"
	EnvDBPassword    = "FINFEED_DB_PASSWORD"
	EnvSessionSecret = "FINFEED_SESSION_SECRET"
	EnvLogLevel      = "FINFEED_LOG_LEVEL"
	EnvServerAddress = "FINFEED_ADDRESS"
)

// Config представляет основную конфигурацию сервиса ленты.
// Содержит настройки сервера, логгера, ленты, базы данных и сессий.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Logger   LoggerConfig   `json:"logger"`
	App      AppConfig      `json:"app"`
	Database DatabaseConfig `json:"database"`
	Auth     AuthConfig     `json:"auth"`
}

// ServerConfig содержит адрес, на котором слушает HTTP-сервер.
type ServerConfig struct {
	Address string `json:"address"`
}

// LoggerConfig определяет уровень логирования и куда писать логи.
// File и ErrorFile принимают путь к файлу либо "stdout"/"stderr".
type LoggerConfig struct {
	Level     string `json:"level"`
	File      string `json:"file"`
	ErrorFile string `json:"error_file"`
}

// Category - категория интересов, которую пользователь может выбрать.
type Category struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
}

// AppConfig содержит настройки ленты и фонового наполнения хранилища.
type AppConfig struct {
	FeedLimit      int                 `json:"feed_limit"`
	Timezone       string              `json:"timezone"`
	Categories     []Category          `json:"categories"`
	Feeds          []domain.FeedSource `json:"feeds"`
	IngestInterval string              `json:"ingest_interval"`
	FetchTimeout   string              `json:"fetch_timeout"`
}

// Драйверы хранилища статей.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig содержит параметры подключения к хранилищу.
// Для драйвера sqlite используется только Path.
type DatabaseConfig struct {
	Driver   string `json:"driver"`
	Path     string `json:"path"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// AuthConfig содержит настройки cookie-сессий и ключи, по которым выдаются сессии.
// APIKeys сопоставляет ключ идентификатору пользователя.
// SignInPerMinute ограничивает попытки входа с одного адреса, 0 снимает ограничение.
type AuthConfig struct {
	SessionSecret   string            `json:"session_secret"`
	SessionMaxAge   int               `json:"session_max_age"`
	SecureCookie    bool              `json:"secure_cookie"`
	SignInPerMinute int               `json:"sign_in_per_minute"`
	APIKeys         map[string]string `json:"api_keys"`
}

func (c *DatabaseConfig) validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("database path is not set for the sqlite driver")
		}
		return nil
	case DriverPostgres, "":
	default:
		return fmt.Errorf("unknown database driver %q", c.Driver)
	}
	if c.Host == "" {
		return fmt.Errorf("database host is not set")
	}
	if c.Username == "" {
		return fmt.Errorf("database username is not set")
	}
	if c.Password == "" {
		return fmt.Errorf("database password is not set (use %s)", EnvDBPassword)
	}
	return nil
}

// DSN возвращает строку подключения к PostgreSQL в формате URI.
func (c *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Location возвращает часовой пояс, в котором вычисляется дата публикации статей.
func (c *AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// IngestEvery возвращает интервал обхода внешних лент.
func (c *AppConfig) IngestEvery() time.Duration {
	d, _ := time.ParseDuration(c.IngestInterval)
	return d
}

// FetchTimeoutDuration возвращает таймаут HTTP-клиента для внешних лент.
func (c *AppConfig) FetchTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.FetchTimeout)
	return d
}

// Load загружает конфигурацию из JSON-файла поверх значений по умолчанию,
// затем применяет .env и переменные окружения.
func Load(configPath string, envFiles ...string) (*Config, error) {
	cfg := New()
	fileData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	if err := json.Unmarshal(fileData, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON from file %s: %w", configPath, err)
	}
	if err := cfg.ApplyEnv(envFiles...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv читает .env-файлы (отсутствующие пропускаются) и переопределяет
// поля конфигурации из окружения. Уже заданные переменные окружения не перезаписываются.
func (c *Config) ApplyEnv(envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	if v, ok := os.LookupEnv(EnvDBHost); ok {
		c.Database.Host = v
	}
	if v, ok := os.LookupEnv(EnvDBPassword); ok {
		c.Database.Password = v
	}
	if v, ok := os.LookupEnv(EnvSessionSecret); ok {
		c.Auth.SessionSecret = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Logger.Level = v
	}
	if v, ok := os.LookupEnv(EnvServerAddress); ok {
		c.Server.Address = v
	}
	return nil
}

// DefaultCategories - категории, доступные на экране выбора интересов.
func DefaultCategories() []Category {
	return []Category{
		{ID: "mutual-funds", Title: "Mutual Fund", Description: "Discover mutual fund trends", Emoji: "📊"},
		{ID: "stocks", Title: "Stock", Description: "Stay with latest stock news", Emoji: "📈"},
		{ID: "ipo", Title: "IPO", Description: "Stay ahead with IPO news", Emoji: "🚀"},
		{ID: "crypto", Title: "Crypto", Description: "Stay updated on crypto prices and trends", Emoji: "⚡"},
		{ID: "fraud", Title: "Latest Frauds", Description: "Stay informed about trending financial scams", Emoji: "🚨"},
		{ID: "cards", Title: "Credit Card", Description: "Know the best cards, offers, and rewards", Emoji: "💳"},
		{ID: "tax", Title: "Tax", Description: "Tax planning and compliance", Emoji: "📝"},
		{ID: "insurance", Title: "Insurance", Description: "Stay aware of insurance news", Emoji: "🛡️"},
	}
}

// New создает новый экземпляр Config со значениями по умолчанию.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Address: ":8080",
		},
		Logger: LoggerConfig{
			Level:     "info",
			File:      "finfeed.log",
			ErrorFile: "finfeed_error.log",
		},
		App: AppConfig{
			FeedLimit:      100,
			Timezone:       "UTC",
			Categories:     DefaultCategories(),
			Feeds:          []domain.FeedSource{},
			IngestInterval: "15m",
			FetchTimeout:   "30s",
		},
		Database: DatabaseConfig{
			Driver:  DriverPostgres,
			Path:    "finfeed.db",
			Host:    "localhost",
			Port:    5432,
			DBName:  "finfeed",
			SSLMode: "disable",
		},
		Auth: AuthConfig{
			SessionMaxAge:   86400 * 7,
			SignInPerMinute: 10,
			APIKeys:         map[string]string{},
		},
	}
}

// Validate проверяет корректность конфигурации.
// Возвращает ошибку с описанием первой найденной проблемы.
func (c *Config) Validate() error {
	if err := c.Database.validate(); err != nil {
		return err
	}
	if c.App.FeedLimit <= 0 {
		return fmt.Errorf("app.feed_limit must be a positive number")
	}
	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("invalid app.timezone: %w", err)
	}
	for _, cat := range c.App.Categories {
		if cat.Title == "" {
			return fmt.Errorf("category title cannot be empty (id %q)", cat.ID)
		}
	}
	for _, feed := range c.App.Feeds {
		if _, err := url.ParseRequestURI(feed.URL); err != nil {
			return fmt.Errorf("invalid url in app.feeds: %s", feed.URL)
		}
		if feed.Name == "" {
			return fmt.Errorf("feed name cannot be empty for url: %s", feed.URL)
		}
		if feed.Category == "" {
			return fmt.Errorf("feed category cannot be empty for url: %s", feed.URL)
		}
	}
	if d, err := time.ParseDuration(c.App.IngestInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid app.ingest_interval: %q", c.App.IngestInterval)
	}
	if d, err := time.ParseDuration(c.App.FetchTimeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid app.fetch_timeout: %q", c.App.FetchTimeout)
	}
	if len(c.Auth.SessionSecret) < 32 {
		return fmt.Errorf("auth.session_secret must be at least 32 bytes (use %s)", EnvSessionSecret)
	}
	if c.Auth.SessionMaxAge <= 0 {
		return fmt.Errorf("auth.session_max_age must be positive, got %d", c.Auth.SessionMaxAge)
	}
	if c.Auth.SignInPerMinute < 0 {
		return fmt.Errorf("auth.sign_in_per_minute cannot be negative, got %d", c.Auth.SignInPerMinute)
	}
	if len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth.api_keys must not be empty")
	}
	for key, user := range c.Auth.APIKeys {
		if key == "" || user == "" {
			return fmt.Errorf("auth.api_keys entries must have a non-empty key and user")
		}
	}
	return nil
}
