package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 是服务的全部配置，来源为环境变量（可由 .env 预置）与默认值。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Log      LogConfig      `mapstructure:"log"`
}

// AppConfig describes the running service.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// APIConfig 是 HTTP 服务配置。
type APIConfig struct {
	Port        int      `mapstructure:"port"`
	Prefix      string   `mapstructure:"prefix"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig 是 PostgreSQL 连接与连接池配置。
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	DB   int    `mapstructure:"db"`
}

// Addr 返回 host:port 形式的地址。
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig 是简历原文件所在的对象存储配置。
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Region           string `mapstructure:"region"`
	Bucket           string `mapstructure:"bucket"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// UploadConfig 限制简历上传。
type UploadConfig struct {
	MaxFileSize     int64    `mapstructure:"max_file_size"`
	MaxPerUserDaily int      `mapstructure:"max_per_user_daily"`
	AllowedTypes    []string `mapstructure:"allowed_types"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SlogLevel 把配置中的日志级别转换为 slog.Level，未知值按 info 处理。
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DSN 返回 key=value 形式的 PostgreSQL 连接串。
func (d DatabaseConfig) DSN() string {
	parts := []string{
		"host=" + d.Host,
		"port=" + strconv.Itoa(d.Port),
		"user=" + d.User,
		"password=" + d.Password,
		"dbname=" + d.Name,
		"sslmode=" + d.SSLMode,
	}
	return strings.Join(parts, " ")
}

// Load reads configuration from environment variables (optionally seeded from a local .env file) with defaults.
func Load() (*Config, error) {
	// .env 只用于本地开发，文件不存在时忽略。
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad 用于进程入口，加载失败直接 panic。
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Multi-Agent RAG System")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.prefix", "/api/v1")
	v.SetDefault("api.cors_origins", []string{"*"})
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "rag_system")
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("minio.bucket", "resumes")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("upload.max_file_size", 10*1024*1024)
	v.SetDefault("upload.max_per_user_daily", 20)
	v.SetDefault("upload.allowed_types", []string{"pdf", "docx", "txt"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func bindEnv(v *viper.Viper) error {
	envKeys := map[string]string{
		"app.name":                   "APP_NAME",
		"app.version":                "APP_VERSION",
		"app.environment":            "ENV",
		"app.debug":                  "DEBUG",
		"api.port":                   "API_PORT",
		"api.prefix":                 "API_PREFIX",
		"api.cors_origins":           "CORS_ORIGINS",
		"database.host":              "DATABASE_HOST",
		"database.port":              "DATABASE_PORT",
		"database.name":              "POSTGRES_DB",
		"database.user":              "POSTGRES_USER",
		"database.password":          "POSTGRES_PASSWORD",
		"database.sslmode":           "DATABASE_SSLMODE",
		"database.max_open_conns":    "DATABASE_MAX_OPEN_CONNS",
		"database.max_idle_conns":    "DATABASE_MAX_IDLE_CONNS",
		"database.conn_max_lifetime": "DATABASE_CONN_MAX_LIFETIME",
		"redis.host":                 "REDIS_HOST",
		"redis.port":                 "REDIS_PORT",
		"redis.db":                   "REDIS_DB",
		"minio.endpoint":             "MINIO_ENDPOINT",
		"minio.access_key_id":        "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":    "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":              "MINIO_USE_SSL",
		"minio.region":               "MINIO_REGION",
		"minio.bucket":               "MINIO_BUCKET",
		"minio.auto_create_bucket":   "MINIO_AUTO_CREATE_BUCKET",
		"upload.max_file_size":       "MAX_FILE_SIZE",
		"upload.max_per_user_daily":  "UPLOAD_MAX_PER_USER_DAILY",
		"upload.allowed_types":       "UPLOAD_ALLOWED_TYPES",
		"log.level":                  "LOG_LEVEL",
		"log.format":                 "LOG_FORMAT",
	}

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind env %s -> %s: %w", env, key, err)
		}
	}

	return nil
}

// validate 一次性报告所有缺失或非法的配置项，便于部署时一次修正。
func validate(cfg Config) error {
	var problems []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Errorf(format, args...))
		}
	}

	check(cfg.API.Port > 0, "api.port must be positive, got %d", cfg.API.Port)
	check(strings.HasPrefix(cfg.API.Prefix, "/"), "api.prefix %q must start with /", cfg.API.Prefix)

	db := cfg.Database
	for _, kv := range [][2]string{
		{"database.host", db.Host},
		{"database.name", db.Name},
		{"database.user", db.User},
		{"database.password", db.Password},
		{"database.sslmode", db.SSLMode},
	} {
		check(kv[1] != "", "%s is required", kv[0])
	}
	check(db.Port > 0, "database.port must be positive, got %d", db.Port)
	check(db.MaxOpenConns > 0, "database.max_open_conns must be positive, got %d", db.MaxOpenConns)

	check(cfg.Redis.Host != "", "redis.host is required")
	check(cfg.Redis.Port > 0, "redis.port must be positive, got %d", cfg.Redis.Port)

	for _, kv := range [][2]string{
		{"minio.endpoint", cfg.MinIO.Endpoint},
		{"minio.access_key_id", cfg.MinIO.AccessKeyID},
		{"minio.secret_access_key", cfg.MinIO.SecretAccessKey},
		{"minio.bucket", cfg.MinIO.Bucket},
	} {
		check(kv[1] != "", "%s is required", kv[0])
	}

	check(cfg.Upload.MaxFileSize > 0, "upload.max_file_size must be positive, got %d", cfg.Upload.MaxFileSize)
	check(slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(cfg.Log.Level)),
		"log.level %q is not one of debug/info/warn/error", cfg.Log.Level)

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config: %w", errors.Join(problems...))
}
