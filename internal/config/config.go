package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host           string
	Port           int
	MaxUploadBytes int64
}

type DBConfig struct {
	Driver          string // "sqlite" or "postgres"
	DSN             string // postgres DSN, required when Driver is "postgres"
	Path            string // sqlite file path
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
}

type DetectionConfig struct {
	PlateImageDir string
	Timezone      string
	OCRLanguage   string
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Detection   DetectionConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			MaxUploadBytes: v.GetInt64("HTTP_MAX_UPLOAD_BYTES"),
		},
		DB: DBConfig{
			Driver:          v.GetString("DB_DRIVER"),
			DSN:             v.GetString("DB_DSN"),
			Path:            v.GetString("DB_PATH"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Detection: DetectionConfig{
			PlateImageDir: v.GetString("PLATE_IMAGE_DIR"),
			Timezone:      v.GetString("TIMEZONE"),
			OCRLanguage:   v.GetString("OCR_LANGUAGE"),
		},
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 5001
	}
	if cfg.HTTP.MaxUploadBytes == 0 {
		cfg.HTTP.MaxUploadBytes = 16 << 20
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = "sqlite"
	}
	if cfg.DB.Path == "" {
		cfg.DB.Path = "detections.db"
	}
	if cfg.Detection.PlateImageDir == "" {
		cfg.Detection.PlateImageDir = "plate_images"
	}
	if cfg.Detection.Timezone == "" {
		cfg.Detection.Timezone = "America/New_York"
	}
	if cfg.Detection.OCRLanguage == "" {
		cfg.Detection.OCRLanguage = "eng"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.DB.Driver {
	case "sqlite":
	case "postgres":
		if cfg.DB.DSN == "" {
			return fmt.Errorf("DB_DSN is required when DB_DRIVER is postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}
	if _, err := time.LoadLocation(cfg.Detection.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Detection.Timezone, err)
	}
	return nil
}
