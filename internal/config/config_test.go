package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.HTTP.Host != "0.0.0.0" {
		t.Errorf("HTTP.Host = %q, want 0.0.0.0", cfg.HTTP.Host)
	}
	if cfg.HTTP.Port != 5001 {
		t.Errorf("HTTP.Port = %d, want 5001", cfg.HTTP.Port)
	}
	if cfg.HTTP.MaxUploadBytes != 16<<20 {
		t.Errorf("HTTP.MaxUploadBytes = %d, want %d", cfg.HTTP.MaxUploadBytes, 16<<20)
	}
	if cfg.DB.Driver != "sqlite" {
		t.Errorf("DB.Driver = %q, want sqlite", cfg.DB.Driver)
	}
	if cfg.DB.Path != "detections.db" {
		t.Errorf("DB.Path = %q, want detections.db", cfg.DB.Path)
	}
	if cfg.Detection.PlateImageDir != "plate_images" {
		t.Errorf("Detection.PlateImageDir = %q, want plate_images", cfg.Detection.PlateImageDir)
	}
	if cfg.Detection.Timezone != "America/New_York" {
		t.Errorf("Detection.Timezone = %q, want America/New_York", cfg.Detection.Timezone)
	}
	if cfg.Detection.OCRLanguage != "eng" {
		t.Errorf("Detection.OCRLanguage = %q, want eng", cfg.Detection.OCRLanguage)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("OCR_LANGUAGE", "deu")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Environment != "production" {
		t.Errorf("Environment = %q, want production", cfg.Environment)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("HTTP.Port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Detection.Timezone != "UTC" {
		t.Errorf("Detection.Timezone = %q, want UTC", cfg.Detection.Timezone)
	}
	if cfg.Detection.OCRLanguage != "deu" {
		t.Errorf("Detection.OCRLanguage = %q, want deu", cfg.Detection.OCRLanguage)
	}
}

func TestLoad_Validation(t *testing.T) {
	t.Run("postgres without DSN", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "postgres")
		t.Setenv("DB_DSN", "")
		if _, err := Load(); err == nil {
			t.Error("Load succeeded, want error when DB_DSN is empty for postgres")
		}
	})

	t.Run("postgres with DSN", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "postgres")
		t.Setenv("DB_DSN", "host=localhost user=app dbname=roadvision")
		if _, err := Load(); err != nil {
			t.Errorf("Load failed: %v", err)
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "oracle")
		if _, err := Load(); err == nil {
			t.Error("Load succeeded, want error for unsupported driver")
		}
	})

	t.Run("bad timezone", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "sqlite")
		t.Setenv("TIMEZONE", "Mars/Olympus")
		if _, err := Load(); err == nil {
			t.Error("Load succeeded, want error for unknown timezone")
		}
	})
}
