package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Statements are per-driver because sqlite and postgres disagree on
// auto-increment and timestamp column syntax. The seq column is the insertion
// sequence; the store never updates or deletes rows.
var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS detections (
		seq                    INTEGER PRIMARY KEY AUTOINCREMENT,
		id                     TEXT NOT NULL,
		plate                  TEXT NOT NULL,
		state                  TEXT,
		entry_timestamp        DATETIME NOT NULL,
		exit_timestamp         DATETIME NOT NULL,
		distance_feet          REAL NOT NULL,
		speed_mph              REAL NOT NULL,
		speed_limit_mph        REAL NOT NULL,
		recorded_at            DATETIME NOT NULL,
		is_over_speed          BOOLEAN NOT NULL,
		previous_detection_ref DATETIME,
		plate_image            TEXT,
		raw_readings           TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_detections_plate ON detections(plate);`,
	`CREATE INDEX IF NOT EXISTS idx_detections_recorded_at ON detections(recorded_at);`,
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS detections (
		seq                    BIGSERIAL PRIMARY KEY,
		id                     TEXT NOT NULL,
		plate                  TEXT NOT NULL,
		state                  TEXT,
		entry_timestamp        TIMESTAMPTZ NOT NULL,
		exit_timestamp         TIMESTAMPTZ NOT NULL,
		distance_feet          DOUBLE PRECISION NOT NULL,
		speed_mph              DOUBLE PRECISION NOT NULL,
		speed_limit_mph        DOUBLE PRECISION NOT NULL,
		recorded_at            TIMESTAMPTZ NOT NULL,
		is_over_speed          BOOLEAN NOT NULL,
		previous_detection_ref TIMESTAMPTZ,
		plate_image            TEXT,
		raw_readings           JSONB
	);`,
	`CREATE INDEX IF NOT EXISTS idx_detections_plate ON detections(plate);`,
	`CREATE INDEX IF NOT EXISTS idx_detections_recorded_at ON detections(recorded_at);`,
}

func RunMigrations(db *gorm.DB, driver string) error {
	statements := sqliteMigrations
	if driver == "postgres" {
		statements = postgresMigrations
	}

	for i, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
