package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/idevanshrai/RoadVision/internal/domain/detection"
	"github.com/idevanshrai/RoadVision/internal/plate"
)

// ErrDuplicate reports a commit that matched an existing record's plate with
// both entry and exit timestamps inside the duplicate window.
var ErrDuplicate = errors.New("duplicate detection")

// DuplicateWindow is the tolerance on both entry and exit timestamps used to
// suppress re-recording the same physical pass.
const DuplicateWindow = 60 * time.Second

type DetectionRepository struct {
	db *gorm.DB
}

func NewDetectionRepository(db *gorm.DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// DetectionRow is the persisted shape of a detection. Rows are append-only:
// no update or delete path exists.
type DetectionRow struct {
	Seq                  int64     `gorm:"primaryKey;autoIncrement"`
	ID                   string    `gorm:"not null"`
	Plate                string    `gorm:"not null;index"`
	State                *string
	EntryTimestamp       time.Time `gorm:"not null"`
	ExitTimestamp        time.Time `gorm:"not null"`
	DistanceFeet         float64   `gorm:"not null"`
	SpeedMph             float64   `gorm:"not null"`
	SpeedLimitMph        float64   `gorm:"not null"`
	RecordedAt           time.Time `gorm:"not null;index"`
	IsOverSpeed          bool      `gorm:"not null"`
	PreviousDetectionRef *time.Time
	PlateImage           *string
	RawReadings          datatypes.JSON
}

func (DetectionRow) TableName() string {
	return "detections"
}

// maxCommitRetries bounds re-runs of a commit that lost a serialization
// conflict to a concurrent commit.
const maxCommitRetries = 3

// Commit runs the store's critical section in a single transaction: the
// duplicate-window check, the most-recent-prior-match lookup, and the append.
// Two concurrent requests for the same physical pass cannot both observe "no
// duplicate" and race to insert: sqlite serializes writers on its own, and on
// postgres the transaction runs at serializable isolation, retrying commits
// that lose a serialization conflict.
//
// On success the record's PreviousDetectionRef is filled in when a prior
// fuzzy-matching record exists, and that prior record is returned.
func (r *DetectionRepository) Commit(ctx context.Context, rec *detection.Record) (*detection.Record, error) {
	var opts []*sql.TxOptions
	if r.db.Dialector.Name() == "postgres" {
		// Read committed would let two concurrent commits both scan before
		// either insert is visible and record the same pass twice.
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}

	for attempt := 0; ; attempt++ {
		rec.PreviousDetectionRef = nil
		previous, err := r.commit(ctx, rec, opts...)
		if err == nil {
			return previous, nil
		}
		if attempt < maxCommitRetries && isSerializationFailure(err) {
			continue
		}
		return nil, err
	}
}

func (r *DetectionRepository) commit(ctx context.Context, rec *detection.Record, opts ...*sql.TxOptions) (*detection.Record, error) {
	var previous *detection.Record

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []DetectionRow
		if err := tx.Order("seq ASC").Find(&rows).Error; err != nil {
			return err
		}

		for _, row := range rows {
			if !plate.Match(row.Plate, rec.Plate) {
				continue
			}
			entryDiff := absDuration(row.EntryTimestamp.Sub(rec.EntryTimestamp))
			exitDiff := absDuration(row.ExitTimestamp.Sub(rec.ExitTimestamp))
			// Both deltas must be inside the window; either alone is not
			// enough to call it the same pass.
			if entryDiff < DuplicateWindow && exitDiff < DuplicateWindow {
				return ErrDuplicate
			}
		}

		// Reverse insertion order: the first fuzzy match is the most recent
		// prior detection of this plate.
		for i := len(rows) - 1; i >= 0; i-- {
			if plate.Match(rows[i].Plate, rec.Plate) {
				prev, err := recordFromRow(rows[i])
				if err != nil {
					return err
				}
				previous = prev
				ref := prev.RecordedAt
				rec.PreviousDetectionRef = &ref
				break
			}
		}

		row, err := rowFromRecord(rec)
		if err != nil {
			return err
		}
		return tx.Create(row).Error
	}, opts...)
	if err != nil {
		return nil, err
	}

	return previous, nil
}

// isSerializationFailure reports a postgres serialization conflict
// (SQLSTATE 40001), the expected loser outcome of two serializable commits
// for the same pass.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

// Append inserts one record without the duplicate or history checks.
func (r *DetectionRepository) Append(ctx context.Context, rec *detection.Record) error {
	row, err := rowFromRecord(rec)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// ListAll returns every record, newest first by recording time.
func (r *DetectionRepository) ListAll(ctx context.Context) ([]detection.Record, error) {
	var rows []DetectionRow
	if err := r.db.WithContext(ctx).Order("recorded_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]detection.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// FindLatestMatch scans records in reverse insertion order and returns the
// first whose plate fuzzy-matches, or nil when none does.
func (r *DetectionRepository) FindLatestMatch(ctx context.Context, plateNumber string) (*detection.Record, error) {
	var rows []DetectionRow
	if err := r.db.WithContext(ctx).Order("seq DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		if plate.Match(row.Plate, plateNumber) {
			return recordFromRow(row)
		}
	}
	return nil, nil
}

// Count returns the number of persisted detections.
func (r *DetectionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&DetectionRow{}).Count(&count).Error
	return count, err
}

// CountOverSpeed returns the number of detections over their posted limit.
func (r *DetectionRepository) CountOverSpeed(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&DetectionRow{}).
		Where("is_over_speed = ?", true).Count(&count).Error
	return count, err
}

func rowFromRecord(rec *detection.Record) (*DetectionRow, error) {
	row := &DetectionRow{
		ID:                   rec.ID.String(),
		Plate:                rec.Plate,
		State:                rec.State,
		EntryTimestamp:       rec.EntryTimestamp,
		ExitTimestamp:        rec.ExitTimestamp,
		DistanceFeet:         rec.DistanceFeet,
		SpeedMph:             rec.SpeedMph,
		SpeedLimitMph:        rec.SpeedLimitMph,
		RecordedAt:           rec.RecordedAt,
		IsOverSpeed:          rec.IsOverSpeed,
		PreviousDetectionRef: rec.PreviousDetectionRef,
		PlateImage:           rec.PlateImageRef,
	}

	if len(rec.RawReadings) > 0 {
		encoded, err := json.Marshal(rec.RawReadings)
		if err != nil {
			return nil, fmt.Errorf("failed to encode raw readings: %w", err)
		}
		row.RawReadings = datatypes.JSON(encoded)
	}

	return row, nil
}

func recordFromRow(row DetectionRow) (*detection.Record, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid record id %q: %w", row.ID, err)
	}

	rec := &detection.Record{
		ID:                   id,
		Plate:                row.Plate,
		State:                row.State,
		EntryTimestamp:       row.EntryTimestamp,
		ExitTimestamp:        row.ExitTimestamp,
		DistanceFeet:         row.DistanceFeet,
		SpeedMph:             row.SpeedMph,
		SpeedLimitMph:        row.SpeedLimitMph,
		RecordedAt:           row.RecordedAt,
		IsOverSpeed:          row.IsOverSpeed,
		PreviousDetectionRef: row.PreviousDetectionRef,
		PlateImageRef:        row.PlateImage,
	}

	if len(row.RawReadings) > 0 {
		if err := json.Unmarshal(row.RawReadings, &rec.RawReadings); err != nil {
			return nil, fmt.Errorf("failed to decode raw readings: %w", err)
		}
	}

	return rec, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
