package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/idevanshrai/RoadVision/internal/domain/detection"
	"github.com/idevanshrai/RoadVision/internal/imaging"
	"github.com/idevanshrai/RoadVision/internal/plate"
	"github.com/idevanshrai/RoadVision/internal/repository"
	"github.com/idevanshrai/RoadVision/internal/speed"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDecode           = errors.New("could not decode image")
	ErrDetection        = errors.New("could not detect a license plate in one or both images")
	ErrMismatch         = errors.New("the license plates in the two images do not match")
	ErrDuplicate        = errors.New("this plate with similar timestamps has already been processed")
	ErrTemporalOrder    = errors.New("exit image was captured before entry image")
	ErrSpeedCalculation = errors.New("speed calculation failed")
)

// MismatchError carries both readings so the caller can inspect what was
// extracted from each image.
type MismatchError struct {
	ReadingA *detection.PlateReading
	ReadingB *detection.PlateReading
}

func (e *MismatchError) Error() string { return ErrMismatch.Error() }
func (e *MismatchError) Unwrap() error { return ErrMismatch }

// allowedExtensions is the upload extension allow-list.
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// PlateReader extracts a PlateReading from a decoded image. Satisfied by
// *plate.Reader; tests substitute stubs.
type PlateReader interface {
	Read(raw *imaging.RawImage) (*detection.PlateReading, error)
}

// DetectInput is one raw /detect request.
type DetectInput struct {
	FileA      []byte
	FileB      []byte
	FilenameA  string
	FilenameB  string
	Distance   string
	SpeedLimit string
}

// DetectResult is the pipeline outcome for requests that reach a response
// body: either a persisted record, or a non-terminal format warning carrying
// both readings.
type DetectResult struct {
	Record        *detection.Record
	ReadingA      *detection.PlateReading
	ReadingB      *detection.PlateReading
	FormatWarning bool
	Warning       string
}

type DetectionService struct {
	repo     *repository.DetectionRepository
	reader   PlateReader
	location *time.Location
	now      func() time.Time
	log      zerolog.Logger
}

func NewDetectionService(repo *repository.DetectionRepository, reader PlateReader, location *time.Location, log zerolog.Logger) *DetectionService {
	return &DetectionService{
		repo:     repo,
		reader:   reader,
		location: location,
		now:      time.Now,
		log:      log,
	}
}

// ProcessDetection runs the full entry/exit correlation pipeline: validate,
// resolve timestamps, decode, extract plates, validate format, cross-match,
// then commit (duplicate check, history lookup, append) in one transaction.
func (s *DetectionService) ProcessDetection(ctx context.Context, input DetectInput) (*DetectResult, error) {
	distanceFeet, speedLimit, err := s.validateInput(input)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.location)

	rawA, err := imaging.Normalize(input.FileA, s.location)
	if err != nil {
		return nil, fmt.Errorf("%w: file A", ErrDecode)
	}
	rawB, err := imaging.Normalize(input.FileB, s.location)
	if err != nil {
		return nil, fmt.Errorf("%w: file B", ErrDecode)
	}

	// Embedded capture timestamps when present; otherwise a best-effort
	// fallback of "one minute ago" for entry and "now" for exit.
	entryTS := now.Add(-time.Minute)
	if rawA.CapturedAt != nil {
		entryTS = *rawA.CapturedAt
	}
	exitTS := now
	if rawB.CapturedAt != nil {
		exitTS = *rawB.CapturedAt
	}
	rawA.CapturedAt = &entryTS
	rawB.CapturedAt = &exitTS

	readingA, err := s.reader.Read(rawA)
	if err != nil {
		s.log.Error().Err(err).Msg("plate extraction failed for file A")
		return nil, ErrDetection
	}
	readingB, err := s.reader.Read(rawB)
	if err != nil {
		s.log.Error().Err(err).Msg("plate extraction failed for file B")
		return nil, ErrDetection
	}

	// Too-short plates are surfaced as a warning, not an error, so the
	// caller can inspect both readings and decide.
	if !wellFormed(readingA) || !wellFormed(readingB) {
		s.log.Warn().
			Str("raw_a", readingA.RawText).
			Str("raw_b", readingB.RawText).
			Msg("plate format warning")
		return &DetectResult{
			ReadingA:      readingA,
			ReadingB:      readingB,
			FormatWarning: true,
			Warning:       fmt.Sprintf("Detected plates: %s and %s", plateOrEmpty(readingA), plateOrEmpty(readingB)),
		}, nil
	}

	if !plate.Match(*readingA.NormalizedPlate, *readingB.NormalizedPlate) {
		s.log.Info().
			Str("plate_a", *readingA.NormalizedPlate).
			Str("plate_b", *readingB.NormalizedPlate).
			Msg("plates do not match")
		return nil, &MismatchError{ReadingA: readingA, ReadingB: readingB}
	}

	speedMph, err := speed.Calculate(entryTS, exitTS, distanceFeet)
	if err != nil {
		switch {
		case errors.Is(err, speed.ErrNegativeElapsed):
			return nil, fmt.Errorf("%w: entry %s, exit %s", ErrTemporalOrder,
				entryTS.Format(time.RFC3339), exitTS.Format(time.RFC3339))
		default:
			return nil, fmt.Errorf("%w: %v", ErrSpeedCalculation, err)
		}
	}

	record := &detection.Record{
		ID:             uuid.New(),
		Plate:          *readingA.NormalizedPlate,
		State:          readingA.DetectedState,
		EntryTimestamp: entryTS,
		ExitTimestamp:  exitTS,
		DistanceFeet:   distanceFeet,
		SpeedMph:       speedMph,
		SpeedLimitMph:  speedLimit,
		RecordedAt:     now,
		IsOverSpeed:    speedMph > speedLimit,
		PlateImageRef:  readingA.PlateImageRef,
		RawReadings:    []detection.PlateReading{*readingA, *readingB},
	}

	previous, err := s.repo.Commit(ctx, record)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicate
		}
		s.log.Error().Err(err).Str("plate", record.Plate).Msg("failed to persist detection")
		return nil, fmt.Errorf("failed to persist detection: %w", err)
	}

	result := &DetectResult{
		Record:   record,
		ReadingA: readingA,
		ReadingB: readingB,
	}
	if previous != nil {
		result.Warning = "Previous detection exists for this plate"
	}

	s.log.Info().
		Str("plate", record.Plate).
		Float64("speed_mph", record.SpeedMph).
		Bool("over_speed", record.IsOverSpeed).
		Time("entry", entryTS).
		Time("exit", exitTS).
		Msg("recorded speed detection")

	return result, nil
}

// ListDetections returns all persisted records, newest first.
func (s *DetectionService) ListDetections(ctx context.Context) ([]detection.Record, error) {
	return s.repo.ListAll(ctx)
}

// Stats summarizes the store for the admin surface.
func (s *DetectionService) Stats(ctx context.Context) (total, overSpeed int64, err error) {
	total, err = s.repo.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	overSpeed, err = s.repo.CountOverSpeed(ctx)
	if err != nil {
		return 0, 0, err
	}
	return total, overSpeed, nil
}

func (s *DetectionService) validateInput(input DetectInput) (distanceFeet, speedLimit float64, err error) {
	if len(input.FileA) == 0 || len(input.FileB) == 0 {
		return 0, 0, fmt.Errorf("%w: both images are required", ErrInvalidInput)
	}
	if !allowedFile(input.FilenameA) || !allowedFile(input.FilenameB) {
		return 0, 0, fmt.Errorf("%w: invalid file type", ErrInvalidInput)
	}

	distanceFeet, err = strconv.ParseFloat(strings.TrimSpace(input.Distance), 64)
	if err != nil || distanceFeet <= 0 {
		return 0, 0, fmt.Errorf("%w: distance must be a positive number", ErrInvalidInput)
	}

	speedLimit, err = strconv.ParseFloat(strings.TrimSpace(input.SpeedLimit), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid speed limit value", ErrInvalidInput)
	}

	return distanceFeet, speedLimit, nil
}

func allowedFile(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

func wellFormed(reading *detection.PlateReading) bool {
	return reading.NormalizedPlate != nil && plate.IsWellFormed(*reading.NormalizedPlate)
}

func plateOrEmpty(reading *detection.PlateReading) string {
	if reading.NormalizedPlate == nil {
		return ""
	}
	return *reading.NormalizedPlate
}
