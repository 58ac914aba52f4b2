package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/idevanshrai/RoadVision/internal/db"
	"github.com/idevanshrai/RoadVision/internal/domain/detection"
	"github.com/idevanshrai/RoadVision/internal/imaging"
	"github.com/idevanshrai/RoadVision/internal/repository"
)

type stubReader struct {
	readings []*detection.PlateReading
	err      error
	calls    int
}

func (s *stubReader) Read(raw *imaging.RawImage) (*detection.PlateReading, error) {
	if s.err != nil {
		return nil, s.err
	}
	reading := s.readings[s.calls%len(s.readings)]
	s.calls++
	return reading, nil
}

func newReading(plateText string) *detection.PlateReading {
	r := &detection.PlateReading{RawText: plateText}
	if plateText != "" {
		p := plateText
		r.NormalizedPlate = &p
	}
	return r
}

func newTestRepo(t *testing.T) *repository.DetectionRepository {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.RunMigrations(database, "sqlite"); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return repository.NewDetectionRepository(database)
}

func newTestService(t *testing.T, repo *repository.DetectionRepository, reader PlateReader) *DetectionService {
	t.Helper()
	svc := NewDetectionService(repo, reader, time.UTC, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func validInput(t *testing.T) DetectInput {
	return DetectInput{
		FileA:      pngBytes(t),
		FileB:      pngBytes(t),
		FilenameA:  "entry.png",
		FilenameB:  "exit.png",
		Distance:   "100",
		SpeedLimit: "25",
	}
}

func TestProcessDetection_Success(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &stubReader{readings: []*detection.PlateReading{newReading("ABC123")}})

	result, err := svc.ProcessDetection(context.Background(), validInput(t))
	if err != nil {
		t.Fatalf("ProcessDetection failed: %v", err)
	}

	if result.Record == nil {
		t.Fatal("Record is nil")
	}
	if result.Record.Plate != "ABC123" {
		t.Errorf("Plate = %q, want ABC123", result.Record.Plate)
	}
	// 100ft over the one-minute fallback window is 1.1 mph.
	if result.Record.SpeedMph != 1.1 {
		t.Errorf("SpeedMph = %v, want 1.1", result.Record.SpeedMph)
	}
	if result.Record.IsOverSpeed {
		t.Error("IsOverSpeed = true, want false at 1.1 mph against a 25 limit")
	}
	if result.Record.PreviousDetectionRef != nil {
		t.Errorf("PreviousDetectionRef = %v, want nil on first detection", result.Record.PreviousDetectionRef)
	}
	if result.Warning != "" {
		t.Errorf("Warning = %q, want empty", result.Warning)
	}

	records, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("persisted records = %d, want 1", len(records))
	}
}

func TestProcessDetection_OverSpeed(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &stubReader{readings: []*detection.PlateReading{newReading("ABC123")}})

	input := validInput(t)
	input.Distance = "10000"
	input.SpeedLimit = "1"

	result, err := svc.ProcessDetection(context.Background(), input)
	if err != nil {
		t.Fatalf("ProcessDetection failed: %v", err)
	}
	if !result.Record.IsOverSpeed {
		t.Errorf("IsOverSpeed = false for %v mph against a 1 mph limit", result.Record.SpeedMph)
	}
}

func TestProcessDetection_InputValidation(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &stubReader{readings: []*detection.PlateReading{newReading("ABC123")}})

	tests := []struct {
		name   string
		mutate func(*DetectInput)
	}{
		{"missing file A", func(in *DetectInput) { in.FileA = nil }},
		{"missing file B", func(in *DetectInput) { in.FileB = nil }},
		{"bad extension", func(in *DetectInput) { in.FilenameA = "entry.tiff" }},
		{"no extension", func(in *DetectInput) { in.FilenameB = "exit" }},
		{"zero distance", func(in *DetectInput) { in.Distance = "0" }},
		{"negative distance", func(in *DetectInput) { in.Distance = "-50" }},
		{"unparseable distance", func(in *DetectInput) { in.Distance = "far" }},
		{"unparseable speed limit", func(in *DetectInput) { in.SpeedLimit = "fast" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput(t)
			tt.mutate(&input)
			_, err := svc.ProcessDetection(context.Background(), input)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestProcessDetection_DecodeFailure(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &stubReader{readings: []*detection.PlateReading{newReading("ABC123")}})

	input := validInput(t)
	input.FileA = []byte("not an image")

	_, err := svc.ProcessDetection(context.Background(), input)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
	if got := err.Error(); !strings.Contains(got, "file A") {
		t.Errorf("error %q should name file A", got)
	}

	input = validInput(t)
	input.FileB = []byte("not an image")
	_, err = svc.ProcessDetection(context.Background(), input)
	if !errors.Is(err, ErrDecode) || !strings.Contains(err.Error(), "file B") {
		t.Errorf("err = %v, want ErrDecode naming file B", err)
	}
}

func TestProcessDetection_ReaderFailure(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &stubReader{err: errors.New("model crashed")})

	_, err := svc.ProcessDetection(context.Background(), validInput(t))
	if !errors.Is(err, ErrDetection) {
		t.Errorf("err = %v, want ErrDetection", err)
	}
}

func TestProcessDetection_FormatWarning(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &stubReader{readings: []*detection.PlateReading{
		newReading("AB"), newReading("ABC123"),
	}})

	result, err := svc.ProcessDetection(context.Background(), validInput(t))
	if err != nil {
		t.Fatalf("ProcessDetection failed: %v", err)
	}
	if !result.FormatWarning {
		t.Fatal("FormatWarning = false, want true for a 2-char plate")
	}
	if result.Record != nil {
		t.Error("Record should be nil on a format warning")
	}
	if result.ReadingA == nil || result.ReadingB == nil {
		t.Error("format warning must carry both readings")
	}

	records, _ := repo.ListAll(context.Background())
	if len(records) != 0 {
		t.Errorf("persisted records = %d, want 0 (warnings are not persisted)", len(records))
	}
}

func TestProcessDetection_FormatAcceptsThreeChars(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &stubReader{readings: []*detection.PlateReading{newReading("ABC")}})

	result, err := svc.ProcessDetection(context.Background(), validInput(t))
	if err != nil {
		t.Fatalf("ProcessDetection failed: %v", err)
	}
	if result.FormatWarning {
		t.Error("FormatWarning = true for a 3-char plate, want accepted")
	}
	if result.Record == nil {
		t.Error("Record is nil, want persisted detection")
	}
}

func TestProcessDetection_Mismatch(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &stubReader{readings: []*detection.PlateReading{
		newReading("ABC123"), newReading("XYZ789"),
	}})

	_, err := svc.ProcessDetection(context.Background(), validInput(t))
	if !errors.Is(err, ErrMismatch) {
		t.Fatalf("err = %v, want ErrMismatch", err)
	}

	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatal("err should carry both readings as *MismatchError")
	}
	if mismatch.ReadingA == nil || mismatch.ReadingB == nil {
		t.Error("mismatch error must carry both readings")
	}

	records, _ := repo.ListAll(context.Background())
	if len(records) != 0 {
		t.Errorf("persisted records = %d, want 0 (mismatches are not persisted)", len(records))
	}
}

func TestProcessDetection_FuzzyMatchAbsorbsOCRNoise(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &stubReader{readings: []*detection.PlateReading{
		newReading("ABC1230"), newReading("ABC123O"),
	}})

	result, err := svc.ProcessDetection(context.Background(), validInput(t))
	if err != nil {
		t.Fatalf("ProcessDetection failed: %v", err)
	}
	if result.Record == nil {
		t.Fatal("Record is nil, want fuzzy-matched detection")
	}
	if result.Record.Plate != "ABC1230" {
		t.Errorf("Plate = %q, want the entry-image plate ABC1230", result.Record.Plate)
	}
}

func TestProcessDetection_Duplicate(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &stubReader{readings: []*detection.PlateReading{newReading("ABC123")}})

	if _, err := svc.ProcessDetection(context.Background(), validInput(t)); err != nil {
		t.Fatalf("first ProcessDetection failed: %v", err)
	}

	// Same fixed clock, so the fallback timestamps are identical: well
	// inside the duplicate window.
	_, err := svc.ProcessDetection(context.Background(), validInput(t))
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}

	records, _ := repo.ListAll(context.Background())
	if len(records) != 1 {
		t.Errorf("persisted records = %d, want 1", len(records))
	}
}

func TestProcessDetection_PreviousDetectionWarning(t *testing.T) {
	repo := newTestRepo(t)
	svc := newTestService(t, repo, &stubReader{readings: []*detection.PlateReading{newReading("ABC123")}})

	if _, err := svc.ProcessDetection(context.Background(), validInput(t)); err != nil {
		t.Fatalf("first ProcessDetection failed: %v", err)
	}

	// Two hours later: outside the duplicate window, same plate.
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC) }

	result, err := svc.ProcessDetection(context.Background(), validInput(t))
	if err != nil {
		t.Fatalf("second ProcessDetection failed: %v", err)
	}
	if result.Warning == "" {
		t.Error("Warning is empty, want previous-detection warning")
	}
	if result.Record.PreviousDetectionRef == nil {
		t.Error("PreviousDetectionRef is nil, want recording time of the prior match")
	}
}
