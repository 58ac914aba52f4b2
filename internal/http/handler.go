package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/idevanshrai/RoadVision/internal/analytics"
	"github.com/idevanshrai/RoadVision/internal/config"
	"github.com/idevanshrai/RoadVision/internal/domain/detection"
	"github.com/idevanshrai/RoadVision/internal/http/middleware"
	"github.com/idevanshrai/RoadVision/internal/service"
)

type Handler struct {
	detectionService *service.DetectionService
	analyticsService *service.AnalyticsService
	config           *config.Config
	log              zerolog.Logger
}

func NewHandler(
	detectionService *service.DetectionService,
	analyticsService *service.AnalyticsService,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		detectionService: detectionService,
		analyticsService: analyticsService,
		config:           cfg,
		log:              log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/", h.index)

	public := r.Group("/api")
	{
		public.POST("/detect", h.detect)
		public.GET("/detections", h.listDetections)
		public.GET("/detections/chart-data", h.chartData)
		public.GET("/analytics", h.analyticsChart)
		public.GET("/plate_image/:filename", h.plateImage)
	}

	protected := r.Group("/api/admin")
	protected.Use(authMiddleware)
	{
		protected.GET("/stats", h.adminStats)
	}
}

func (h *Handler) index(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, `<h1>RoadVision API</h1>
<p>Available endpoints:</p>
<ul>
    <li>POST /api/detect - Process license plate images</li>
    <li>GET /api/detections - Get detection history</li>
    <li>GET /api/detections/chart-data - Get chart aggregates</li>
    <li>GET /api/analytics - Get speed analytics graph</li>
    <li>GET /api/plate_image/{filename} - Get processed plate image</li>
</ul>
`)
}

func (h *Handler) detect(c *gin.Context) {
	fileA, filenameA, err := readUpload(c, "fileA")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Missing image files"))
		return
	}
	fileB, filenameB, err := readUpload(c, "fileB")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Missing image files"))
		return
	}

	input := service.DetectInput{
		FileA:      fileA,
		FileB:      fileB,
		FilenameA:  filenameA,
		FilenameB:  filenameB,
		Distance:   c.PostForm("distance"),
		SpeedLimit: c.PostForm("speedLimit"),
	}

	result, err := h.detectionService.ProcessDetection(c.Request.Context(), input)
	if err != nil {
		h.handleDetectError(c, err)
		return
	}

	if result.FormatWarning {
		c.JSON(http.StatusOK, gin.H{
			"error":       "Plate format warning",
			"message":     result.Warning,
			"plateA":      result.ReadingA,
			"plateB":      result.ReadingB,
			"plateImageA": h.plateImageURL(result.ReadingA),
			"plateImageB": h.plateImageURL(result.ReadingB),
		})
		return
	}

	response := gin.H{
		"success":   true,
		"detection": result.Record,
	}
	if result.Record.PlateImageRef != nil {
		response["plate_image_url"] = "/api/plate_image/" + *result.Record.PlateImageRef
	}
	if result.Warning != "" {
		response["warning"] = result.Warning
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) handleDetectError(c *gin.Context, err error) {
	var mismatch *service.MismatchError
	if errors.As(err, &mismatch) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":       "Plate mismatch",
			"message":     err.Error(),
			"plateA":      mismatch.ReadingA,
			"plateB":      mismatch.ReadingB,
			"plateImageA": h.plateImageURL(mismatch.ReadingA),
			"plateImageB": h.plateImageURL(mismatch.ReadingB),
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrDecode),
		errors.Is(err, service.ErrDetection),
		errors.Is(err, service.ErrTemporalOrder):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrDuplicate):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Duplicate detection",
			"message": err.Error(),
		})
	default:
		h.log.Error().Err(err).Msg("detection pipeline failed")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func (h *Handler) listDetections(c *gin.Context) {
	records, err := h.detectionService.ListDetections(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list detections")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) chartData(c *gin.Context) {
	data, err := h.analyticsService.ChartData(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to build chart data")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *Handler) analyticsChart(c *gin.Context) {
	times, speeds, err := h.analyticsService.SpeedSeries(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load speed series")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	png, err := analytics.RenderSpeedChart(times, speeds, time.Now())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to render analytics chart")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) plateImage(c *gin.Context) {
	// Strip any path components so requests cannot escape the image dir.
	filename := filepath.Base(c.Param("filename"))
	path := filepath.Join(h.config.Detection.PlateImageDir, filename)

	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, errorResponse("Plate image not found"))
		return
	}

	c.File(path)
}

func (h *Handler) adminStats(c *gin.Context) {
	claims, ok := middleware.MustClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	total, overSpeed, err := h.detectionService.Stats(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load detection stats")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	h.log.Info().Str("user_id", claims.UserID).Msg("admin stats requested")

	c.JSON(http.StatusOK, gin.H{
		"total_detections": total,
		"over_speed":       overSpeed,
	})
}

func (h *Handler) plateImageURL(reading *detection.PlateReading) *string {
	if reading == nil || reading.PlateImageRef == nil {
		return nil
	}
	url := "/api/plate_image/" + *reading.PlateImageRef
	return &url
}

func readUpload(c *gin.Context, field string) ([]byte, string, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	data, err := readAll(header)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

func readAll(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
