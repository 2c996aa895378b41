package httpserver

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/oceansense/edna-go/internal/converter"
	"github.com/oceansense/edna-go/internal/datastore"
	"github.com/oceansense/edna-go/internal/errors"
)

// uploadResponse is returned from the upload endpoint once the sample is
// accepted; processing continues asynchronously.
type uploadResponse struct {
	ID     uint   `json:"id"`
	Status string `json:"status"`
}

// handleUploadSample accepts a multipart sample upload, persists the
// artifact and the sample record, and hands the sample to the pipeline.
// The response returns as soon as the sample is queued.
func (s *Server) handleUploadSample(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file field")
	}

	format := converter.FormatFor(fileHeader.Filename)
	if format == "" {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("unsupported sample format: %s", fileHeader.Filename))
	}

	if err := os.MkdirAll(s.settings.Storage.UploadPath, 0o755); err != nil {
		s.logger.Error("failed to create upload directory", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "storage unavailable")
	}

	// Prefix with a uuid so concurrent uploads of the same filename
	// never collide.
	storedName := uuid.New().String() + "_" + filepath.Base(fileHeader.Filename)
	storedPath := filepath.Join(s.settings.Storage.UploadPath, storedName)

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer src.Close()

	dst, err := os.Create(storedPath)
	if err != nil {
		s.logger.Error("failed to store upload", "path", storedPath, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "storage unavailable")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(storedPath)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store upload")
	}

	sample := datastore.Sample{
		UserID:         parseUintParam(c.FormValue("user_id")),
		OriginalName:   fileHeader.Filename,
		OriginalFormat: format,
		Latitude:       parseFloatParam(c.FormValue("latitude")),
		Longitude:      parseFloatParam(c.FormValue("longitude")),
		LocationName:   c.FormValue("location_name"),
		Collector:      c.FormValue("collector"),
		Notes:          c.FormValue("notes"),
		Status:         datastore.SampleStatusUploaded,
		UploadedAt:     time.Now(),
	}
	if err := s.store.CreateSample(&sample); err != nil {
		os.Remove(storedPath)
		s.logger.Error("failed to create sample record", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create sample")
	}

	if err := s.pipeline.Enqueue(sample.ID, storedPath, fileHeader.Filename); err != nil {
		s.logger.Error("failed to enqueue sample", "sample_id", sample.ID, "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "pipeline unavailable")
	}

	return c.JSON(http.StatusAccepted, uploadResponse{ID: sample.ID, Status: sample.Status})
}

// sampleResponse bundles a sample with its recorded detections.
type sampleResponse struct {
	Sample     datastore.Sample      `json:"sample"`
	Detections []datastore.Detection `json:"detections"`
}

func (s *Server) handleGetSample(c echo.Context) error {
	id := parseUintParam(c.Param("id"))
	if id == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sample id")
	}

	sample, err := s.store.GetSample(id)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "sample not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load sample")
	}

	detections, err := s.store.GetDetectionsBySample(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load detections")
	}

	return c.JSON(http.StatusOK, sampleResponse{Sample: sample, Detections: detections})
}

func (s *Server) handleListAlerts(c echo.Context) error {
	unreadOnly := c.QueryParam("unread") == "true"
	limit := int(parseUintParam(c.QueryParam("limit")))
	if limit == 0 {
		limit = 100
	}

	alerts, err := s.store.ListAlerts(unreadOnly, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load alerts")
	}
	return c.JSON(http.StatusOK, alerts)
}

func (s *Server) handleMarkAlertRead(c echo.Context) error {
	id := parseUintParam(c.Param("id"))
	if id == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid alert id")
	}

	if err := s.store.MarkAlertRead(id); err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "alert not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update alert")
	}
	return c.NoContent(http.StatusNoContent)
}

func parseUintParam(s string) uint {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

func parseFloatParam(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
