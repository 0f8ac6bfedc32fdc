package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/discussion-analysis/internal/dao"
)

// ReportLocator finds stored report files.
type ReportLocator interface {
	GetReport(reportID, format string) (string, bool, error)
	ListReportVersions(reportID string) ([]string, error)
}

// RecordingsHandler serves stored analysis results. Each request opens its
// own DAO session.
type RecordingsHandler struct {
	newSession func() dao.DataAccess
	reports    ReportLocator
}

func NewRecordingsHandler(newSession func() dao.DataAccess, reports ReportLocator) *RecordingsHandler {
	return &RecordingsHandler{newSession: newSession, reports: reports}
}

func (h *RecordingsHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	s := h.newSession()
	defer s.Close()

	recs, err := s.ListRecordings(c.UserContext(), limit)
	if err != nil {
		return daoError(c, err)
	}
	return c.JSON(recs)
}

// Get returns the discussion summary of a recording.
func (h *RecordingsHandler) Get(c *fiber.Ctx) error {
	s := h.newSession()
	defer s.Close()

	summary, err := s.GetDiscussionSummary(c.UserContext(), c.Params("id"))
	if err != nil {
		return daoError(c, err)
	}
	return c.JSON(summary)
}

func parseBound(c *fiber.Ctx, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Transcription returns segments, optionally restricted to ?start=&end=.
func (h *RecordingsHandler) Transcription(c *fiber.Ctx) error {
	var window dao.TimeRange
	var err error
	if window.Start, err = parseBound(c, "start"); err == nil {
		window.End, err = parseBound(c, "end")
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "start and end must be numbers",
			"code":  "ERR_INVALID_RANGE",
		})
	}

	s := h.newSession()
	defer s.Close()

	id := c.Params("id")
	if _, err := s.GetRecordingMetadata(c.UserContext(), id); err != nil {
		return daoError(c, err)
	}
	segments, err := s.GetTranscription(c.UserContext(), id, window)
	if err != nil {
		return daoError(c, err)
	}
	return c.JSON(segments)
}

func (h *RecordingsHandler) Sentiment(c *fiber.Ctx) error {
	s := h.newSession()
	defer s.Close()

	summary, err := s.GetSentimentAnalysis(c.UserContext(), c.Params("id"))
	if err != nil {
		return daoError(c, err)
	}
	return c.JSON(summary)
}

// Report sends the latest stored report in ?format= (html by default).
func (h *RecordingsHandler) Report(c *fiber.Ctx) error {
	id := c.Params("id")
	path, ok, err := h.reports.GetReport(id, c.Query("format"))
	if err != nil {
		return daoError(c, err)
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Report not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	return c.SendFile(path)
}

// Versions lists the stored report versions of a recording.
func (h *RecordingsHandler) Versions(c *fiber.Ctx) error {
	versions, err := h.reports.ListReportVersions(c.Params("id"))
	if err != nil {
		return daoError(c, err)
	}
	if versions == nil {
		versions = []string{}
	}
	return c.JSON(versions)
}
