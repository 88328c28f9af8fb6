package handlers

import (
	"bytes"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/reports"
	"brokerfolio/internal/services"
)

const defaultReportDays = 30

// ReportHandler renders downloadable PDF and Excel reports.
type ReportHandler struct {
	activityService  services.ActivityServicer
	messageService   services.MessageServicer
	analyticsService services.AnalyticsServicer
	renderer         *reports.Renderer
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(activityService services.ActivityServicer, messageService services.MessageServicer, analyticsService services.AnalyticsServicer, renderer *reports.Renderer) *ReportHandler {
	return &ReportHandler{
		activityService:  activityService,
		messageService:   messageService,
		analyticsService: analyticsService,
		renderer:         renderer,
	}
}

// ActivitiesReport handles the activity log report.
// @Summary     Activity report
// @Tags        reports
// @Produce     application/pdf
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security    BearerAuth
// @Param       format query string false "pdf (default) or xlsx"
// @Param       from   query string false "Start date (YYYY-MM-DD, report timezone)"
// @Param       to     query string false "End date inclusive (YYYY-MM-DD, report timezone)"
// @Success     200 {file} file "Report"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /reports/activities [get]
func (h *ReportHandler) ActivitiesReport(c *gin.Context) {
	format, from, to, err := h.reportParams(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	items, err := h.activityService.ActivityBetween(from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.send(c, "activities", format, h.renderer.Activities(from, to, items))
}

// MessagesReport handles the message report.
// @Summary     Message report
// @Tags        reports
// @Produce     application/pdf
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security    BearerAuth
// @Param       format query string false "pdf (default) or xlsx"
// @Param       from   query string false "Start date (YYYY-MM-DD, report timezone)"
// @Param       to     query string false "End date inclusive (YYYY-MM-DD, report timezone)"
// @Success     200 {file} file "Report"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /reports/messages [get]
func (h *ReportHandler) MessagesReport(c *gin.Context) {
	format, from, to, err := h.reportParams(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	items, err := h.messageService.MessagesBetween(from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.send(c, "messages", format, h.renderer.Messages(from, to, items))
}

// ExecutiveReport handles the executive broker report.
// @Summary     Executive broker report
// @Description Every broker's portfolios, category breakdown and active fixed-term records, largest invested first
// @Tags        reports
// @Produce     application/pdf
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security    BearerAuth
// @Param       format query string false "pdf (default) or xlsx"
// @Success     200 {file} file "Report"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /reports/executive [get]
func (h *ReportHandler) ExecutiveReport(c *gin.Context) {
	format, err := reports.ParseFormat(c.Query("format"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.analyticsService.GetExecutiveSummary(time.Now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.send(c, "executive", format, h.renderer.Executive(summary.Brokers, summary.Totals, summary.GainLossPct))
}

// reportParams reads format and the date range. Bare dates are calendar
// days in the report timezone; to covers its whole day.
func (h *ReportHandler) reportParams(c *gin.Context) (reports.Format, time.Time, time.Time, error) {
	format, err := reports.ParseFormat(c.Query("format"))
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}

	loc := h.renderer.Location()
	now := h.renderer.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	to := today.AddDate(0, 0, 1).Add(-time.Nanosecond)
	if v := c.Query("to"); v != "" {
		day, err := parseReportTime(v, loc)
		if err != nil {
			return "", time.Time{}, time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid to format, use RFC3339 or YYYY-MM-DD")
		}
		to = day
		if len(v) == len("2006-01-02") {
			to = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
	}

	from := today.AddDate(0, 0, -defaultReportDays)
	if v := c.Query("from"); v != "" {
		day, err := parseReportTime(v, loc)
		if err != nil {
			return "", time.Time{}, time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid from format, use RFC3339 or YYYY-MM-DD")
		}
		from = day
	}

	if from.After(to) {
		return "", time.Time{}, time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "from must not be after to")
	}
	return format, from, to, nil
}

func parseReportTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func (h *ReportHandler) send(c *gin.Context, base string, format reports.Format, doc *reports.Document) {
	var buf bytes.Buffer
	if err := doc.Write(&buf, format); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	sendFile(c, reports.FileName(base, format, h.renderer.Now()), format.ContentType(), buf.Bytes())
}
