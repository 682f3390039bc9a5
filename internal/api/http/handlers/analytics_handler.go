package handlers

import (
	"bytes"
	"encoding/csv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/smart-support/internal/service"
	csvstore "github.com/spec-kit/smart-support/internal/store/csv"
	apperrors "github.com/spec-kit/smart-support/pkg/util/errorutil"
)

// AnalyticsHandler exposes summary aggregates, content-gap detection and
// the CSV export.
type AnalyticsHandler struct {
	analytics     *service.AnalyticsService
	tickets       *service.TicketService
	notifications *service.NotificationService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService, tickets *service.TicketService, notifications *service.NotificationService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, tickets: tickets, notifications: notifications}
}

// Summary handles GET /analytics/summary.
func (h *AnalyticsHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.analytics.Summarize(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// RunContentGap handles POST /analytics/content-gap/run.
func (h *AnalyticsHandler) RunContentGap(c *fiber.Ctx) error {
	report, err := h.analytics.DetectContentGap(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// SendReport handles POST /analytics/report.
func (h *AnalyticsHandler) SendReport(c *fiber.Ctx) error {
	if err := h.notifications.SendSummaryReport(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"sent": true}})
}

// ExportTickets handles GET /export/tickets.csv.
func (h *AnalyticsHandler) ExportTickets(c *fiber.Ctx) error {
	tickets, err := h.tickets.ListTickets(c.UserContext())
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"TicketID", "Name", "Email", "Problem", "Priority", "Timestamp", "Category", "Status"}); err != nil {
		return apperrors.NewInternalError(err)
	}
	for _, t := range tickets {
		record := []string{
			t.ID,
			t.ReporterName,
			t.ReporterEmail,
			t.Problem,
			string(t.Priority),
			t.CreatedAt.Format(csvstore.TimeLayout),
			string(t.Category),
			string(t.Status),
		}
		if err := w.Write(record); err != nil {
			return apperrors.NewInternalError(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apperrors.NewInternalError(err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="tickets.csv"`)
	return c.Send(buf.Bytes())
}
