package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/smart-support/internal/events"
	"github.com/spec-kit/smart-support/internal/notify"
)

// NotificationService fans domain events out to email and Slack. Send
// failures are logged and never propagate into request handling.
type NotificationService struct {
	dispatcher events.Dispatcher
	email      *notify.EmailSender
	slack      *notify.SlackSender
	analytics  *AnalyticsService
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, email *notify.EmailSender, slack *notify.SlackSender, analytics *AnalyticsService, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		email:      email,
		slack:      slack,
		analytics:  analytics,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventContentGapDetected, n.handleContentGap)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	text := fmt.Sprintf("New ticket %s [%s/%s] from %s: %s",
		event.TicketID, payload.Category, payload.Priority, payload.ReporterName, payload.Problem)
	n.deliver(ctx, "New support ticket "+event.TicketID, text)
	return nil
}

func (n *NotificationService) handleContentGap(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ContentGapDetectedPayload)
	if !ok {
		return nil
	}
	text := fmt.Sprintf("Content gap alert: %.0f%% of tickets mention %q without a knowledge-base answer (%d of %d, threshold %.0f%%)",
		payload.Rate*100, payload.Keyword, payload.Matching, payload.Total, payload.Threshold*100)
	n.deliver(ctx, "Content gap alert", text)
	return nil
}

// SendSummaryReport emails the current analytics summary.
func (n *NotificationService) SendSummaryReport(ctx context.Context) error {
	summary, err := n.analytics.Summarize(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Support summary\n\nTotal tickets: %d\n\nBy category:\n", summary.Total)
	writeCounts(&b, summary.ByCategory)
	b.WriteString("\nBy priority:\n")
	writeCounts(&b, summary.ByPriority)
	b.WriteString("\nBy status:\n")
	writeCounts(&b, summary.ByStatus)
	if len(summary.TopReporters) > 0 {
		b.WriteString("\nTop reporters:\n")
		for _, r := range summary.TopReporters {
			fmt.Fprintf(&b, "  %s: %d\n", r.Label, r.Count)
		}
	}

	if err := n.email.Send("Support summary report", b.String()); err != nil {
		n.logger.Warn("unable to send summary report", zap.Error(err))
		return err
	}
	return nil
}

func (n *NotificationService) deliver(ctx context.Context, subject, text string) {
	if err := n.email.Send(subject, text); err != nil {
		n.logger.Warn("email notification failed", zap.Error(err))
	}
	if err := n.slack.Send(ctx, text); err != nil {
		n.logger.Warn("slack notification failed", zap.Error(err))
	}
}

func writeCounts[K ~string](b *strings.Builder, counts map[K]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "  %s: %d\n", k, counts[K(k)])
	}
}
