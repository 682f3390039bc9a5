package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/smart-support/internal/domain"
	"github.com/spec-kit/smart-support/internal/events"
	"github.com/spec-kit/smart-support/internal/store"
)

// Summary aggregates the ticket table for the analytics endpoints.
type Summary struct {
	Total          int                           `json:"total"`
	ByCategory     map[domain.TicketCategory]int `json:"by_category"`
	ByPriority     map[domain.TicketPriority]int `json:"by_priority"`
	ByStatus       map[domain.TicketStatus]int   `json:"by_status"`
	TicketsPerDay  map[string]int                `json:"tickets_per_day"`
	TopReporters   []CountedLabel                `json:"top_reporters"`
	CommonProblems []CountedLabel                `json:"common_problems"`
}

// CountedLabel is a label with an occurrence count, sorted descending.
type CountedLabel struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// GapReport is the outcome of one content-gap detection run.
type GapReport struct {
	Keyword   string  `json:"keyword"`
	Total     int     `json:"total"`
	Matching  int     `json:"matching"`
	Rate      float64 `json:"rate"`
	Threshold float64 `json:"threshold"`
	Alerted   bool    `json:"alerted"`
}

// AnalyticsService computes aggregates over the ticket table and runs
// content-gap detection against the recommendation log.
type AnalyticsService struct {
	tickets         store.TicketStore
	recommendations store.RecommendationLog
	dispatcher      events.Dispatcher
	gapKeyword      string
	gapThreshold    float64
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(tickets store.TicketStore, recommendations store.RecommendationLog, dispatcher events.Dispatcher, gapKeyword string, gapThreshold float64) *AnalyticsService {
	return &AnalyticsService{
		tickets:         tickets,
		recommendations: recommendations,
		dispatcher:      dispatcher,
		gapKeyword:      strings.ToLower(gapKeyword),
		gapThreshold:    gapThreshold,
	}
}

// Summarize computes the dashboard aggregates.
func (s *AnalyticsService) Summarize(ctx context.Context) (Summary, error) {
	tickets, err := s.tickets.ListTickets(ctx, store.SortNone)
	if err != nil {
		return Summary{}, mapStoreError(err)
	}

	summary := Summary{
		Total:         len(tickets),
		ByCategory:    make(map[domain.TicketCategory]int),
		ByPriority:    make(map[domain.TicketPriority]int),
		ByStatus:      make(map[domain.TicketStatus]int),
		TicketsPerDay: make(map[string]int),
	}
	reporterCounts := make(map[string]int)
	problemCounts := make(map[string]int)

	for _, t := range tickets {
		summary.ByCategory[t.Category]++
		summary.ByPriority[t.Priority]++
		summary.ByStatus[t.Status]++
		summary.TicketsPerDay[t.CreatedAt.Format("2006-01-02")]++
		reporterCounts[t.ReporterName]++
		problemCounts[strings.ToLower(strings.TrimSpace(t.Problem))]++
	}

	summary.TopReporters = topCounts(reporterCounts, 5)
	summary.CommonProblems = topCounts(problemCounts, 5)
	return summary, nil
}

// DetectContentGap measures how often the gap keyword shows up in
// problems that the knowledge base never answered, and publishes an
// alert event when the rate reaches the threshold.
func (s *AnalyticsService) DetectContentGap(ctx context.Context) (GapReport, error) {
	tickets, err := s.tickets.ListTickets(ctx, store.SortNone)
	if err != nil {
		return GapReport{}, mapStoreError(err)
	}
	entries, err := s.recommendations.List(ctx)
	if err != nil {
		return GapReport{}, mapStoreError(err)
	}

	answered := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		answered[entry.TicketID] = struct{}{}
	}

	report := GapReport{
		Keyword:   s.gapKeyword,
		Total:     len(tickets),
		Threshold: s.gapThreshold,
	}
	for _, t := range tickets {
		if !strings.Contains(strings.ToLower(t.Problem), s.gapKeyword) {
			continue
		}
		if _, ok := answered[t.ID]; ok {
			continue
		}
		report.Matching++
	}
	if report.Total > 0 {
		report.Rate = float64(report.Matching) / float64(report.Total)
	}
	report.Alerted = report.Total > 0 && report.Rate >= s.gapThreshold

	if report.Alerted && s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventContentGapDetected,
			Timestamp: time.Now().UTC(),
			Payload: events.ContentGapDetectedPayload{
				Keyword:   report.Keyword,
				Rate:      report.Rate,
				Threshold: report.Threshold,
				Total:     report.Total,
				Matching:  report.Matching,
			},
		})
	}
	return report, nil
}

func topCounts(counts map[string]int, limit int) []CountedLabel {
	out := make([]CountedLabel, 0, len(counts))
	for label, count := range counts {
		out = append(out, CountedLabel{Label: label, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
