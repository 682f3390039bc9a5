package domain

import "time"

// RecommendationEntry records one suggestion served for a ticket. The
// log feeds content-gap analytics: categories with many tickets but few
// served suggestions indicate missing coverage.
type RecommendationEntry struct {
	Time       time.Time
	TicketID   string
	Problem    string
	Suggestion string
}
