package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusResolved   TicketStatus = "Resolved"
)

// TicketPriority enumerates reporter-selected urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
)

// TicketCategory is the fixed label set produced by the classifier.
type TicketCategory string

const (
	CategoryPayment     TicketCategory = "Payment Issue"
	CategoryLogin       TicketCategory = "Login Issue"
	CategoryAppBug      TicketCategory = "App Bug"
	CategoryRefund      TicketCategory = "Refund Request"
	CategoryPerformance TicketCategory = "Performance"
	CategoryOther       TicketCategory = "Other"
)

// Categories lists every valid category label.
func Categories() []TicketCategory {
	return []TicketCategory{
		CategoryPayment,
		CategoryLogin,
		CategoryAppBug,
		CategoryRefund,
		CategoryPerformance,
		CategoryOther,
	}
}

// ValidCategory reports whether label belongs to the fixed set.
func ValidCategory(label TicketCategory) bool {
	for _, c := range Categories() {
		if c == label {
			return true
		}
	}
	return false
}

// ValidPriority reports whether p is one of Low, Medium, High.
func ValidPriority(p TicketPriority) bool {
	return p == TicketPriorityLow || p == TicketPriorityMedium || p == TicketPriorityHigh
}

// Ticket is the aggregate for reported issues. ID, Category and
// CreatedAt are assigned at creation and immutable afterwards.
type Ticket struct {
	ID            string
	ReporterName  string
	ReporterEmail string
	Problem       string
	Category      TicketCategory
	Priority      TicketPriority
	Status        TicketStatus
	CreatedAt     time.Time
}
