package models

import "time"

// ReportStatus captures the lifecycle state of a report.
type ReportStatus string

const (
	ReportStatusPending     ReportStatus = "pending"
	ReportStatusUnderReview ReportStatus = "under_review"
	ReportStatusVerified    ReportStatus = "verified"
	ReportStatusClosed      ReportStatus = "closed"
	ReportStatusRejected    ReportStatus = "rejected"
)

// ReportStatuses lists every status in display order.
var ReportStatuses = []ReportStatus{
	ReportStatusPending,
	ReportStatusUnderReview,
	ReportStatusVerified,
	ReportStatusClosed,
	ReportStatusRejected,
}

var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportStatusPending:     {ReportStatusUnderReview, ReportStatusRejected, ReportStatusClosed},
	ReportStatusUnderReview: {ReportStatusVerified, ReportStatusRejected, ReportStatusClosed},
	ReportStatusVerified:    {ReportStatusClosed},
}

// Valid reports whether s is a known status.
func (s ReportStatus) Valid() bool {
	for _, known := range ReportStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s ReportStatus) Terminal() bool {
	return len(reportTransitions[s]) == 0
}

// CanTransition reports whether a report may move from one status to another.
func CanTransition(from, to ReportStatus) bool {
	for _, next := range reportTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from s.
func AllowedTransitions(s ReportStatus) []ReportStatus {
	next := reportTransitions[s]
	out := make([]ReportStatus, len(next))
	copy(out, next)
	return out
}

// ReportCategory classifies a report.
type ReportCategory string

const (
	CategoryCorruption             ReportCategory = "Corruption"
	CategoryFraud                  ReportCategory = "Fraud"
	CategoryEnvironmentalViolation ReportCategory = "Environmental Violation"
	CategoryWorkplaceSafety        ReportCategory = "Workplace Safety"
	CategoryDiscrimination         ReportCategory = "Discrimination"
	CategoryOther                  ReportCategory = "Other"
)

// ReportCategories lists the accepted categories.
var ReportCategories = []ReportCategory{
	CategoryCorruption,
	CategoryFraud,
	CategoryEnvironmentalViolation,
	CategoryWorkplaceSafety,
	CategoryDiscrimination,
	CategoryOther,
}

// Valid reports whether c is an accepted category.
func (c ReportCategory) Valid() bool {
	for _, known := range ReportCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Provenance values for reports created through the messaging channel.
const (
	WhatsAppLocationMarker = "Submitted via WhatsApp"
	WhatsAppReportTitle    = "WhatsApp Report"
)

// Report is a whistleblower submission.
type Report struct {
	ID             string         `db:"id" json:"id"`
	AnonymousToken string         `db:"anonymous_token" json:"anonymousToken"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	Category       ReportCategory `db:"category" json:"category"`
	Location       *string        `db:"location" json:"location,omitempty"`
	Status         ReportStatus   `db:"status" json:"status"`
	ChannelRef     *string        `db:"channel_ref" json:"-"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}

// FromExternalChannel reports whether the report carries the messaging
// channel provenance marker.
func (r *Report) FromExternalChannel() bool {
	return r != nil && r.Location != nil && *r.Location == WhatsAppLocationMarker
}

// ReportStats aggregates report counts for the admin dashboard.
type ReportStats struct {
	Total    int                  `json:"total"`
	ByStatus map[ReportStatus]int `json:"byStatus"`
}

// StatusCount is a single row of a status histogram.
type StatusCount struct {
	Status ReportStatus `db:"status"`
	Count  int          `db:"count"`
}
