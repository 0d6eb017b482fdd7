package models

// EventType names a notification variant.
type EventType string

const (
	EventNewReport    EventType = "NEW_REPORT"
	EventNewEvidence  EventType = "NEW_EVIDENCE"
	EventStatusChange EventType = "STATUS_CHANGE"
)

// Event is a closed set of push notifications. Each variant carries a fixed,
// non-sensitive payload.
type Event interface {
	EventType() EventType
}

// NewReportEvent announces a freshly submitted report.
type NewReportEvent struct {
	ID       string         `json:"id"`
	Category ReportCategory `json:"category"`
	Status   ReportStatus   `json:"status"`
}

// EventType implements Event.
func (NewReportEvent) EventType() EventType { return EventNewReport }

// NewEvidenceEvent announces evidence attached to a report.
type NewEvidenceEvent struct {
	ReportID string `json:"reportId"`
	FileType string `json:"fileType"`
}

// EventType implements Event.
func (NewEvidenceEvent) EventType() EventType { return EventNewEvidence }

// StatusChangeEvent announces a report status transition.
type StatusChangeEvent struct {
	ID     string       `json:"id"`
	Status ReportStatus `json:"status"`
}

// EventType implements Event.
func (StatusChangeEvent) EventType() EventType { return EventStatusChange }

// EventEnvelope is the wire form of an event.
type EventEnvelope struct {
	Type EventType `json:"type"`
	Data Event     `json:"data"`
}

// Envelope wraps an event for serialization.
func Envelope(e Event) EventEnvelope {
	return EventEnvelope{Type: e.EventType(), Data: e}
}
