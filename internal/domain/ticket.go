package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketCategory enumerates triage categories.
type TicketCategory string

const (
	CategoryBilling        TicketCategory = "Billing"
	CategoryTechnical      TicketCategory = "Technical"
	CategoryFeatureRequest TicketCategory = "Feature Request"
)

// TicketUrgency enumerates triage urgency levels.
type TicketUrgency string

const (
	UrgencyHigh   TicketUrgency = "High"
	UrgencyMedium TicketUrgency = "Medium"
	UrgencyLow    TicketUrgency = "Low"
)

// ReplySource tracks provenance of the current response draft.
type ReplySource string

const (
	ReplyMadeByAI      ReplySource = "AI"
	ReplyMadeByHumanAI ReplySource = "HUMAN_AI"
)

// Tag markers appended by the triage pipeline.
const (
	TagTriageDone     = "triage-done"
	TagTriageNoResult = "triage-no-result"
	TagTriageError    = "triage-error"
)

// Ticket is the aggregate for support requests. Title and Content are
// immutable after creation; classification fields stay nil until the
// ticket has been triaged at least once.
type Ticket struct {
	ID             int64
	CreatorID      *int64
	Title          string
	Content        string
	Category       *TicketCategory
	SentimentScore *int
	Urgency        *TicketUrgency
	ResponseDraft  *string
	Response       *string
	ReplyMadeBy    *ReplySource
	Status         TicketStatus
	Tag            string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasUsableDraft reports whether the current draft is non-blank.
func (t *Ticket) HasUsableDraft() bool {
	return t.ResponseDraft != nil && strings.TrimSpace(*t.ResponseDraft) != ""
}

// IsEditable reports whether the draft may still be changed.
func (t *Ticket) IsEditable() bool {
	return t.Status == TicketStatusOpen || t.Status == TicketStatusInProgress
}

// AppendTag returns the comma-joined tag string with marker appended.
func (t *Ticket) AppendTag(marker string) string {
	if t.Tag == "" {
		return marker
	}
	return t.Tag + "," + marker
}

// ValidCategory reports whether value is one of the allowed categories.
func ValidCategory(value string) bool {
	switch TicketCategory(value) {
	case CategoryBilling, CategoryTechnical, CategoryFeatureRequest:
		return true
	}
	return false
}

// ValidUrgency reports whether value is one of the allowed urgency levels.
func ValidUrgency(value string) bool {
	switch TicketUrgency(value) {
	case UrgencyHigh, UrgencyMedium, UrgencyLow:
		return true
	}
	return false
}
