package models

import (
	"strings"
	"time"
)

// DefaultOrganization placeholder used when a notice does not name its buyer
const DefaultOrganization = "Oppdragsgiver ikke oppgitt"

// TenderCandidate normalized notice from one ingest run. Not persisted.
type TenderCandidate struct {
	Title        string
	Organization string
	Location     string // optional
	Deadline     string // free text, never parsed
	URL          string
	Category     string // optional
}

// DeliveryMode how a subscriber wants to receive alerts
type DeliveryMode string

const (
	DeliveryImmediate   DeliveryMode = "instant"
	DeliveryDailyDigest DeliveryMode = "daily_digest"
)

// ParseDeliveryMode accepts the stored values plus a few aliases
func ParseDeliveryMode(s string) (DeliveryMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "instant", "immediate":
		return DeliveryImmediate, true
	case "daily_digest", "dailydigest", "digest", "daily":
		return DeliveryDailyDigest, true
	}
	return "", false
}

// Keyword search term owned by a subscriber
type Keyword struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Text      string    `json:"keyword"`
	CreatedAt time.Time `json:"created_at"`
}

// Alert recorded match between a notice and one subscriber keyword
type Alert struct {
	ID                 string    `json:"id"`
	OwnerID            string    `json:"user_id"`
	NoticeTitle        string    `json:"tender_title"`
	NoticeOrganization string    `json:"tender_organization"`
	NoticeLocation     *string   `json:"tender_location"`
	NoticeDeadline     *string   `json:"tender_deadline"`
	NoticeURL          *string   `json:"tender_url"`
	NoticeCategory     *string   `json:"tender_category"`
	MatchedKeyword     string    `json:"matched_keyword"`
	CreatedAt          time.Time `json:"created_at"`
}

// AlertKey idempotency key of an alert
type AlertKey struct {
	OwnerID        string
	NoticeTitle    string
	MatchedKeyword string
}

// Key returns the idempotency key
func (a *Alert) Key() AlertKey {
	return AlertKey{
		OwnerID:        a.OwnerID,
		NoticeTitle:    a.NoticeTitle,
		MatchedKeyword: a.MatchedKeyword,
	}
}

// NewAlert builds an unsaved alert from a candidate
func NewAlert(ownerID string, c TenderCandidate, keyword string) Alert {
	return Alert{
		OwnerID:            ownerID,
		NoticeTitle:        c.Title,
		NoticeOrganization: c.Organization,
		NoticeLocation:     optional(c.Location),
		NoticeDeadline:     optional(c.Deadline),
		NoticeURL:          optional(c.URL),
		NoticeCategory:     optional(c.Category),
		MatchedKeyword:     keyword,
	}
}

// SubscriberPreference per-subscriber delivery settings
type SubscriberPreference struct {
	SubscriberID         string       `json:"id"`
	Email                string       `json:"email"`
	NotificationsEnabled bool         `json:"email_notifications"`
	DeliveryMode         DeliveryMode `json:"notification_frequency"`
	LastNotifiedAt       *time.Time   `json:"last_notified_at,omitempty"`
}

// WantsImmediate true when the immediate path should send
func (p *SubscriberPreference) WantsImmediate() bool {
	return p.NotificationsEnabled && p.DeliveryMode == DeliveryImmediate
}

// WantsDigest true when the digest path should send
func (p *SubscriberPreference) WantsDigest() bool {
	return p.NotificationsEnabled && p.DeliveryMode == DeliveryDailyDigest
}

// Deref returns the pointed-to string or fallback
func Deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
