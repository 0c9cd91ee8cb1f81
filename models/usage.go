package models

import "time"

// DateLayout is the calendar-day key used by the API usage log.
const DateLayout = "2006-01-02"

// APIUsage is the per-calendar-day external API call counter. It is the
// only cross-session shared mutable state and must be incremented through
// the quota governor.
type APIUsage struct {
	ID        int64     `json:"id"`
	Date      string    `json:"date"` // DateLayout
	CallCount int       `json:"call_count"`
	LastReset time.Time `json:"last_reset"`
	CreatedAt time.Time `json:"created_at"`
}
