package store

import "time"

// License statuses recognised by the check endpoint.
const (
	StatusActive   = "active"
	StatusExpired  = "expired"
	StatusDisabled = "disabled"
)

// License plans.
const (
	PlanMonthly = "monthly"
	PlanYearly  = "yearly"
)

// License is a serial known to the reference check server.
type License struct {
	ID           string `gorm:"primaryKey;size:36"`
	SerialNumber string `gorm:"size:191;uniqueIndex"`
	UserName     string `gorm:"size:255"`
	PlanType     string `gorm:"size:16"`
	StartDate    string `gorm:"size:10"`
	ExpiryDate   string `gorm:"size:10"`
	Status       string `gorm:"size:16;index"`
	Notes        string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the record may pass a check.
func (l *License) IsActive() bool {
	return l != nil && l.Status == StatusActive
}

// ValidPlan reports whether plan is a known plan type.
func ValidPlan(plan string) bool {
	return plan == PlanMonthly || plan == PlanYearly
}

// ValidStatus reports whether status is a known license status.
func ValidStatus(status string) bool {
	switch status {
	case StatusActive, StatusExpired, StatusDisabled:
		return true
	default:
		return false
	}
}
