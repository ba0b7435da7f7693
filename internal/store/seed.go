package store

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Ali-hajj/youware-source-code/internal/license"
)

// SeedLicense is one fixture entry in a seed file.
type SeedLicense struct {
	ID           string `json:"id"`
	SerialNumber string `json:"serial_number"`
	UserName     string `json:"user_name"`
	PlanType     string `json:"plan_type"`
	StartDate    string `json:"start_date"`
	ExpiryDate   string `json:"expiry_date"`
	Status       string `json:"status"`
	Notes        string `json:"notes"`
}

// LoadSeed imports the JSON array of fixtures at path and returns how many
// records were written. The whole file is validated first and then stored in
// a single transaction, so a failed import leaves the store untouched.
func LoadSeed(db *Database, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var entries []SeedLicense
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("decode seed file: %w", err)
	}

	records := make([]License, 0, len(entries))
	for i, entry := range entries {
		record, err := entry.toLicense()
		if err != nil {
			return 0, fmt.Errorf("seed entry %d: %w", i, err)
		}
		records = append(records, record)
	}

	if err := db.UpsertLicenses(records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s SeedLicense) toLicense() (License, error) {
	serial := strings.TrimSpace(s.SerialNumber)
	if serial == "" {
		return License{}, fmt.Errorf("serial_number is required")
	}

	plan := strings.ToLower(strings.TrimSpace(s.PlanType))
	if plan == "" {
		plan = PlanMonthly
	}
	if !ValidPlan(plan) {
		return License{}, fmt.Errorf("%s: invalid plan type %q", serial, s.PlanType)
	}

	status := strings.ToLower(strings.TrimSpace(s.Status))
	if status == "" {
		status = StatusActive
	}
	if !ValidStatus(status) {
		return License{}, fmt.Errorf("%s: invalid status %q", serial, s.Status)
	}

	if err := ensureDateRange(s.StartDate, s.ExpiryDate); err != nil {
		return License{}, fmt.Errorf("%s: %w", serial, err)
	}

	return License{
		ID:           strings.TrimSpace(s.ID),
		SerialNumber: serial,
		UserName:     strings.TrimSpace(s.UserName),
		PlanType:     plan,
		StartDate:    s.StartDate,
		ExpiryDate:   s.ExpiryDate,
		Status:       status,
		Notes:        s.Notes,
	}, nil
}

func ensureDateRange(start, expiry string) error {
	startAt, err := license.ParseExpiry(start)
	if err != nil {
		return fmt.Errorf("invalid start date format %q", start)
	}
	expiresAt, err := license.ParseExpiry(expiry)
	if err != nil {
		return fmt.Errorf("invalid expiry date format %q", expiry)
	}
	if expiresAt.Before(startAt) {
		return fmt.Errorf("expiry date %s must not be before start date %s", expiry, start)
	}
	return nil
}
