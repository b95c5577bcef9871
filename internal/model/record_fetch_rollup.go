package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidRecordFetchRollup = errors.New("invalid_record_fetch_rollup")
)

// RecordFetchRollup captures aggregated record-fetch metrics per visitor and day.
type RecordFetchRollup struct {
	ID         string    `gorm:"primaryKey;size:36"`
	VisitorID  string    `gorm:"not null;size:64;index"`
	Date       time.Time `gorm:"not null;index"` // UTC date truncated to midnight
	FetchCount int64     `gorm:"not null"`
	FoundCount int64     `gorm:"not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// NewRecordFetchRollup constructs a rollup for a specific date.
func NewRecordFetchRollup(visitorID string, date time.Time, fetchCount int64, foundCount int64) (RecordFetchRollup, error) {
	trimmedVisitorID := strings.TrimSpace(visitorID)
	if trimmedVisitorID == "" {
		return RecordFetchRollup{}, fmt.Errorf("%w: missing visitor_id", ErrInvalidRecordFetchRollup)
	}
	if date.IsZero() {
		return RecordFetchRollup{}, fmt.Errorf("%w: missing date", ErrInvalidRecordFetchRollup)
	}
	if fetchCount < 0 || foundCount < 0 || foundCount > fetchCount {
		return RecordFetchRollup{}, fmt.Errorf("%w: inconsistent counts", ErrInvalidRecordFetchRollup)
	}
	normalizedDate := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return RecordFetchRollup{
		ID:         uuid.NewString(),
		VisitorID:  trimmedVisitorID,
		Date:       normalizedDate,
		FetchCount: fetchCount,
		FoundCount: foundCount,
	}, nil
}
