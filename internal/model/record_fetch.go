package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	recordFetchIPMaxLength        = 64
	recordFetchUserAgentMaxLength = 400
)

var (
	ErrInvalidRecordFetchVisitor = errors.New("invalid_record_fetch_visitor")
)

// RecordFetch captures a single proxied record lookup for later aggregation.
type RecordFetch struct {
	ID         string    `gorm:"primaryKey;size:36"`
	VisitorID  string    `gorm:"not null;size:64;index"`
	Found      bool      `gorm:"not null;default:false"`
	IP         string    `gorm:"size:64"`
	UserAgent  string    `gorm:"size:400"`
	OccurredAt time.Time `gorm:"not null;index"`
}

// RecordFetchInput holds incoming fetch audit data.
type RecordFetchInput struct {
	VisitorID string
	Found     bool
	IP        string
	UserAgent string
	Occurred  time.Time
}

// NewRecordFetch constructs a validated RecordFetch.
func NewRecordFetch(input RecordFetchInput) (RecordFetch, error) {
	visitorID := strings.TrimSpace(input.VisitorID)
	if visitorID == "" || len(visitorID) > VisitorIdentifierMaxLength {
		return RecordFetch{}, ErrInvalidRecordFetchVisitor
	}
	occurred := input.Occurred
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return RecordFetch{
		ID:         uuid.NewString(),
		VisitorID:  visitorID,
		Found:      input.Found,
		IP:         truncateString(input.IP, recordFetchIPMaxLength),
		UserAgent:  truncateString(input.UserAgent, recordFetchUserAgentMaxLength),
		OccurredAt: occurred,
	}, nil
}

func truncateString(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
