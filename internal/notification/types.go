// Package notification broadcasts pipeline events to connected
// observers. Delivery is best-effort and at-most-once: a slow or
// disconnected observer never blocks or fails the pipeline.
package notification

import (
	"time"

	"github.com/google/uuid"
)

// Type categorizes a pipeline event.
type Type string

const (
	// TypeSampleProcessed signals a sample reached completed status.
	TypeSampleProcessed Type = "sample_processed"
	// TypeSampleError signals a sample reached failed status.
	TypeSampleError Type = "sample_error"
	// TypeAlertCreated signals a conservation alert was raised.
	TypeAlertCreated Type = "alert_created"
)

// Event is a single pipeline event delivered to observers.
type Event struct {
	// ID is the unique identifier for the event
	ID string `json:"id"`
	// Type categorizes the event
	Type Type `json:"type"`
	// SampleID references the sample the event concerns
	SampleID uint `json:"sample_id"`
	// Status carries the sample's terminal status for processed events
	Status string `json:"status,omitempty"`
	// Error carries a short diagnostic for sample_error events
	Error string `json:"error,omitempty"`
	// AlertType carries the alert type for alert_created events
	AlertType string `json:"alert_type,omitempty"`
	// Timestamp indicates when the event was emitted
	Timestamp time.Time `json:"timestamp"`
}

// NewSampleProcessed builds a success event for a sample.
func NewSampleProcessed(sampleID uint, status string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      TypeSampleProcessed,
		SampleID:  sampleID,
		Status:    status,
		Timestamp: time.Now(),
	}
}

// NewSampleError builds a failure event for a sample.
func NewSampleError(sampleID uint, errMsg string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      TypeSampleError,
		SampleID:  sampleID,
		Status:    "failed",
		Error:     errMsg,
		Timestamp: time.Now(),
	}
}

// NewAlertCreated builds an alert event for a sample.
func NewAlertCreated(sampleID uint, alertType string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      TypeAlertCreated,
		SampleID:  sampleID,
		AlertType: alertType,
		Timestamp: time.Now(),
	}
}
