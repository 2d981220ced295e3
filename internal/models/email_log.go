package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailLogStatus is the delivery state of an outbound email.
type EmailLogStatus string

const (
	EmailQueued EmailLogStatus = "queued"
	EmailSent   EmailLogStatus = "sent"
	EmailFailed EmailLogStatus = "failed"
)

// EmailLog records an outbound email for an organization (quote/invoice sends,
// invitations). Rows are created when a job is enqueued and updated by the worker.
type EmailLog struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	EmailType      string         `json:"email_type"`
	Recipient      string         `json:"recipient"`
	Subject        string         `json:"subject"`
	Status         EmailLogStatus `json:"status"`
	Error          string         `json:"error,omitempty"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
