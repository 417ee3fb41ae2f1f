package models

import (
	"time"

	"github.com/google/uuid"
)

// ChallengeType defines how a challenge is completed.
type ChallengeType string

const (
	ChallengeTypePhoto  ChallengeType = "PHOTO"
	ChallengeTypeUnlock ChallengeType = "UNLOCK"
)

// Challenge is a task hunters can complete for points.
type Challenge struct {
	ID            uuid.UUID     `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Points        int           `json:"points"`
	Active        bool          `json:"active"`
	Type          ChallengeType `json:"type"`
	CorrectAnswer *string       `json:"correct_answer,omitempty"` // unlock only
}

// SubmissionStatus defines the validation state of a submission.
// APPROVED and REJECTED are terminal.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "PENDING"
	SubmissionStatusApproved SubmissionStatus = "APPROVED"
	SubmissionStatusRejected SubmissionStatus = "REJECTED"
)

// Terminal reports whether the status admits no further transitions.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionStatusApproved || s == SubmissionStatusRejected
}

// Submission is a team's attempted proof of completing a challenge.
type Submission struct {
	ID          uuid.UUID        `json:"id"`
	ChallengeID uuid.UUID        `json:"challenge_id"`
	TeamID      uuid.UUID        `json:"team_id"`
	Status      SubmissionStatus `json:"status"`
	PhotoURL    *string          `json:"photo_url,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
}
