package domain

import "time"

// MessageID identifies a message in the remote mailbox.
type MessageID string

// CandidateMessage is a message matched by the selection filter.
// From the moment it enters the deletion pipeline it is referenced
// by ID only.
type CandidateMessage struct {
	ID             MessageID
	Sender         string
	ReceivedAt     time.Time
	HasAttachments bool
}

// DeleteMode controls what a delete sub-operation means.
type DeleteMode string

const (
	// DeleteModeSoft moves the message to the deleted-items folder.
	DeleteModeSoft DeleteMode = "soft"
	// DeleteModeHard removes the message permanently.
	DeleteModeHard DeleteMode = "hard"
)
