package domain

import "time"

// FilterSpec describes which messages a sweep targets. It is built once
// from configuration and never mutated afterwards.
type FilterSpec struct {
	// Senders restricts the sweep to messages from any of these addresses.
	// When empty, UnreadOnly must be set and the sweep targets all unread.
	Senders []string

	// UnreadOnly restricts the sweep to unread messages.
	UnreadOnly bool

	// OlderThan / NewerThan bound receivedDateTime. Zero values mean unbounded.
	OlderThan time.Time
	NewerThan time.Time

	// ExcludeAttachments drops messages that carry attachments. Evaluated
	// client-side because the remote service counts inline images as
	// attachments.
	ExcludeAttachments bool

	// Folder is a well-known folder name or a display name to resolve.
	Folder string
}
