// Package realtime carries user-facing notifications over a pub/sub bus.
package realtime

type Event string

const (
	EventJobCreated     Event = "JobCreated"
	EventJobProgress    Event = "JobProgress"
	EventJobRetrying    Event = "JobRetrying"
	EventJobDone        Event = "JobDone"
	EventJobFailed      Event = "JobFailed"
	EventSessionReady   Event = "SessionReady"
	EventGateVerified   Event = "GateVerified"
	EventReviewReminder Event = "ReviewReminder"
)

// Message is one notification. Channel is the recipient user id.
type Message struct {
	Channel string `json:"channel"`
	Event   Event  `json:"event"`
	Data    any    `json:"data"`
}
