package note

import "time"

// Note is one incoming free-text message. It is never persisted as is.
type Note struct {
	Text       string
	ReceivedAt time.Time
	MessageId  string
	Source     string
}
