// Package domain holds the outbound chat message model.
package domain

// MessageKind is the type of an outbound message.
type MessageKind string

const (
	KindText    MessageKind = "text"
	KindImage   MessageKind = "image"
	KindSticker MessageKind = "sticker"
)

// OutboundMessage is one message to a canonical Ecuadorian number. Text is
// set for KindText, MediaURL for the media kinds.
type OutboundMessage struct {
	ID          string      `json:"id"`
	Destination string      `json:"destination"`
	Kind        MessageKind `json:"kind"`
	Text        string      `json:"text,omitempty"`
	MediaURL    string      `json:"mediaUrl,omitempty"`
}

// Receipt describes how a message was handed off.
type Receipt struct {
	MessageID   string
	Destination string
	Kind        MessageKind
	// Queued is true when the message went to the background queue instead
	// of being sent inline.
	Queued bool
}
