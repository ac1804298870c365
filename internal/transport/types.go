package transport

import "context"

// MessageID is the remote handle of a posted chat message.
type MessageID string

// Target selects between posting a new message and amending an existing one.
// Consumers switch on the concrete type (Create or Update).
type Target interface {
	isTarget()
}

// Create posts a new message and yields its MessageID.
type Create struct{}

// Update amends the message identified by MessageID in place.
type Update struct {
	MessageID MessageID
}

func (Create) isTarget() {}
func (Update) isTarget() {}

// Payload is the webhook message body: one rich embed, no plain content.
type Payload struct {
	Content   string  `json:"content"`
	TTS       bool    `json:"tts"`
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Embeds    []Embed `json:"embeds"`
}

type Embed struct {
	Type        string       `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

type EmbedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Sender delivers a rendered payload to the chat channel.
//
// For Create it returns the newly assigned MessageID; for Update it returns
// the amended message's ID. Implementations make exactly one attempt.
type Sender interface {
	Send(ctx context.Context, p Payload, to Target) (MessageID, error)
}
