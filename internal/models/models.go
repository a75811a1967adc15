package models

import "time"

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

type MessageKind string

const (
	KindText    MessageKind = "text"
	KindImage   MessageKind = "image"
	KindAudio   MessageKind = "audio"
	KindCommand MessageKind = "command"
)

// User is keyed by the stable contact address (phone number) of the sender.
type User struct {
	ID        int64     `json:"id"`
	Address   string    `json:"address"`
	Name      string    `json:"name,omitempty"`
	Banned    bool      `json:"banned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MediaRef points at a remotely addressable attachment. The fingerprint is a
// SHA-256 hex digest of the fetched bytes, used for duplicate detection only.
type MediaRef struct {
	URL         string `json:"url"`
	Fingerprint string `json:"fingerprint"`
	ContentType string `json:"content_type"`
}

// Message is append-only: content and moderation reason are set at creation
// and never mutated afterwards.
type Message struct {
	ID               string      `json:"id"`
	UserID           int64       `json:"user_id"`
	Role             MessageRole `json:"role"`
	Kind             MessageKind `json:"kind"`
	Content          string      `json:"content"`
	Media            *MediaRef   `json:"media,omitempty"`
	Forwarded        bool        `json:"forwarded"`
	ModerationReason string      `json:"moderation_reason,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Intake is the normalized inbound record handed to the pipeline once the
// webhook payload has been validated at the boundary.
type Intake struct {
	Address           string `json:"address"`
	Name              string `json:"name,omitempty"`
	Body              string `json:"body"`
	ProviderMessageID string `json:"provider_message_id"`
	AttachmentCount   int    `json:"attachment_count"`
	AttachmentType    string `json:"attachment_type,omitempty"`
	AttachmentURL     string `json:"attachment_url,omitempty"`
	Forwarded         bool   `json:"forwarded"`
}

// Verdict is the safety-gate result for one piece of text.
type Verdict struct {
	Flagged    bool               `json:"flagged"`
	Categories []string           `json:"categories,omitempty"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}
