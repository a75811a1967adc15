package classifier

import (
	"strings"

	"github.com/xaenox/relay-bot/internal/models"
)

// Classifier derives a message kind from the raw intake fields. It performs
// no I/O; the same intake always yields the same kind.
type Classifier struct {
	resetKeyword string
}

// New creates a classifier. The reset keyword is compared case-insensitively
// against the trimmed message body.
func New(resetKeyword string) *Classifier {
	return &Classifier{resetKeyword: strings.ToLower(resetKeyword)}
}

// ResetKeyword returns the canonical (lowercase) reset keyword.
func (c *Classifier) ResetKeyword() string {
	return c.resetKeyword
}

// Classify assigns a kind using the following precedence: reset command,
// plain text, image attachment, audio attachment, then text as the fallback
// for attachments of any other type.
func (c *Classifier) Classify(in models.Intake) models.MessageKind {
	if in.AttachmentCount == 0 {
		if strings.EqualFold(strings.TrimSpace(in.Body), c.resetKeyword) {
			return models.KindCommand
		}
		return models.KindText
	}

	contentType := strings.ToLower(in.AttachmentType)
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.KindImage
	case strings.HasPrefix(contentType, "audio/"),
		strings.Contains(contentType, "ogg"),
		strings.Contains(contentType, "voice"):
		return models.KindAudio
	}

	// Unknown attachment types are treated as text; the attachment itself
	// is ignored.
	return models.KindText
}
