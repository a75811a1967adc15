package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xaenox/relay-bot/internal/models"
)

func TestClassifyKinds(t *testing.T) {
	c := New("Clear")

	tests := []struct {
		name   string
		intake models.Intake
		want   models.MessageKind
	}{
		{name: "plain text", intake: models.Intake{Body: "hello"}, want: models.KindText},
		{name: "reset keyword", intake: models.Intake{Body: "clear"}, want: models.KindCommand},
		{name: "reset keyword upper", intake: models.Intake{Body: "CLEAR"}, want: models.KindCommand},
		{name: "reset keyword padded", intake: models.Intake{Body: "  Clear \n"}, want: models.KindCommand},
		{name: "reset keyword inside sentence", intake: models.Intake{Body: "please clear this"}, want: models.KindText},
		{name: "empty body", intake: models.Intake{}, want: models.KindText},
		{name: "jpeg attachment", intake: models.Intake{AttachmentCount: 1, AttachmentType: "image/jpeg"}, want: models.KindImage},
		{name: "png attachment", intake: models.Intake{AttachmentCount: 1, AttachmentType: "image/png", Body: "look"}, want: models.KindImage},
		{name: "audio attachment", intake: models.Intake{AttachmentCount: 1, AttachmentType: "audio/mpeg"}, want: models.KindAudio},
		{name: "ogg voice note", intake: models.Intake{AttachmentCount: 1, AttachmentType: "application/ogg"}, want: models.KindAudio},
		{name: "voice content type", intake: models.Intake{AttachmentCount: 1, AttachmentType: "application/voice"}, want: models.KindAudio},
		{name: "pdf attachment falls back to text", intake: models.Intake{AttachmentCount: 1, AttachmentType: "application/pdf", Body: "doc"}, want: models.KindText},
		{name: "attachment with reset body is not a command", intake: models.Intake{AttachmentCount: 1, AttachmentType: "application/pdf", Body: "clear"}, want: models.KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.intake))
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := New("clear")
	in := models.Intake{AttachmentCount: 1, AttachmentType: "image/webp", Body: "clear"}

	first := c.Classify(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify(in))
	}
}

func TestResetKeywordCanonicalized(t *testing.T) {
	c := New("RESET")
	assert.Equal(t, "reset", c.ResetKeyword())
	assert.Equal(t, models.KindCommand, c.Classify(models.Intake{Body: "reset"}))
}
