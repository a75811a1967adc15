package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/relay-bot/internal/gateway"
	"github.com/xaenox/relay-bot/internal/models"
	"go.uber.org/zap"
)

// Transcriber is the audio-to-text capability; satisfied by *openai.Client.
type Transcriber interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// Resolver downloads attachments, fingerprints them, and transcribes audio.
type Resolver struct {
	fetcher     gateway.MediaFetcher
	transcriber Transcriber
	model       string
	logger      *zap.Logger
}

func NewResolver(fetcher gateway.MediaFetcher, transcriber Transcriber, model string, logger *zap.Logger) *Resolver {
	if model == "" {
		model = openai.Whisper1
	}
	return &Resolver{
		fetcher:     fetcher,
		transcriber: transcriber,
		model:       model,
		logger:      logger,
	}
}

// Resolve fetches the attachment behind the intake's URL and returns its
// media reference plus, for audio, the transcript text. A failed download is
// fatal for the pipeline run; it is not retried.
func (r *Resolver) Resolve(ctx context.Context, in models.Intake, kind models.MessageKind) (*models.MediaRef, string, error) {
	data, contentType, err := r.fetcher.Fetch(ctx, in.AttachmentURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download attachment: %w", err)
	}
	if contentType == "" {
		contentType = in.AttachmentType
	}

	ref := &models.MediaRef{
		URL:         in.AttachmentURL,
		Fingerprint: Fingerprint(data),
		ContentType: contentType,
	}

	if kind != models.KindAudio {
		return ref, "", nil
	}

	transcript, err := r.transcribe(ctx, data, contentType)
	if err != nil {
		return nil, "", fmt.Errorf("failed to transcribe audio: %w", err)
	}

	r.logger.Debug("Transcribed audio attachment",
		zap.String("fingerprint", ref.Fingerprint),
		zap.Int("transcript_length", len(transcript)))

	return ref, transcript, nil
}

func (r *Resolver) transcribe(ctx context.Context, data []byte, contentType string) (string, error) {
	resp, err := r.transcriber.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.model,
		Reader:   bytes.NewReader(data),
		FilePath: fileNameFor(contentType),
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(resp.Text), nil
}

// Fingerprint returns the SHA-256 hex digest of the payload. It exists for
// duplicate detection, not integrity.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// fileNameFor gives the transcription API a filename whose extension matches
// the payload; the API rejects uploads it cannot name.
func fileNameFor(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "ogg"), strings.Contains(ct, "voice"):
		return "voice.ogg"
	case strings.Contains(ct, "mpeg"), strings.Contains(ct, "mp3"):
		return "audio.mp3"
	case strings.Contains(ct, "wav"):
		return "audio.wav"
	case strings.Contains(ct, "mp4"), strings.Contains(ct, "m4a"):
		return "audio.m4a"
	}
	return "audio.ogg"
}
