package media

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/relay-bot/internal/models"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	data        []byte
	contentType string
	err         error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	return f.data, f.contentType, f.err
}

type fakeTranscriber struct {
	text     string
	err      error
	lastReq  openai.AudioRequest
	lastData []byte
}

func (f *fakeTranscriber) CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	f.lastReq = req
	if req.Reader != nil {
		f.lastData, _ = io.ReadAll(req.Reader)
	}
	if f.err != nil {
		return openai.AudioResponse{}, f.err
	}
	return openai.AudioResponse{Text: f.text}, nil
}

func TestFingerprintDeterministic(t *testing.T) {
	payload := []byte("the same bytes")
	assert.Equal(t, Fingerprint(payload), Fingerprint(payload))
	assert.NotEqual(t, Fingerprint(payload), Fingerprint([]byte("different bytes")))
	assert.Len(t, Fingerprint(payload), 64)
}

func TestResolveImage(t *testing.T) {
	fetcher := &fakeFetcher{data: []byte("jpegdata"), contentType: "image/jpeg"}
	r := NewResolver(fetcher, &fakeTranscriber{}, "", zap.NewNop())

	in := models.Intake{AttachmentURL: "https://cdn.example.com/m/1.jpg", AttachmentType: "image/jpeg"}
	ref, transcript, err := r.Resolve(context.Background(), in, models.KindImage)
	require.NoError(t, err)
	assert.Empty(t, transcript)
	assert.Equal(t, in.AttachmentURL, ref.URL)
	assert.Equal(t, "image/jpeg", ref.ContentType)
	assert.Equal(t, Fingerprint([]byte("jpegdata")), ref.Fingerprint)
}

func TestResolveAudioTranscribes(t *testing.T) {
	fetcher := &fakeFetcher{data: []byte("oggdata"), contentType: "audio/ogg"}
	transcriber := &fakeTranscriber{text: " hello from voice "}
	r := NewResolver(fetcher, transcriber, "", zap.NewNop())

	in := models.Intake{AttachmentURL: "https://cdn.example.com/m/2.ogg", AttachmentType: "audio/ogg"}
	ref, transcript, err := r.Resolve(context.Background(), in, models.KindAudio)
	require.NoError(t, err)
	assert.Equal(t, "hello from voice", transcript)
	assert.Equal(t, []byte("oggdata"), transcriber.lastData)
	assert.Equal(t, "voice.ogg", transcriber.lastReq.FilePath)
	assert.Equal(t, openai.Whisper1, transcriber.lastReq.Model)
	assert.NotEmpty(t, ref.Fingerprint)
}

func TestResolveFetchFailureIsFatal(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("403 from provider")}
	r := NewResolver(fetcher, &fakeTranscriber{}, "", zap.NewNop())

	_, _, err := r.Resolve(context.Background(), models.Intake{AttachmentURL: "https://x"}, models.KindImage)
	assert.Error(t, err)
}

func TestResolveTranscriptionFailureIsFatal(t *testing.T) {
	fetcher := &fakeFetcher{data: []byte("oggdata"), contentType: "audio/ogg"}
	r := NewResolver(fetcher, &fakeTranscriber{err: errors.New("whisper down")}, "", zap.NewNop())

	_, _, err := r.Resolve(context.Background(), models.Intake{AttachmentURL: "https://x"}, models.KindAudio)
	assert.Error(t, err)
}

func TestResolveFallsBackToIntakeContentType(t *testing.T) {
	fetcher := &fakeFetcher{data: []byte("bytes")}
	r := NewResolver(fetcher, &fakeTranscriber{}, "", zap.NewNop())

	in := models.Intake{AttachmentURL: "https://x", AttachmentType: "image/png"}
	ref, _, err := r.Resolve(context.Background(), in, models.KindImage)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ref.ContentType)
}

func TestFileNameFor(t *testing.T) {
	assert.Equal(t, "voice.ogg", fileNameFor("audio/ogg; codecs=opus"))
	assert.Equal(t, "audio.mp3", fileNameFor("audio/mpeg"))
	assert.Equal(t, "audio.wav", fileNameFor("audio/wav"))
	assert.Equal(t, "audio.m4a", fileNameFor("audio/mp4"))
	assert.Equal(t, "audio.ogg", fileNameFor(""))
}
