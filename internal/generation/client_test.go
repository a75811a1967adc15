package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/relay-bot/internal/models"
	"go.uber.org/zap"
)

type fakeChatAPI struct {
	lastRequest openai.ChatCompletionRequest
	reply       string
	err         error
}

func (f *fakeChatAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastRequest = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Content: f.reply},
		}},
	}, nil
}

func newTestClient(api API) *Client {
	return NewClient(api, "gpt-4o-mini", 500, 0.7, zap.NewNop())
}

func TestReplyBuildsSystemAndHistoryTurns(t *testing.T) {
	api := &fakeChatAPI{reply: "hi!"}
	client := newTestClient(api)

	window := []*models.Message{
		{Role: models.RoleUser, Kind: models.KindText, Content: "hello"},
		{Role: models.RoleAssistant, Kind: models.KindText, Content: "hey"},
		{Role: models.RoleUser, Kind: models.KindText, Content: "how are you?"},
	}

	reply, err := client.Reply(context.Background(), "Ada", window)
	require.NoError(t, err)
	assert.Equal(t, "hi!", reply)

	msgs := api.lastRequest.Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Ada")
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, msgs[2].Role)
	assert.Equal(t, "how are you?", msgs[3].Content)
}

func TestReplySkipsSystemAndCommandEntries(t *testing.T) {
	api := &fakeChatAPI{reply: "ok"}
	client := newTestClient(api)

	window := []*models.Message{
		{Role: models.RoleSystem, Kind: models.KindText, Content: "internal note"},
		{Role: models.RoleUser, Kind: models.KindCommand, Content: "clear"},
		{Role: models.RoleUser, Kind: models.KindText, Content: "question"},
	}

	_, err := client.Reply(context.Background(), "", window)
	require.NoError(t, err)

	msgs := api.lastRequest.Messages
	require.Len(t, msgs, 2, "system and command entries must not become turns")
	assert.Equal(t, "question", msgs[1].Content)
}

func TestReplyForwardedMarker(t *testing.T) {
	api := &fakeChatAPI{reply: "noted"}
	client := newTestClient(api)

	window := []*models.Message{
		{Role: models.RoleUser, Kind: models.KindText, Content: "check this out", Forwarded: true},
	}

	_, err := client.Reply(context.Background(), "", window)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(api.lastRequest.Messages[1].Content, "FORWARDED MESSAGE:"))
}

func TestReplyImageTurnCarriesRemoteReference(t *testing.T) {
	api := &fakeChatAPI{reply: "nice photo"}
	client := newTestClient(api)

	window := []*models.Message{
		{
			Role:    models.RoleUser,
			Kind:    models.KindImage,
			Content: "what is this?",
			Media:   &models.MediaRef{URL: "https://cdn.example.com/m/1.jpg", ContentType: "image/jpeg"},
		},
	}

	_, err := client.Reply(context.Background(), "", window)
	require.NoError(t, err)

	turn := api.lastRequest.Messages[1]
	require.Len(t, turn.MultiContent, 2)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, turn.MultiContent[0].Type)
	assert.Equal(t, "https://cdn.example.com/m/1.jpg", turn.MultiContent[0].ImageURL.URL)
	assert.Equal(t, "what is this?", turn.MultiContent[1].Text)
}

func TestReplyAnonymousUserFallback(t *testing.T) {
	api := &fakeChatAPI{reply: "hello"}
	client := newTestClient(api)

	_, err := client.Reply(context.Background(), "  ", []*models.Message{
		{Role: models.RoleUser, Kind: models.KindText, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Contains(t, api.lastRequest.Messages[0].Content, "a user")
}

func TestReplyCapabilityErrorIsFatal(t *testing.T) {
	api := &fakeChatAPI{err: errors.New("model unavailable")}
	client := newTestClient(api)

	_, err := client.Reply(context.Background(), "", []*models.Message{
		{Role: models.RoleUser, Kind: models.KindText, Content: "hi"},
	})
	assert.Error(t, err)
}
