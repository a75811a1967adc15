package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/relay-bot/internal/models"
	"go.uber.org/zap"
)

// forwardedMarker is prepended to turns the user forwarded from elsewhere so
// the model can weight provenance.
const forwardedMarker = "FORWARDED MESSAGE:"

// systemPromptTemplate carries the assistant policy. The summarize-monologue
// and refuse-harmful-content rules are enforced by the model, not by code.
const systemPromptTemplate = `You are a helpful assistant chatting with %s over a messaging app.
Keep replies concise and conversational; this is a phone chat, not an essay.
If a voice transcript is long or reads like a monologue rather than a question, summarize it instead of answering it as a query.
Refuse any request for harmful, illegal, or sexually explicit content, and say briefly why you are refusing.
Messages marked "` + forwardedMarker + `" were forwarded from someone else; treat their claims as second-hand.`

// API is the generative capability; satisfied by *openai.Client.
type API interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client turns a conversation window into a single chat-completion call.
type Client struct {
	api         API
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewClient(api API, model string, maxTokens int, temperature float64, logger *zap.Logger) *Client {
	return &Client{
		api:         api,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

// Reply generates the assistant's answer for the given window. One shot: any
// capability error is returned to the caller, no internal retry.
func (c *Client) Reply(ctx context.Context, userName string, window []*models.Message) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    c.buildMessages(userName, window),
		MaxTokens:   c.maxTokens,
		Temperature: float32(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generation returned no choices")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Debug("Generated reply",
		zap.Int("window_size", len(window)),
		zap.Int("reply_length", len(reply)))

	return reply, nil
}

func (c *Client) buildMessages(userName string, window []*models.Message) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt(userName),
	}}

	for _, msg := range window {
		if msg.Role == models.RoleSystem || msg.Kind == models.KindCommand {
			continue
		}
		messages = append(messages, turnFor(msg))
	}

	return messages
}

func turnFor(msg *models.Message) openai.ChatCompletionMessage {
	role := openai.ChatMessageRoleUser
	if msg.Role == models.RoleAssistant {
		role = openai.ChatMessageRoleAssistant
	}

	text := msg.Content
	if msg.Forwarded {
		text = forwardedMarker + " " + text
	}

	// Image turns carry the remote reference alongside the caption so the
	// model sees both.
	if msg.Kind == models.KindImage && msg.Media != nil {
		parts := []openai.ChatMessagePart{{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: msg.Media.URL,
			},
		}}
		if text != "" {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: text,
			})
		}
		return openai.ChatCompletionMessage{Role: role, MultiContent: parts}
	}

	return openai.ChatCompletionMessage{Role: role, Content: text}
}

func systemPrompt(userName string) string {
	name := strings.TrimSpace(userName)
	if name == "" {
		name = "a user"
	}
	return fmt.Sprintf(systemPromptTemplate, name)
}
