package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramGateway adapts the bot API to the Sender and MediaFetcher
// interfaces for deployments where the messaging channel is Telegram.
// Addresses are numeric chat ids; attachment URLs are the pre-signed file
// URLs Telegram hands out, so fetches need no extra credentials.
type TelegramGateway struct {
	api    *tgbotapi.BotAPI
	client *http.Client
	logger *zap.Logger
}

func NewTelegramGateway(token string, logger *zap.Logger) (*TelegramGateway, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}

	return &TelegramGateway{
		api:    api,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}, nil
}

func (g *TelegramGateway) Send(ctx context.Context, toAddress, body string) (string, error) {
	chatID, err := strconv.ParseInt(toAddress, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid telegram address %q: %w", toAddress, err)
	}

	sent, err := g.api.Send(tgbotapi.NewMessage(chatID, body))
	if err != nil {
		return "", fmt.Errorf("failed to send telegram message: %w", err)
	}

	g.logger.Debug("Delivered message",
		zap.Int64("chat_id", chatID),
		zap.Int("message_id", sent.MessageID))

	return strconv.Itoa(sent.MessageID), nil
}

func (g *TelegramGateway) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build media request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media body: %w", err)
	}
	if len(data) > maxMediaBytes {
		return nil, "", fmt.Errorf("media payload exceeds %d bytes", maxMediaBytes)
	}

	return data, resp.Header.Get("Content-Type"), nil
}
