package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPGateway talks to a phone-number-addressed messaging provider over its
// REST API: JSON POST for sends, authenticated GET for media downloads.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// maxMediaBytes caps attachment downloads; larger payloads fail the fetch.
const maxMediaBytes = 32 << 20

func NewHTTPGateway(baseURL, token string, logger *zap.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

type sendRequest struct {
	To   string   `json:"to"`
	Type string   `json:"type"`
	Text sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (g *HTTPGateway) Send(ctx context.Context, toAddress, body string) (string, error) {
	payload, err := json.Marshal(sendRequest{
		To:   toAddress,
		Type: "text",
		Text: sendText{Body: body},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("send rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode send response: %w", err)
	}
	if len(parsed.Messages) == 0 {
		return "", fmt.Errorf("send response contained no message id")
	}

	g.logger.Debug("Delivered message",
		zap.String("to", toAddress),
		zap.String("provider_message_id", parsed.Messages[0].ID))

	return parsed.Messages[0].ID, nil
}

func (g *HTTPGateway) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build media request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)

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
