package iris

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kapu/markov-kakao-bot-go/pkg/errors"
	"go.uber.org/zap"
)

// Client talks to the Iris REST endpoints used for outbound messages.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// SendMessage posts text to room and returns the id of the new message.
func (c *Client) SendMessage(ctx context.Context, room, message string) (string, error) {
	req := ReplyRequest{
		Type: "text",
		Room: room,
		Data: message,
	}

	var resp ReplyResponse
	if err := c.doRequest(ctx, http.MethodPost, "/reply", req, &resp); err != nil {
		c.logger.Error("Failed to send message",
			zap.Error(err),
			zap.String("room", room),
		)
		return "", err
	}

	return resp.MessageID, nil
}

// EditMessage replaces the text of a message previously sent by the bot.
func (c *Client) EditMessage(ctx context.Context, room, messageID, message string) error {
	req := EditRequest{
		Room:      room,
		MessageID: messageID,
		Data:      message,
	}

	if err := c.doRequest(ctx, http.MethodPost, "/edit", req, nil); err != nil {
		c.logger.Error("Failed to edit message",
			zap.Error(err),
			zap.String("room", room),
			zap.String("message_id", messageID),
		)
		return err
	}

	return nil
}

// DeleteMessage removes a message. A message that is already gone yields an
// APIError with status 404.
func (c *Client) DeleteMessage(ctx context.Context, room, messageID string) error {
	req := DeleteRequest{
		Room:      room,
		MessageID: messageID,
	}

	return c.doRequest(ctx, http.MethodPost, "/delete", req, nil)
}

func (c *Client) Ping(ctx context.Context) bool {
	return c.doRequest(ctx, http.MethodGet, "/config", nil, nil) == nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, reqBody, respBody any) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return errors.NewAPIError("failed to marshal request", 400, map[string]any{
				"url": url,
			}).WithCause(err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return errors.NewAPIError("failed to create request", 500, map[string]any{
			"url": url,
		}).WithCause(err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewAPIError("request failed", 500, map[string]any{
			"url": url,
		}).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return errors.NewAPIError(
			fmt.Sprintf("Iris API error: %s", resp.Status),
			resp.StatusCode,
			map[string]any{
				"url":  url,
				"body": string(bodyBytes),
			},
		)
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return errors.NewAPIError("failed to decode response", 500, map[string]any{
				"url": url,
			}).WithCause(err)
		}
	}

	return nil
}
