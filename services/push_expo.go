package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/NomadCrew/timer-sync-backend/types"
	"go.uber.org/zap"
)

// DefaultExpoPushURL is the Expo Push API endpoint.
const DefaultExpoPushURL = "https://exp.host/--/api/v2/push/send"

// expoMessage is the Expo push API message format.
type expoMessage struct {
	To       string            `json:"to"`
	Title    string            `json:"title,omitempty"`
	Body     string            `json:"body,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Priority string            `json:"priority,omitempty"`
}

type expoResponse struct {
	Data []expoTicket `json:"data"`
}

type expoTicket struct {
	Status  string `json:"status"` // "ok" or "error"
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details *struct {
		Error string `json:"error,omitempty"` // "DeviceNotRegistered", "InvalidCredentials", ...
	} `json:"details,omitempty"`
}

// ExpoGateway sends notifications through the Expo push service.
type ExpoGateway struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewExpoGateway(url string, httpClient *http.Client, logger *zap.Logger) *ExpoGateway {
	if url == "" {
		url = DefaultExpoPushURL
	}
	return &ExpoGateway{
		url:        url,
		httpClient: httpClient,
		logger:     logger.Named("ExpoGateway"),
	}
}

// Send posts a single message and inspects the returned ticket.
func (g *ExpoGateway) Send(ctx context.Context, token string, msg PushMessage) error {
	payload, err := json.Marshal([]expoMessage{{
		To:       token,
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     msg.Data,
		Sound:    "default",
		Priority: "high",
	}})
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expo API returned status %d: %s", resp.StatusCode, string(body))
	}

	var expoResp expoResponse
	if err := json.Unmarshal(body, &expoResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if len(expoResp.Data) == 0 {
		return fmt.Errorf("expo API returned no tickets")
	}

	ticket := expoResp.Data[0]
	if ticket.Status == "ok" {
		g.logger.Debug("Expo push accepted", zap.String("ticketId", ticket.ID))
		return nil
	}

	if ticket.Details != nil && ticket.Details.Error == "DeviceNotRegistered" {
		return fmt.Errorf("%w: %s", types.ErrTokenUnregistered, ticket.Message)
	}
	return fmt.Errorf("expo push rejected: %s", ticket.Message)
}
