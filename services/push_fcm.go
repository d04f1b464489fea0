package services

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/NomadCrew/timer-sync-backend/types"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMGateway sends notifications through Firebase Cloud Messaging.
type FCMGateway struct {
	client  messagingClient
	timeout time.Duration
	logger  *zap.Logger

	// isUnregistered reports whether an FCM error means the token is dead.
	isUnregistered func(error) bool
}

// NewFCMGateway initializes a Firebase app. An empty credentials file falls
// back to application default credentials.
func NewFCMGateway(ctx context.Context, projectID, credentialsFile string, timeout time.Duration, logger *zap.Logger) (*FCMGateway, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	var fbConfig *firebase.Config
	if projectID != "" {
		fbConfig = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	return newFCMGateway(client, timeout, logger), nil
}

func newFCMGateway(client messagingClient, timeout time.Duration, logger *zap.Logger) *FCMGateway {
	return &FCMGateway{
		client:  client,
		timeout: timeout,
		logger:  logger.Named("FCMGateway"),
		// INVALID_ARGUMENT also covers malformed payloads, so only
		// UNREGISTERED retires a token.
		isUnregistered: messaging.IsUnregistered,
	}
}

// Send delivers msg to a single registration token.
func (g *FCMGateway) Send(ctx context.Context, token string, msg PushMessage) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}

	id, err := g.client.Send(ctx, message)
	if err != nil {
		if g.isUnregistered(err) {
			return fmt.Errorf("%w: %v", types.ErrTokenUnregistered, err)
		}
		return fmt.Errorf("failed to send FCM message: %w", err)
	}

	g.logger.Debug("FCM message sent", zap.String("messageId", id))
	return nil
}
