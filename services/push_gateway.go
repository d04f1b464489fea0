package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/NomadCrew/timer-sync-backend/config"
	"github.com/NomadCrew/timer-sync-backend/logger"
)

// PushMessage is a provider-neutral notification.
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// PushGateway delivers a message to one device token. Implementations return
// an error wrapping types.ErrTokenUnregistered when the token is dead.
type PushGateway interface {
	Send(ctx context.Context, token string, msg PushMessage) error
}

// NewPushGateway builds the gateway selected by cfg.Provider.
func NewPushGateway(ctx context.Context, cfg config.PushConfig) (PushGateway, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	log := logger.GetLogger().Desugar()

	switch cfg.Provider {
	case config.PushProviderFCM:
		return NewFCMGateway(ctx, cfg.FCMProjectID, cfg.FCMCredentialsFile, timeout, log)
	case config.PushProviderExpo:
		return NewExpoGateway(cfg.ExpoURL, &http.Client{Timeout: timeout}, log), nil
	default:
		return nil, fmt.Errorf("unsupported push provider %q", cfg.Provider)
	}
}
