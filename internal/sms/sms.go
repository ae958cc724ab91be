// README: SMS delivery for recipient-location links. Best-effort by contract.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dot/internal/logger"
	"dot/internal/types"
)

// Sender delivers the link a delivery recipient follows to drop a pin.
type Sender interface {
	SendLocationLink(ctx context.Context, phone, token string, orderID types.ID) error
}

type Config struct {
	Provider string // gateway endpoint URL; empty logs only
	APIKey   string
	SenderID string
	LinkBase string
}

// New returns a gateway-backed sender when a provider is configured, and a
// log-only sender otherwise so development setups need no SMS account.
func New(cfg Config, log logger.Logger) Sender {
	if cfg.Provider != "" && cfg.APIKey != "" {
		return &gatewaySender{
			cfg:    cfg,
			client: &http.Client{Timeout: 10 * time.Second},
			log:    log,
		}
	}
	return &logSender{linkBase: cfg.LinkBase, log: log}
}

type logSender struct {
	linkBase string
	log      logger.Logger
}

func (s *logSender) SendLocationLink(_ context.Context, phone, token string, orderID types.ID) error {
	s.log.Info("SMS (log only)",
		logger.String("phone", phone),
		logger.String("order_id", string(orderID)),
		logger.String("link", s.linkBase+"/"+token))
	return nil
}

// gatewaySender posts to a generic JSON SMS gateway.
type gatewaySender struct {
	cfg    Config
	client *http.Client
	log    logger.Logger
}

func (s *gatewaySender) SendLocationLink(ctx context.Context, phone, token string, orderID types.ID) error {
	link := s.cfg.LinkBase + "/" + token
	payload, err := json.Marshal(map[string]string{
		"to":     phone,
		"from":   s.cfg.SenderID,
		"body":   fmt.Sprintf("Your delivery is on its way. Share your location: %s", link),
		"ref":    string(orderID),
		"apikey": s.cfg.APIKey,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Provider, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}
	return nil
}
