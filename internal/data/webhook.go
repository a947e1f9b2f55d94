package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"FuseBox/internal/conf"
	"FuseBox/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// WebhookAlertService implements biz.AlertService with an HTTP POST to the
// configured webhook. Delivery is best-effort: errors are logged and swallowed,
// the breaker must never wait on the notification collaborator.
//
// Duplicate alerts for the same circuit and transition within the dedup window
// are suppressed; a flapping circuit still produces one alert per distinct
// transition per window.
type WebhookAlertService struct {
	url    string
	client *http.Client
	dedup  *expirable.LRU[string, struct{}]
	logger *log.Helper
}

// NewAlertService creates the alert sender. With no webhook URL configured it
// degrades to structured logging only.
func NewAlertService(c *conf.Alert, logger log.Logger) *WebhookAlertService {
	url := ""
	timeout := 5 * time.Second
	window := time.Minute
	if c != nil {
		url = c.WebhookUrl
		if d := c.Timeout.AsDuration(); d > 0 {
			timeout = d
		}
		if d := c.DedupWindow.AsDuration(); d > 0 {
			window = d
		}
	}

	return &WebhookAlertService{
		url:    url,
		client: &http.Client{Timeout: timeout},
		dedup:  expirable.NewLRU[string, struct{}](1024, nil, window),
		logger: log.NewHelper(logger),
	}
}

// SendSystemAlert delivers one state-change alert. Always returns nil:
// delivery failures are logged, never raised to the breaker.
func (s *WebhookAlertService) SendSystemAlert(ctx context.Context, alert *model.SystemAlert) error {
	key := fmt.Sprintf("%s|%s|%s", alert.CircuitID, alert.OldState, alert.NewState)
	if _, seen := s.dedup.Get(key); seen {
		s.logger.Debugw("suppressing duplicate system alert",
			"circuit_id", alert.CircuitID,
			"type", alert.Type)
		return nil
	}
	s.dedup.Add(key, struct{}{})

	if s.url == "" {
		s.logger.Infow("system alert (webhook not configured)",
			"component", alert.Component,
			"type", alert.Type,
			"circuit_id", alert.CircuitID,
			"old_state", alert.OldState,
			"new_state", alert.NewState)
		return nil
	}

	body, err := json.Marshal(alert)
	if err != nil {
		s.logger.Warnw("failed to encode system alert", "circuit_id", alert.CircuitID, "error", err)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		s.logger.Warnw("failed to build alert request", "circuit_id", alert.CircuitID, "error", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warnw("failed to deliver system alert",
			"circuit_id", alert.CircuitID,
			"webhook", s.url,
			"error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Warnw("alert webhook returned non-success status",
			"circuit_id", alert.CircuitID,
			"status", resp.StatusCode)
		return nil
	}

	s.logger.Debugw("system alert delivered",
		"circuit_id", alert.CircuitID,
		"type", alert.Type)
	return nil
}
