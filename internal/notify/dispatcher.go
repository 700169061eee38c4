// Package notify delivers automation alerts to a webhook.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"servicehub/internal/config"
	"servicehub/internal/engine"
	"servicehub/internal/logging"
)

const (
	SignatureHeader = "X-Servicehub-Signature"
	EventHeader     = "X-Servicehub-Event"
	DeliveryHeader  = "X-Servicehub-Delivery"
)

type Dispatcher struct {
	url    string
	secret string
	filter eventFilter
	client *http.Client
	log    *slog.Logger
	now    func() time.Time
}

// New returns nil when webhooks are disabled.
func New(cfg config.WebhooksConfig, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if !cfg.Enabled || strings.TrimSpace(cfg.URL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Dispatcher{
		url:    cfg.URL,
		secret: cfg.Secret,
		filter: newEventFilter(cfg.Events),
		client: &http.Client{Timeout: timeout},
		log:    logger.With("component", "notify"),
		now:    time.Now,
	}
}

// Run delivers every report received until the channel closes or ctx is done.
func (d *Dispatcher) Run(ctx context.Context, reports <-chan engine.CycleReport) {
	for {
		select {
		case report, ok := <-reports:
			if !ok {
				return
			}
			d.Deliver(ctx, report)
		case <-ctx.Done():
			return
		}
	}
}

type payload struct {
	Event          string       `json:"event"`
	DeliveryID     string       `json:"delivery_id"`
	SentAt         time.Time    `json:"sent_at"`
	CycleStartedAt time.Time    `json:"cycle_started_at"`
	Alert          engine.Alert `json:"alert"`
}

// Deliver posts each subscribed alert of a report. Failures are logged and
// counted; delivery is not retried.
func (d *Dispatcher) Deliver(ctx context.Context, report engine.CycleReport) (sent, failed int) {
	for _, alert := range report.Alerts {
		if !d.filter.match(alert.Kind) {
			continue
		}
		body := payload{
			Event:          alert.Kind,
			DeliveryID:     uuid.NewString(),
			SentAt:         d.now().UTC(),
			CycleStartedAt: report.StartedAt.UTC(),
			Alert:          alert,
		}
		if err := d.post(ctx, body); err != nil {
			failed++
			d.log.Warn("webhook delivery failed", "event", alert.Kind, "project_id", alert.ProjectID, "err", err)
			continue
		}
		sent++
	}
	if sent+failed > 0 {
		d.log.Info("webhook deliveries", "sent", sent, "failed", failed)
	}
	return sent, failed
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (d *Dispatcher) post(ctx context.Context, body payload) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, body.Event)
	req.Header.Set(DeliveryHeader, body.DeliveryID)
	if strings.TrimSpace(d.secret) != "" {
		req.Header.Set(SignatureHeader, Sign(d.secret, data))
	}
	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		if key := strings.TrimSpace(evt); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
