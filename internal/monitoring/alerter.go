package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/feedback-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertManualReviewRate AlertType = "manual_review_rate"
	AlertNoiseRate        AlertType = "noise_rate"
)

// minSampleSize avoids alerting on rates computed from a handful of
// records right after a fresh import.
const minSampleSize = 100

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// A climbing manual-review rate means the taxonomy's keywords no longer
// cover what customers write; a climbing noise rate usually means a bad
// import upstream.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.TotalClassified < minSampleSize {
		return nil
	}

	if a.cfg.ManualReviewRateMax > 0 && snap.ManualReviewRate > a.cfg.ManualReviewRateMax {
		alerts = append(alerts, Alert{
			Type:     AlertManualReviewRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Manual review rate %.1f%% exceeds threshold %.1f%% (%d of %d classified)",
				snap.ManualReviewRate*100, a.cfg.ManualReviewRateMax*100,
				snap.ManualReview, snap.TotalClassified,
			),
			Details: map[string]any{
				"manual_review_rate": snap.ManualReviewRate,
				"threshold":          a.cfg.ManualReviewRateMax,
				"manual_review":      snap.ManualReview,
				"total_classified":   snap.TotalClassified,
			},
			Timestamp: now,
		})
	}

	if a.cfg.NoiseRateMax > 0 && snap.NoiseRate > a.cfg.NoiseRateMax {
		alerts = append(alerts, Alert{
			Type:     AlertNoiseRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Noise rate %.1f%% exceeds threshold %.1f%% (%d of %d classified)",
				snap.NoiseRate*100, a.cfg.NoiseRateMax*100,
				snap.Noise, snap.TotalClassified,
			),
			Details: map[string]any{
				"noise_rate":       snap.NoiseRate,
				"threshold":        a.cfg.NoiseRateMax,
				"noise":            snap.Noise,
				"total_classified": snap.TotalClassified,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts posts each alert to the configured webhook and returns the
// number successfully delivered. Without a webhook URL alerts are only
// logged.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	log := zap.L().With(zap.String("component", "monitoring.alerter"))

	sent := 0
	for _, alert := range alerts {
		log.Warn("alert triggered",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
			zap.String("message", alert.Message),
		)
		if a.cfg.WebhookURL == "" {
			continue
		}
		if err := a.post(ctx, alert); err != nil {
			log.Error("failed to send alert", zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "alerter: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "alerter: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "alerter: post webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return eris.Errorf("alerter: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
