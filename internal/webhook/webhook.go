// Package webhook sends signed outbound event notifications to the
// single configured webhook URL. It mirrors the teacher's resty-based
// external service client, swapping RAG-service calls for a generic
// signed POST and a retry policy driven by backoff instead of resty's
// own retry hooks, since delivery attempts must survive process
// restarts' worth of jitter rather than just transient 5xxs.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/pohodnya/mtchat/internal/config"
	"github.com/pohodnya/mtchat/internal/models"
)

// Sender posts webhook payloads with an HMAC-SHA256 signature header.
// A Sender with an empty url is a silent no-op: webhook delivery is
// optional infrastructure, not a correctness dependency of chat itself.
type Sender struct {
	client     *resty.Client
	url        string
	secret     string
	maxRetries uint64
}

func New(cfg config.WebhookConfig) *Sender {
	client := resty.New()
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")

	maxRetries := uint64(cfg.MaxRetries)
	if maxRetries == 0 {
		maxRetries = 3
	}

	return &Sender{
		client:     client,
		url:        cfg.URL,
		secret:     cfg.Secret,
		maxRetries: maxRetries,
	}
}

// Configured reports whether a webhook URL was provided at startup.
func (s *Sender) Configured() bool {
	return s != nil && s.url != ""
}

// Send delivers payload with bounded exponential-backoff retries and
// blocks until delivery succeeds or gives up. The message and dialog
// services call it on a goroutine of its own; the scheduler calls it
// from inside a notification pool task.
func (s *Sender) Send(ctx context.Context, payload models.WebhookPayload) error {
	if !s.Configured() {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	signature := s.sign(body)

	operation := func() error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetHeader("X-Webhook-Signature", "sha256="+signature).
			SetBody(body).
			Post(s.url)
		if err != nil {
			return err
		}
		if resp.StatusCode() >= 500 {
			return errRetryable{status: resp.StatusCode()}
		}
		if resp.StatusCode() >= 400 {
			// Client-side rejection: retrying would not help.
			return backoff.Permanent(errRetryable{status: resp.StatusCode()})
		}
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.maxRetries)
	bo2 := backoff.WithContext(bo, ctx)
	if err := backoff.Retry(operation, bo2); err != nil {
		slog.Error("webhook delivery failed", "event", payload.Event, "error", err)
		return err
	}
	return nil
}

// sign returns the hex-encoded HMAC-SHA256 of body keyed by the
// configured secret, so receivers can verify payload authenticity.
func (s *Sender) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type errRetryable struct {
	status int
}

func (e errRetryable) Error() string {
	return http.StatusText(e.status)
}
