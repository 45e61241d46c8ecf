package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"linkgate/internal/models"
	"linkgate/internal/version"

	"golang.org/x/time/rate"
)

// WebhookNotifier posts events as JSON to a configured URL from a single
// background worker. Events are queued without blocking; when the queue is
// full the event is dropped. Outbound calls are throttled by a token bucket.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger

	queue chan Event
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient overrides the HTTP client. The configured timeout is not
// applied to a supplied client.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookNotifier) { w.client = c }
}

// NewWebhookNotifier starts the delivery worker.
func NewWebhookNotifier(cfg models.WebhookConfig, logger *slog.Logger, opts ...WebhookOption) *WebhookNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	w := &WebhookNotifier{
		url:     cfg.URL,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		queue:   make(chan Event, queueSize),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.run()
	return w
}

// Notify queues the event for delivery.
func (w *WebhookNotifier) Notify(_ context.Context, e Event) {
	select {
	case <-w.stop:
		return
	default:
	}

	select {
	case w.queue <- e:
	default:
		w.logger.Warn("Webhook queue full, dropping event", "event", e.Event)
	}
}

// Close stops the worker after delivering what is already queued.
func (w *WebhookNotifier) Close() {
	w.once.Do(func() {
		close(w.stop)
		w.wg.Wait()
	})
}

func (w *WebhookNotifier) run() {
	defer w.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		select {
		case e := <-w.queue:
			w.deliver(ctx, e)
		case <-w.stop:
			for {
				select {
				case e := <-w.queue:
					w.deliver(ctx, e)
				default:
					return
				}
			}
		}
	}
}

func (w *WebhookNotifier) deliver(ctx context.Context, e Event) {
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}
	if err := w.post(ctx, e); err != nil {
		w.logger.Warn("Webhook delivery failed", "event", e.Event, "error", err)
	}
}

func (w *WebhookNotifier) post(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.GetInfo().UserAgent())

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
