package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultWorkers is the number of concurrent senders per batch.
	DefaultWorkers = 8

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 64 << 10
)

// Delivery is the outcome of POSTing one event. Failed deliveries are
// reported here and never retried.
type Delivery struct {
	ID         string
	Event      Event
	StatusCode int
	Header     http.Header
	Body       string
	Err        error
}

// Failed reports whether the sink did not accept the event.
func (d Delivery) Failed() bool {
	return d.Err != nil || d.StatusCode < 200 || d.StatusCode > 299
}

// Dispatcher POSTs events to a single sink URL.
type Dispatcher struct {
	URL     string
	Workers int
	Client  *http.Client
	Log     logr.Logger
}

func NewDispatcher(url string, workers int, log logr.Logger) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Dispatcher{
		URL:     url,
		Workers: workers,
		Client:  &http.Client{Timeout: defaultTimeout},
		Log:     log,
	}
}

// Dispatch sends every non-nil event and returns once all of them were
// attempted. Events are spread over the workers by position; each worker
// sends its share in order. Deliveries are returned in event order. Without
// a URL nothing is sent.
func (d *Dispatcher) Dispatch(ctx context.Context, events []*Event) []Delivery {
	if d.URL == "" {
		return nil
	}
	batch := Compact(events)
	if len(batch) == 0 {
		return nil
	}

	workers := d.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	workers = min(workers, len(batch))

	deliveries := make([]Delivery, len(batch))
	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			for i := w; i < len(batch); i += workers {
				deliveries[i] = d.send(ctx, batch[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, delivery := range deliveries {
		if delivery.Failed() {
			failed++
			d.Log.Info("webhook delivery failed", "id", delivery.ID, "peer", delivery.Event.Peer,
				"event", delivery.Event.Event, "status", delivery.StatusCode, "error", errString(delivery.Err))
		}
	}
	d.Log.V(1).Info("webhooks dispatched", "events", len(batch), "failed", failed, "workers", workers)
	return deliveries
}

func (d *Dispatcher) send(ctx context.Context, event Event) Delivery {
	delivery := Delivery{ID: uuid.NewString(), Event: event}

	payload, err := json.Marshal(event)
	if err != nil {
		delivery.Err = fmt.Errorf("encode event: %w", err)
		return delivery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(payload))
	if err != nil {
		delivery.Err = fmt.Errorf("build request: %w", err)
		return delivery
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Delivery", delivery.ID)

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		delivery.Err = fmt.Errorf("post webhook: %w", err)
		return delivery
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	delivery.StatusCode = resp.StatusCode
	delivery.Header = resp.Header
	delivery.Body = string(body)
	if err != nil {
		delivery.Err = fmt.Errorf("read response: %w", err)
	}
	return delivery
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
