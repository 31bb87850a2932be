package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/leonovk/wg-rest-api/models"
	"github.com/leonovk/wg-rest-api/repositories"
	"github.com/leonovk/wg-rest-api/webhooks"
	"github.com/leonovk/wg-rest-api/wireguard"
)

// Snapshotter returns the current per-peer statistics of the interface.
type Snapshotter interface {
	Snapshot(ctx context.Context) (map[string]models.PeerStat, error)
}

// TextSnapshotter parses the output of a wireguard.StatusSource.
type TextSnapshotter struct {
	Source wireguard.StatusSource
	Parser Parser
}

func (s TextSnapshotter) Snapshot(ctx context.Context) (map[string]models.PeerStat, error) {
	raw, err := s.Source.Show(ctx)
	if err != nil {
		return nil, err
	}
	return s.Parser.Parse(raw), nil
}

// EventDispatcher delivers derived events. *webhooks.Dispatcher satisfies it.
type EventDispatcher interface {
	Dispatch(ctx context.Context, events []*webhooks.Event) []webhooks.Delivery
}

// Collector is the polling job: it snapshots the interface, derives events
// against the persisted stats, persists the reconciled stats and event state
// and hands the events to the dispatcher.
type Collector struct {
	Snap       Snapshotter
	Repo       repositories.StatRepository
	Dispatcher EventDispatcher
	Log        logr.Logger
}

// Collect runs a single collection cycle.
func (c *Collector) Collect(ctx context.Context) ([]*webhooks.Event, error) {
	fresh, err := c.Snap.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot interface: %w", err)
	}

	prior, err := c.Repo.LoadStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	lastEvents, err := c.Repo.LoadEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	events, updated := webhooks.Aggregate(prior, fresh, lastEvents)

	if err := c.Repo.SaveStats(ctx, Reconcile(prior, fresh)); err != nil {
		return nil, fmt.Errorf("save stats: %w", err)
	}
	if err := c.Repo.SaveEvents(ctx, updated); err != nil {
		return nil, fmt.Errorf("save events: %w", err)
	}

	c.Log.V(1).Info("stats collected", "peers", len(fresh), "events", len(webhooks.Compact(events)))
	if c.Dispatcher != nil {
		c.Dispatcher.Dispatch(ctx, events)
	}
	return events, nil
}

// Run collects immediately and then every interval until ctx is cancelled.
// Failed cycles are logged and do not stop the loop.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := c.Collect(ctx); err != nil {
				c.Log.Error(err, "stats collection failed")
			}
			timer.Reset(interval)
		}
	}
}
