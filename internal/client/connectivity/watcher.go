// Package connectivity polls the remote store and reports reachability.
package connectivity

import (
	"context"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/logging"
)

const pingTimeout = 3 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// Reporter receives the result of every probe.
type Reporter interface {
	SetOnline(ctx context.Context, online bool)
}

type Watcher struct {
	pinger   Pinger
	reporter Reporter
	interval time.Duration
	log      logging.Logger
}

func NewWatcher(p Pinger, r Reporter, interval time.Duration, log logging.Logger) *Watcher {
	return &Watcher{pinger: p, reporter: r, interval: interval, log: logging.OrNop(log).With("module", "connectivity")}
}

// Probe pings once and reports the result.
func (w *Watcher) Probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := w.pinger.Ping(pctx)
	cancel()

	online := err == nil
	if !online {
		w.log.Debug(ctx, "remote store unreachable", "err", err)
	}
	w.reporter.SetOnline(ctx, online)
	return online
}

// Run probes immediately and then every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	w.Probe(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}
