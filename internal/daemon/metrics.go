package daemon

import (
	"context"
	"time"

	"mediaferry/internal/metrics"
	"mediaferry/internal/queue"
)

// registerGauges exposes registry and queue state. Queue gauges read the
// store on every scrape.
func (d *Daemon) registerGauges() {
	reg := d.comp.Metrics
	if reg == nil {
		return
	}
	metrics.RegisterGauge(reg, "sockets", "connected", "Connected websocket clients", func() float64 {
		return float64(d.comp.Registry.Len())
	})
	metrics.RegisterGauge(reg, "entities", "uploading", "Entities locked by an upload", func() float64 {
		return float64(len(d.comp.Registry.Uploading()))
	})
	metrics.RegisterGauge(reg, "entities", "downloading", "Entities locked by a download", func() float64 {
		return float64(len(d.comp.Registry.Downloading()))
	})
	for _, status := range queue.AllStatuses() {
		metrics.RegisterGauge(reg, "tasks", string(status), "Tasks currently "+string(status), func() float64 {
			return float64(d.queueCount(status))
		})
	}
}

func (d *Daemon) queueCount(status queue.Status) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stats, err := d.comp.Store.Stats(ctx)
	if err != nil {
		return 0
	}
	return stats[status]
}
