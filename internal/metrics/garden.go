// Package metrics exports the service's Prometheus instrumentation:
// HTTP middleware, a pgxpool collector, and the garden's business
// counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var verificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pixelgarden",
		Name:      "verifications_total",
		Help:      "Payment verification attempts by outcome and rejection reason.",
	},
	[]string{"outcome", "reason"},
)

// ObserveVerification records one verification attempt. Reason is
// empty for commits.
func ObserveVerification(outcome, reason string) {
	verificationsTotal.WithLabelValues(outcome, reason).Inc()
}

// GardenCollector exports the garden's sold-pixel and funds gauges,
// read from the stats aggregator at scrape time.
type GardenCollector struct {
	totals func() (totalPixels, pixelsSold int, fundsRaised int64)

	totalPixels *prometheus.Desc
	pixelsSold  *prometheus.Desc
	fundsRaised *prometheus.Desc
}

// NewGardenCollector creates a collector over a totals source.
func NewGardenCollector(totals func() (totalPixels, pixelsSold int, fundsRaised int64)) *GardenCollector {
	return &GardenCollector{
		totals: totals,
		totalPixels: prometheus.NewDesc(
			"pixelgarden_pixels_total",
			"Number of cells in the grid.",
			nil, nil,
		),
		pixelsSold: prometheus.NewDesc(
			"pixelgarden_pixels_sold",
			"Number of sold cells.",
			nil, nil,
		),
		fundsRaised: prometheus.NewDesc(
			"pixelgarden_funds_raised_tokens",
			"Sum of the price of every sold cell, in tokens.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *GardenCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalPixels
	ch <- c.pixelsSold
	ch <- c.fundsRaised
}

// Collect implements prometheus.Collector.
func (c *GardenCollector) Collect(ch chan<- prometheus.Metric) {
	if c.totals == nil {
		return
	}
	total, sold, funds := c.totals()
	ch <- prometheus.MustNewConstMetric(c.totalPixels, prometheus.GaugeValue, float64(total))
	ch <- prometheus.MustNewConstMetric(c.pixelsSold, prometheus.GaugeValue, float64(sold))
	ch <- prometheus.MustNewConstMetric(c.fundsRaised, prometheus.GaugeValue, float64(funds))
}
