package prometheusmetrics

import (
	"time"

	"github.com/prebid/openbid/config"
	"github.com/prebid/openbid/openrtb_ext"
	"github.com/prebid/openbid/pbsmetrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics defines the Prometheus metrics backing the MetricsEngine implementation.
type Metrics struct {
	Registry *prometheus.Registry

	connCounter   prometheus.Gauge
	connError     *prometheus.CounterVec
	imps          *prometheus.CounterVec
	requests      *prometheus.CounterVec
	reqTimer      *prometheus.HistogramVec
	rejectedSlots *prometheus.CounterVec
	adaptRequests *prometheus.CounterVec
	adaptErrors   *prometheus.CounterVec
	adaptTimer    *prometheus.HistogramVec
	adaptBids     *prometheus.CounterVec
	adaptPrices   *prometheus.HistogramVec
	userSync      *prometheus.CounterVec
}

// NewMetrics constructs the Prometheus metrics on a registry of their own, so that several
// engines can live in one process.
func NewMetrics(cfg config.PrometheusMetrics) *Metrics {
	// define the buckets for timers
	timerBuckets := prometheus.LinearBuckets(0.05, 0.05, 20)
	timerBuckets = append(timerBuckets, []float64{1.5, 2.0, 3.0, 5.0, 10.0, 50.0}...)

	standardLabelNames := []string{"type", "adapter", "browser", "status"}
	adapterLabelNames := []string{"adapter", "browser", "hasbids"}

	metrics := Metrics{Registry: prometheus.NewRegistry()}
	metrics.connCounter = newConnCounter(cfg)
	metrics.connError = newCounter(cfg, "active_connections_total",
		"Errors reported on the connections coming in.",
		[]string{"ErrorType"},
	)
	metrics.imps = newCounter(cfg, "imps_requested_total",
		"Total number of impressions built into auction requests.",
		[]string{"adapter"},
	)
	metrics.requests = newCounter(cfg, "requests_total",
		"Total number of requests made to the openbid endpoints.",
		standardLabelNames,
	)
	metrics.reqTimer = newHistogram(cfg, "request_time_seconds",
		"Seconds to resolve each openbid request.",
		standardLabelNames, timerBuckets,
	)
	metrics.rejectedSlots = newCounter(cfg, "rejected_slots_total",
		"Candidate bids skipped while building auction requests.",
		[]string{"adapter", "reason"},
	)
	metrics.adaptRequests = newCounter(cfg, "adapter_requests_total",
		"Number of auction requests sent out to each bidder.",
		adapterLabelNames,
	)
	metrics.adaptErrors = newCounter(cfg, "adapter_errors_total",
		"Number of auction requests to each bidder which failed.",
		[]string{"adapter", "error"},
	)
	metrics.adaptTimer = newHistogram(cfg, "adapter_time_seconds",
		"Seconds to resolve each auction request to a bidder.",
		[]string{"adapter"}, timerBuckets,
	)
	metrics.adaptBids = newCounter(cfg, "adapter_bids_received_total",
		"Number of bids received from each bidder.",
		[]string{"adapter"},
	)
	metrics.adaptPrices = newHistogram(cfg, "adapter_prices",
		"Values of the bids from each bidder.",
		[]string{"adapter"}, prometheus.LinearBuckets(0.1, 0.1, 200),
	)
	metrics.userSync = newCounter(cfg, "usersync_total",
		"Number of user sync descriptors requested.",
		[]string{"action", "bidder"},
	)

	metrics.Registry.MustRegister(
		metrics.connCounter,
		metrics.connError,
		metrics.imps,
		metrics.requests,
		metrics.reqTimer,
		metrics.rejectedSlots,
		metrics.adaptRequests,
		metrics.adaptErrors,
		metrics.adaptTimer,
		metrics.adaptBids,
		metrics.adaptPrices,
		metrics.userSync,
	)

	return &metrics
}

func newConnCounter(cfg config.PrometheusMetrics) prometheus.Gauge {
	opts := prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "active_connections",
		Help:      "Current number of active (open) connections.",
	}
	return prometheus.NewGauge(opts)
}

func newCounter(cfg config.PrometheusMetrics, name string, help string, labels []string) *prometheus.CounterVec {
	opts := prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
	}
	return prometheus.NewCounterVec(opts, labels)
}

func newHistogram(cfg config.PrometheusMetrics, name string, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	opts := prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}
	return prometheus.NewHistogramVec(opts, labels)
}

func (me *Metrics) RecordConnectionAccept(success bool) {
	if success {
		me.connCounter.Inc()
	} else {
		me.connError.WithLabelValues("accept_error").Inc()
	}
}

func (me *Metrics) RecordConnectionClose(success bool) {
	if success {
		me.connCounter.Dec()
	} else {
		me.connError.WithLabelValues("close_error").Inc()
	}
}

func (me *Metrics) RecordRequest(labels pbsmetrics.Labels) {
	me.requests.With(resolveLabels(labels)).Inc()
}

func (me *Metrics) RecordImps(labels pbsmetrics.Labels, numImps int) {
	me.imps.WithLabelValues(string(labels.Adapter)).Add(float64(numImps))
}

func (me *Metrics) RecordRequestTime(labels pbsmetrics.Labels, length time.Duration) {
	time := float64(length) / float64(time.Second)
	me.reqTimer.With(resolveLabels(labels)).Observe(time)
}

func (me *Metrics) RecordRejectedSlot(adapter openrtb_ext.BidderName, reason pbsmetrics.RejectReason) {
	me.rejectedSlots.WithLabelValues(string(adapter), string(reason)).Inc()
}

func (me *Metrics) RecordAdapterRequest(labels pbsmetrics.AdapterLabels) {
	me.adaptRequests.With(resolveAdapterLabels(labels)).Inc()
	for errType := range labels.AdapterErrors {
		me.adaptErrors.WithLabelValues(string(labels.Adapter), string(errType)).Inc()
	}
}

func (me *Metrics) RecordAdapterBidsReceived(labels pbsmetrics.AdapterLabels, bids int64) {
	me.adaptBids.WithLabelValues(string(labels.Adapter)).Add(float64(bids))
}

func (me *Metrics) RecordAdapterPrice(labels pbsmetrics.AdapterLabels, cpm float64) {
	me.adaptPrices.WithLabelValues(string(labels.Adapter)).Observe(cpm)
}

func (me *Metrics) RecordAdapterTime(labels pbsmetrics.AdapterLabels, length time.Duration) {
	time := float64(length) / float64(time.Second)
	me.adaptTimer.WithLabelValues(string(labels.Adapter)).Observe(time)
}

func (me *Metrics) RecordUserSync(userLabels pbsmetrics.UserLabels) {
	me.userSync.With(resolveUserSyncLabels(userLabels)).Inc()
}

func resolveLabels(labels pbsmetrics.Labels) prometheus.Labels {
	return prometheus.Labels{
		"type":    string(labels.RType),
		"adapter": string(labels.Adapter),
		"browser": string(labels.Browser),
		"status":  string(labels.RequestStatus),
	}
}

func resolveAdapterLabels(labels pbsmetrics.AdapterLabels) prometheus.Labels {
	return prometheus.Labels{
		"adapter": string(labels.Adapter),
		"browser": string(labels.Browser),
		"hasbids": string(labels.AdapterBids),
	}
}

func resolveUserSyncLabels(userLabels pbsmetrics.UserLabels) prometheus.Labels {
	return prometheus.Labels{
		"action": string(userLabels.Action),
		"bidder": string(userLabels.Bidder),
	}
}
