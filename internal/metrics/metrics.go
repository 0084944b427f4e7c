package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	Fetches       *prometheus.CounterVec // source label: rail|bus
	FetchErrors   *prometheus.CounterVec // source, kind labels
	SourceEntries *prometheus.GaugeVec
	LastSuccess   *prometheus.GaugeVec // unix seconds

	ScheduleEntries prometheus.Gauge
	Polls           prometheus.Counter
	DegradedPolls   prometheus.Counter
	PollDuration    prometheus.Histogram

	WSClients      prometheus.Gauge
	NATSPublished  prometheus.Counter
	NATSPublishErr prometheus.Counter
}

func NewCollector(pollInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fahrplan_source_fetches_total",
			Help: "Upstream fetch attempts per source.",
		}, []string{"source"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fahrplan_source_errors_total",
			Help: "Failed upstream fetches per source and error kind.",
		}, []string{"source", "kind"}),
		SourceEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fahrplan_source_entries",
			Help: "Entries produced by the last poll per source.",
		}, []string{"source"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fahrplan_source_last_success_timestamp_seconds",
			Help: "Unix time of the last successful fetch per source.",
		}, []string{"source"}),
		ScheduleEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fahrplan_schedule_entries",
			Help: "Entries in the merged schedule.",
		}),
		Polls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fahrplan_polls_total",
			Help: "Completed polls.",
		}),
		DegradedPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fahrplan_polls_degraded_total",
			Help: "Polls in which at least one source failed.",
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fahrplan_poll_duration_seconds",
			Help:    "Duration of a poll including both fetches.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fahrplan_websocket_clients",
			Help: "Connected websocket clients.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fahrplan_nats_published_total",
			Help: "Schedule messages published to NATS.",
		}),
		NATSPublishErr: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fahrplan_nats_publish_errors_total",
			Help: "Failed NATS publishes.",
		}),
	}

	pollIntervalGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fahrplan_poll_interval_seconds",
		Help: "Configured poll interval in seconds.",
	})
	pollIntervalGauge.Set(pollInterval.Seconds())

	reg.MustRegister(
		c.Fetches, c.FetchErrors, c.SourceEntries, c.LastSuccess,
		c.ScheduleEntries, c.Polls, c.DegradedPolls, c.PollDuration,
		c.WSClients, c.NATSPublished, c.NATSPublishErr,
		pollIntervalGauge,
	)

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

func (c *Collector) ObserveFetch(source string, entries int, err error, kind string) {
	c.Fetches.WithLabelValues(source).Inc()
	if err != nil {
		c.FetchErrors.WithLabelValues(source, kind).Inc()
		c.SourceEntries.WithLabelValues(source).Set(0)
		return
	}
	c.SourceEntries.WithLabelValues(source).Set(float64(entries))
	c.LastSuccess.WithLabelValues(source).SetToCurrentTime()
}

func (c *Collector) ObservePoll(d time.Duration, entries int, degraded bool) {
	c.Polls.Inc()
	if degraded {
		c.DegradedPolls.Inc()
	}
	c.PollDuration.Observe(d.Seconds())
	c.ScheduleEntries.Set(float64(entries))
}

func (c *Collector) SetWSClients(n int) { c.WSClients.Set(float64(n)) }

func (c *Collector) NATSPublishedInc()  { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc() { c.NATSPublishErr.Inc() }
