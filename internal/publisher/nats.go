package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"

	"fahrplan/internal/domain"
	"fahrplan/internal/schedule"
)

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
}

// Conn is the part of *nats.Conn the publisher uses
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

// NATSPublisher sends every changed schedule to <prefix>.schedule and one
// filtered copy per transport type to <prefix>.schedule.<type>.
type NATSPublisher struct {
	nc      Conn
	prefix  string
	metrics PublisherMetrics
	logger  *slog.Logger
}

// Connect dials NATS, retrying with exponential backoff for up to maxWait
func Connect(ctx context.Context, url string, maxWait time.Duration, logger *slog.Logger) (*nats.Conn, error) {
	logger = logger.With("component", "nats")

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = maxWait

	return backoff.RetryNotifyWithData(func() (*nats.Conn, error) {
		return nats.Connect(url,
			nats.Name("fahrplan"),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				logger.Info("nats reconnected")
			}),
			nats.ClosedHandler(func(_ *nats.Conn) {
				logger.Info("nats closed")
			}),
		)
	}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		logger.Warn("nats not reachable, retrying", "url", url, "in", d, "error", err)
	})
}

func NewNATSPublisher(nc Conn, prefix string, m PublisherMetrics, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{
		nc:      nc,
		prefix:  subjectToken(prefix),
		metrics: m,
		logger:  logger.With("component", "nats_publisher"),
	}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

type ScheduleMessage struct {
	Filter      domain.Filter          `json:"filter"`
	Entries     []domain.ScheduleEntry `json:"entries"`
	GeneratedAt time.Time              `json:"generatedAt"`
	Degraded    bool                   `json:"degraded"`
}

// Subject returns the subject a schedule filtered by f is published on
func (p *NATSPublisher) Subject(f domain.Filter) string {
	if f == domain.FilterAll {
		return p.prefix + ".schedule"
	}
	return fmt.Sprintf("%s.schedule.%s", p.prefix, subjectToken(string(f)))
}

func (p *NATSPublisher) PublishSchedule(_ context.Context, sched *domain.Schedule) error {
	for _, f := range []domain.Filter{domain.FilterAll, domain.FilterBus, domain.FilterTrain} {
		msg := ScheduleMessage{
			Filter:      f,
			Entries:     schedule.Filter(sched.Entries, f),
			GeneratedAt: sched.GeneratedAt,
			Degraded:    sched.Degraded(),
		}
		if err := p.publish(p.Subject(f), msg); err != nil {
			return err
		}
	}
	return nil
}

func (p *NATSPublisher) publish(subject string, msg ScheduleMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("published schedule", "subject", subject, "entries", len(msg.Entries))
	return nil
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
