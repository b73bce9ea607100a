// Package pageview records page requests for site-activity analytics. Recording
// is best effort: failures are logged and never reach the request.
package pageview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mssola/useragent"
	"github.com/twmb/franz-go/pkg/kgo"

	"webgate/internal/platform/metrics"
	id "webgate/pkg/domain"
	request "webgate/pkg/platform/middleware/request"
)

// View is one page request.
type View struct {
	PersonID  *id.PersonID `json:"person_id,omitempty"`
	URL       string       `json:"url"`
	ClientIP  string       `json:"client_ip,omitempty"`
	Referer   string       `json:"referer,omitempty"`
	Device    string       `json:"device"`
	RequestID string       `json:"request_id,omitempty"`
	At        time.Time    `json:"at"`
}

// Recorder accepts page views.
type Recorder interface {
	Record(ctx context.Context, v View)
}

// ParseUserAgent summarizes a User-Agent header as "Browser on OS".
func ParseUserAgent(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "Unknown Device"
	}
	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OS()
	if os == "" {
		os = "Unknown OS"
	}
	if ua.Bot() {
		return fmt.Sprintf("%s (bot)", browser)
	}
	return fmt.Sprintf("%s on %s", browser, os)
}

// LogRecorder writes page views to the structured log.
type LogRecorder struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewLogRecorder returns a Recorder backed by logger.
func NewLogRecorder(logger *slog.Logger, m *metrics.Metrics) *LogRecorder {
	return &LogRecorder{logger: logger, metrics: m}
}

func (r *LogRecorder) Record(ctx context.Context, v View) {
	attrs := []any{
		"url", v.URL,
		"client_ip", v.ClientIP,
		"referer", v.Referer,
		"device", v.Device,
		"request_id", v.RequestID,
	}
	if v.PersonID != nil {
		attrs = append(attrs, "person_id", v.PersonID.String())
	}
	r.logger.InfoContext(ctx, "page view", attrs...)
	r.metrics.ObservePageView("recorded")
}

// Producer is the subset of *kgo.Client used by KafkaRecorder.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// KafkaRecorder publishes page views as JSON records keyed by person id
// (or client IP for anonymous visitors) so one visitor's views stay ordered.
type KafkaRecorder struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewKafkaRecorder returns a Recorder publishing to topic.
func NewKafkaRecorder(producer Producer, topic string, logger *slog.Logger, m *metrics.Metrics) *KafkaRecorder {
	return &KafkaRecorder{producer: producer, topic: topic, logger: logger, metrics: m}
}

func (r *KafkaRecorder) Record(ctx context.Context, v View) {
	value, err := json.Marshal(v)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to encode page view",
			"error", err,
			"request_id", request.GetRequestID(ctx),
		)
		r.metrics.ObservePageView("failed")
		return
	}

	key := v.ClientIP
	if v.PersonID != nil {
		key = v.PersonID.String()
	}
	record := &kgo.Record{Topic: r.topic, Key: []byte(key), Value: value, Timestamp: v.At}

	// The produce outlives the request; detach from its cancellation.
	produceCtx := context.WithoutCancel(ctx)
	r.producer.Produce(produceCtx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			r.logger.WarnContext(produceCtx, "failed to publish page view",
				"error", err,
				"topic", r.topic,
				"request_id", v.RequestID,
			)
			r.metrics.ObservePageView("failed")
			return
		}
		r.metrics.ObservePageView("recorded")
	})
}

// Discard drops every view.
type Discard struct{}

func (Discard) Record(context.Context, View) {}
