package pgwire

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// OptionFn is a functional option: each one mutates the connectConfig a
// Connect call assembles before dialing.
type OptionFn func(*connectConfig)

type connectConfig struct {
	logger        *slog.Logger
	noticeHandler NoticeHandlerFn
	metrics       *Metrics
	maxMessageSize int
}

func defaultConnectConfig() *connectConfig {
	return &connectConfig{
		logger:         slog.Default(),
		noticeHandler:  defaultNoticeHandler,
		maxMessageSize: 0, // protocol.DefaultMaxMessageSize
	}
}

// WithLogger overrides the *slog.Logger a Session logs through.
func WithLogger(logger *slog.Logger) OptionFn {
	return func(c *connectConfig) {
		c.logger = logger
	}
}

// WithNoticeHandler overrides how a Session reacts to NoticeResponse
// messages it absorbs outside of a request/response cycle.
func WithNoticeHandler(fn NoticeHandlerFn) OptionFn {
	return func(c *connectConfig) {
		c.noticeHandler = fn
	}
}

// WithMetrics attaches a Prometheus-backed Metrics recorder to the session.
func WithMetrics(m *Metrics) OptionFn {
	return func(c *connectConfig) {
		c.metrics = m
	}
}

// WithMaxMessageSize bounds the largest single backend message the reader
// will buffer before failing the connection.
func WithMaxMessageSize(n int) OptionFn {
	return func(c *connectConfig) {
		c.maxMessageSize = n
	}
}

// WithPrometheusRegisterer registers a default Metrics recorder against reg
// and attaches it to the session.
func WithPrometheusRegisterer(reg prometheus.Registerer) OptionFn {
	return func(c *connectConfig) {
		c.metrics = NewMetrics(reg)
	}
}
