package stageship

import (
	"time"

	"github.com/bft-labs/stageship/internal/ports"
	"github.com/bft-labs/stageship/pkg/log"
)

// HTTPClient is the interface for making HTTP requests.
// *http.Client satisfies this interface.
type HTTPClient = ports.HTTPClient

// Logger is the interface for structured logging.
type Logger = log.Logger

// Sink submits payloads to a stream and acknowledges each one with an id.
// An empty id is treated as a failed submission.
type Sink = ports.Sink

// Option configures optional behavior of a Sender.
type Option func(*options)

type options struct {
	httpClient   ports.HTTPClient
	logger       ports.Logger
	sink         ports.Sink
	eventHandler EventHandler
	retention    *RetentionConfig
	now          func() time.Time
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
		now:    time.Now,
	}
}

// WithHTTPClient sets a custom HTTP client for the built-in sink.
// If not provided, a client with Config.HTTPTimeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSink replaces the built-in HTTP sink.
func WithSink(sink Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithEventHandler sets a handler for Sender events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithClock sets the clock used to name batches and stamp delivery status.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
