package client

import (
	"log/slog"
	"net"
	"time"

	"github.com/WhileEndless/go-sahttp/pkg/constants"
	"github.com/WhileEndless/go-sahttp/pkg/log"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	connTimeout    time.Duration
	dnsTimeout     time.Duration
	sendTimeout    time.Duration
	receiveTimeout time.Duration
	readSize       int
	maxRedirects   int
	userAgent      string
	resolver       *net.Resolver
}

func defaultOptions() options {
	return options{
		connTimeout:    constants.DefaultConnTimeout,
		dnsTimeout:     constants.DefaultDNSTimeout,
		sendTimeout:    constants.DefaultSendTimeout,
		receiveTimeout: constants.DefaultReceiveTimeout,
		readSize:       constants.DefaultReadSize,
		maxRedirects:   constants.DefaultMaxRedirects,
		userAgent:      constants.DefaultUserAgent,
	}
}

// WithLogger sets the diagnostic logger. The slog default is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithConnectTimeout bounds the TCP connect.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connTimeout = d
		}
	}
}

// WithDNSTimeout bounds address resolution.
func WithDNSTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.dnsTimeout = d
		}
	}
}

// WithSendTimeout bounds writing the request. The default is 200ms.
func WithSendTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sendTimeout = d
		}
	}
}

// WithReceiveTimeout bounds each read. A read that times out ends the
// exchange as if the peer had closed. The default is 3s.
func WithReceiveTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.receiveTimeout = d
		}
	}
}

// WithReadSize sets the per-read cap. The default is 4096 bytes.
func WithReadSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readSize = n
		}
	}
}

// WithMaxRedirects sets how many redirect hops one call may follow. Zero
// disables following.
func WithMaxRedirects(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRedirects = n
		}
	}
}

// WithUserAgent overrides the "libsa" User-Agent.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithResolver sets the resolver used for host lookups.
func WithResolver(r *net.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// ProgressFunc receives the body bytes seen so far and the declared total.
// Returning false stops the exchange.
type ProgressFunc func(current, total uint64) bool

// ReceiveFunc receives body fragments. The final call has a nil fragment and
// more == false. Returning false stops the exchange.
type ReceiveFunc func(fragment []byte, more bool) bool

// RequestOption configures a single Get or Post.
type RequestOption func(*call)

type call struct {
	rng      *[2]uint64
	progress ProgressFunc
	receive  ReceiveFunc
}

// WithRange requests bytes begin..end (inclusive).
func WithRange(begin, end uint64) RequestOption {
	return func(c *call) {
		c.rng = &[2]uint64{begin, end}
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) RequestOption {
	return func(c *call) {
		c.progress = fn
	}
}

// WithReceive sets the body fragment callback.
func WithReceive(fn ReceiveFunc) RequestOption {
	return func(c *call) {
		c.receive = fn
	}
}

func newCall(logger *slog.Logger, opts []RequestOption) *call {
	c := &call{}
	for _, opt := range opts {
		opt(c)
	}
	logger = log.OrDefault(logger)
	if c.progress == nil {
		c.progress = func(current, total uint64) bool {
			logger.Debug("progress", "current", current, "total", total)
			return true
		}
	}
	if c.receive == nil {
		c.receive = func(fragment []byte, more bool) bool {
			logger.Debug("recv", "bytes", len(fragment), "more", more)
			return true
		}
	}
	return c
}
