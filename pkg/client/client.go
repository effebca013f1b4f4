// Package client provides the HTTP/1.1 client that drives a request over a
// raw socket, parses the reply as it streams in and follows redirects.
package client

import (
	"context"
	stdErrors "errors"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/WhileEndless/go-sahttp/pkg/endpoint"
	"github.com/WhileEndless/go-sahttp/pkg/errors"
	"github.com/WhileEndless/go-sahttp/pkg/log"
	"github.com/WhileEndless/go-sahttp/pkg/request"
	"github.com/WhileEndless/go-sahttp/pkg/response"
	"github.com/WhileEndless/go-sahttp/pkg/timing"
	"github.com/WhileEndless/go-sahttp/pkg/transport"
)

// Result is what one Get or Post produced. It is always returned, even when
// the exchange failed; Status stays at -1 when no status line was parsed.
type Result struct {
	Version        string
	Status         int
	Headers        string
	Header         map[string][]string
	Location       string
	ContentTotal   uint64
	ContentCurrent uint64
	Chunked        bool

	// URL is the request that produced this result, after redirects.
	URL        string
	Redirects  int
	ExchangeID string
	Timings    timing.Metrics

	// Failure holds the protocol or I/O condition that ended the exchange
	// early. It is nil for a clean end of stream.
	Failure error
	// Aborted is set when a callback asked to stop.
	Aborted bool
}

func newResult() *Result {
	return &Result{Status: response.StatusUnset, Header: map[string][]string{}}
}

// Client issues requests against one endpoint. Each exchange uses its own
// connection (requests carry Connection: Close); a Client is not safe for
// concurrent use, create one per goroutine instead.
type Client struct {
	ep     endpoint.Endpoint
	opts   options
	logger *slog.Logger

	sock  *transport.Socket
	timer *timing.Timer
}

// New parses rawURL and opens a connection to it.
func New(ctx context.Context, rawURL string, opts ...Option) (*Client, error) {
	ep, err := endpoint.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return newClient(ctx, ep, opts)
}

// NewWithAddr opens a connection to host:port; requests default to path "/".
func NewWithAddr(ctx context.Context, host string, port int, opts ...Option) (*Client, error) {
	return newClient(ctx, endpoint.Endpoint{Scheme: "http", Host: host, Port: port}, opts)
}

func newClient(ctx context.Context, ep endpoint.Endpoint, opts []Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c := &Client{ep: ep, opts: o, logger: log.OrDefault(o.logger)}
	if err := checkScheme(ep); err != nil {
		return nil, err
	}
	if err := c.open(ctx, ep); err != nil {
		return nil, err
	}
	return c, nil
}

func checkScheme(ep endpoint.Endpoint) error {
	if ep.Scheme != "http" {
		return errors.NewValidationError("scheme " + ep.Scheme + " is not supported, only plain http")
	}
	return nil
}

// Endpoint returns the URL the client was built for. Redirects followed by a
// call only apply to that call.
func (c *Client) Endpoint() endpoint.Endpoint {
	return c.ep
}

// Close releases the connection, if one is open.
func (c *Client) Close() error {
	if c.sock == nil {
		return nil
	}
	err := c.sock.Close()
	c.sock = nil
	return err
}

func (c *Client) open(ctx context.Context, ep endpoint.Endpoint) error {
	c.timer = timing.NewTimer()
	sock := transport.New(transport.Config{
		ConnTimeout:    c.opts.connTimeout,
		DNSTimeout:     c.opts.dnsTimeout,
		SendTimeout:    c.opts.sendTimeout,
		ReceiveTimeout: c.opts.receiveTimeout,
		Resolver:       c.opts.resolver,
		Logger:         c.logger,
		Timer:          c.timer,
	})
	if err := sock.Open(ctx, ep.Host, ep.Port, false); err != nil {
		return err
	}
	c.sock = sock
	return nil
}

// Get requests path (the endpoint's own path and query when empty).
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Result, error) {
	return c.do(ctx, request.MethodGet, path, nil, opts)
}

// Post sends body as a form to path (the endpoint's own path when empty).
// With an empty body the endpoint's query string is sent instead.
func (c *Client) Post(ctx context.Context, path string, body []byte, opts ...RequestOption) (*Result, error) {
	if path == "" && len(body) == 0 {
		body = []byte(c.ep.Query)
	}
	if path == "" {
		path = c.ep.RequestPath()
	}
	return c.do(ctx, request.MethodPost, path, body, opts)
}

func (c *Client) do(ctx context.Context, method request.Method, path string, body []byte, opts []RequestOption) (*Result, error) {
	id := uuid.NewString()
	logger := c.logger.With("exchange", id)
	cl := newCall(logger, opts)

	ep := c.ep
	target := path
	if target == "" {
		target = ep.RequestURI()
	}

	for hops := 0; ; hops++ {
		res, step, err := c.attempt(ctx, logger, ep, method, target, body, cl)
		res.ExchangeID = id
		res.Redirects = hops
		if err != nil || step.Kind != response.StepRedirect {
			return res, err
		}

		if hops >= c.opts.maxRedirects {
			logger.Warn("redirect limit reached", "limit", c.opts.maxRedirects, "location", step.Location)
			res.Failure = errors.NewTooManyRedirectsError(c.opts.maxRedirects)
			return res, res.Failure
		}
		next, err := ep.Resolve(step.Location)
		if err == nil {
			err = checkScheme(next)
		}
		if err != nil {
			logger.Warn("redirect target rejected", "location", step.Location, "error", err)
			res.Failure = err
			return res, err
		}

		logger.Debug("redirect switch", "from", ep.String(), "to", next.String())
		ep = next
		target = next.RequestURI()
		if err := c.open(ctx, ep); err != nil {
			res.Failure = err
			return res, err
		}
	}
}

// attempt runs one request/response cycle against ep and closes the
// connection afterwards.
func (c *Client) attempt(ctx context.Context, logger *slog.Logger, ep endpoint.Endpoint, method request.Method, target string, body []byte, cl *call) (*Result, response.Step, error) {
	res := newResult()
	res.URL = ep.Scheme + "://" + ep.HostHeader() + target

	if c.sock == nil || !c.sock.IsOpen() {
		if err := c.open(ctx, ep); err != nil {
			return res, response.Step{}, err
		}
	}
	timer := c.timer
	defer func() {
		c.Close()
		res.Timings = timer.GetMetrics()
	}()

	text, err := c.render(logger, ep, method, target, body, cl)
	if err != nil {
		return res, response.Step{}, err
	}
	if err := c.sock.Send([]byte(text)); err != nil {
		logger.Warn("send failure", "error", err)
		return res, response.Step{}, err
	}
	timer.StartTTFB()

	p := response.NewParser(logger)
	step := c.readLoop(ctx, logger, p, cl, res, timer)
	fill(res, p)
	return res, step, nil
}

func (c *Client) render(logger *slog.Logger, ep endpoint.Endpoint, method request.Method, target string, body []byte, cl *call) (string, error) {
	b := request.NewBuilder(logger)
	if err := b.SetMethod(method); err != nil {
		return "", err
	}
	if err := b.SetPath(target); err != nil {
		return "", err
	}
	if err := b.SetHost(ep.HostHeader()); err != nil {
		return "", err
	}
	if err := b.SetUserAgent(c.opts.userAgent); err != nil {
		return "", err
	}
	if cl.rng != nil {
		b.SetRange(cl.rng[0], cl.rng[1])
	}
	if method == request.MethodPost {
		if err := b.SetPostData(body); err != nil {
			return "", err
		}
	}
	return b.Generate()
}

// readLoop feeds frames to p until the stream ends, a redirect or failure is
// seen, or a callback stops it.
func (c *Client) readLoop(ctx context.Context, logger *slog.Logger, p *response.Parser, cl *call, res *Result, timer *timing.Timer) response.Step {
	for {
		if err := ctx.Err(); err != nil {
			logger.Debug("exchange canceled", "error", err)
			res.Failure = err
			return response.Step{Kind: response.StepFatal, Err: err}
		}

		frame, err := c.sock.Receive(c.opts.readSize)
		if err != nil {
			switch {
			case stdErrors.Is(err, io.EOF):
			case errors.IsTimeoutError(err):
				logger.Debug("receive timed out, treating as end of stream")
			default:
				logger.Warn("receive failure", "error", err)
				res.Failure = err
			}
			step := p.Finish()
			if step.Err != nil && res.Failure == nil {
				res.Failure = step.Err
			}
			cl.receive(nil, false)
			return step
		}
		timer.EndTTFB()

		wasStreaming := p.State() == response.StateStreamingBody
		step := p.Feed(frame)
		switch step.Kind {
		case response.StepRedirect:
			return step
		case response.StepFatal:
			res.Failure = step.Err
			return step
		}

		if p.State() != response.StateStreamingBody {
			continue
		}
		if len(step.Body) == 0 && wasStreaming {
			continue
		}
		if cur, total, ok := p.Progress(); ok && !cl.progress(cur, total) {
			return abort(logger, res)
		}
		if len(step.Body) > 0 && !cl.receive(step.Body, true) {
			return abort(logger, res)
		}
	}
}

func abort(logger *slog.Logger, res *Result) response.Step {
	logger.Debug("exchange stopped by callback")
	res.Aborted = true
	return response.Step{Kind: response.StepDone}
}

func fill(res *Result, p *response.Parser) {
	res.Version = p.Version
	res.Status = p.Status
	res.Headers = p.RawHeader
	for k, v := range p.Header {
		res.Header[k] = v
	}
	res.Location = p.Location
	res.ContentTotal = p.ContentLength
	res.ContentCurrent = p.Received
	res.Chunked = p.Chunked
}

// Collect returns a receive callback that writes every fragment to w and
// stops the exchange on the first write error.
func Collect(w io.Writer) ReceiveFunc {
	return func(fragment []byte, more bool) bool {
		if len(fragment) == 0 {
			return true
		}
		_, err := w.Write(fragment)
		return err == nil
	}
}
