// Package request renders HTTP/1.1 request text from named facets.
package request

import (
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/WhileEndless/go-sahttp/pkg/constants"
	"github.com/WhileEndless/go-sahttp/pkg/errors"
	"github.com/WhileEndless/go-sahttp/pkg/log"
)

// Method is a request method supported by the builder.
type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

// Valid reports whether m is a method the builder can render.
func (m Method) Valid() bool {
	return m == MethodGet || m == MethodPost
}

// Range is an inclusive byte range sent as "Range: bytes=Begin-End".
type Range struct {
	Begin uint64
	End   uint64
}

// Builder accumulates the facets of one request. A Builder renders exactly one
// request: after Generate succeeds it refuses further use, so facets from one
// exchange cannot leak into the next.
type Builder struct {
	method    Method
	path      string
	host      string
	userAgent string
	rng       *Range
	body      []byte

	generated bool
	logger    *slog.Logger
}

// NewBuilder returns an empty builder. A nil logger uses the slog default.
func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{
		userAgent: constants.DefaultUserAgent,
		logger:    log.OrDefault(logger),
	}
}

// SetMethod records the method. It must precede SetPostData.
func (b *Builder) SetMethod(m Method) error {
	if err := b.usable(); err != nil {
		return err
	}
	if !m.Valid() {
		return errors.NewInvalidMethodError(string(m))
	}
	b.method = m
	return nil
}

// SetPath records the request target (path plus optional query).
func (b *Builder) SetPath(p string) error {
	if err := b.usable(); err != nil {
		return err
	}
	if !validTarget(p) {
		return errors.NewValidationError("invalid request target " + strconv.Quote(p))
	}
	b.path = p
	return nil
}

// SetHost records the Host header value.
func (b *Builder) SetHost(host string) error {
	if err := b.usable(); err != nil {
		return err
	}
	if !httpguts.ValidHostHeader(host) {
		return errors.NewValidationError("invalid host " + strconv.Quote(host))
	}
	b.host = host
	return nil
}

// SetUserAgent overrides the default "libsa" User-Agent.
func (b *Builder) SetUserAgent(ua string) error {
	if err := b.usable(); err != nil {
		return err
	}
	if ua == "" || !httpguts.ValidHeaderFieldValue(ua) {
		return errors.NewValidationError("invalid user agent " + strconv.Quote(ua))
	}
	b.userAgent = ua
	return nil
}

// SetRange adds a Range header. An empty range (begin == end) and an inverted
// one are ignored with a diagnostic.
func (b *Builder) SetRange(begin, end uint64) {
	if b.generated {
		b.logger.Warn("range set on a used request builder")
		return
	}
	if begin == end {
		b.logger.Debug("range ignored, begin equals end", "begin", begin)
		return
	}
	if begin > end {
		b.logger.Warn("range ignored, begin after end", "begin", begin, "end", end)
		return
	}
	b.rng = &Range{Begin: begin, End: end}
}

// SetPostData sets the form body. The method must already be POST.
func (b *Builder) SetPostData(data []byte) error {
	if b.method != MethodPost {
		return errors.NewInvalidMethodStateError(string(b.method))
	}
	if err := b.usable(); err != nil {
		return err
	}
	if len(data) == 0 {
		b.logger.Debug("empty post data ignored")
		return nil
	}
	b.body = append([]byte(nil), data...)
	return nil
}

// Method returns the recorded method.
func (b *Builder) Method() Method {
	return b.method
}

// Generate renders the request text:
//
//	METHOD path HTTP/1.1
//	User-Agent, Accept, Connection: Close
//	Host
//	[Range]
//	[Content-Length, Content-Type, blank line, body]
//
// Without a body the text ends with a blank line after Host/Range; with one,
// the body is followed by CRLF.
func (b *Builder) Generate() (string, error) {
	if err := b.usable(); err != nil {
		return "", err
	}
	if b.host == "" {
		return "", errors.NewMissingHostError()
	}
	if !b.method.Valid() {
		return "", errors.NewInvalidMethodError(string(b.method))
	}

	target := b.path
	if target == "" {
		target = "/"
	}

	var sb strings.Builder
	sb.Grow(256 + len(b.body))
	sb.WriteString(string(b.method) + " " + target + " HTTP/1.1\r\n")
	sb.WriteString("User-Agent: " + b.userAgent + "\r\n")
	sb.WriteString("Accept: */*\r\n")
	sb.WriteString("Connection: Close\r\n")
	sb.WriteString("Host: " + b.host + "\r\n")
	if b.rng != nil {
		sb.WriteString("Range: bytes=" + strconv.FormatUint(b.rng.Begin, 10) + "-" + strconv.FormatUint(b.rng.End, 10) + "\r\n")
	}
	if len(b.body) > 0 {
		sb.WriteString("Content-Length: " + strconv.Itoa(len(b.body)) + "\r\n")
		sb.WriteString("Content-Type: " + constants.FormContentType + "\r\n\r\n")
		sb.Write(b.body)
		sb.WriteString("\r\n")
	} else {
		sb.WriteString("\r\n")
	}

	b.generated = true
	return sb.String(), nil
}

func (b *Builder) usable() error {
	if b.generated {
		return errors.NewValidationError("request builder already generated a request")
	}
	return nil
}

func validTarget(p string) bool {
	if p == "" {
		return true
	}
	if p[0] != '/' && p != "*" {
		return false
	}
	for i := 0; i < len(p); i++ {
		if p[i] <= ' ' || p[i] == 0x7f {
			return false
		}
	}
	return true
}
