// Package response turns the raw frames read from a socket into a status,
// headers and a stream of body fragments.
package response

import (
	"bytes"
	"log/slog"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/WhileEndless/go-sahttp/pkg/constants"
	"github.com/WhileEndless/go-sahttp/pkg/errors"
	"github.com/WhileEndless/go-sahttp/pkg/log"
)

// StatusUnset is the Status of a parser that has not seen a status line.
const StatusUnset = -1

var (
	headerSeparator = []byte("\r\n\r\n")
	crlf            = []byte("\r\n")
	httpPrefix      = []byte("HTTP/")
)

// State is the position of a parser in its exchange.
type State int

const (
	StateAwaitingStatusLine State = iota
	StateStreamingBody
	StateRedirecting
	StateFailed
	StateEndOfStream
)

func (s State) String() string {
	switch s {
	case StateAwaitingStatusLine:
		return "awaiting-status-line"
	case StateStreamingBody:
		return "streaming-body"
	case StateRedirecting:
		return "redirecting"
	case StateFailed:
		return "failed"
	case StateEndOfStream:
		return "end-of-stream"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further frames will be accepted.
func (s State) Terminal() bool {
	return s == StateRedirecting || s == StateFailed || s == StateEndOfStream
}

// StepKind tells the read loop what to do after a frame.
type StepKind int

const (
	// StepContinue asks for the next frame. Body may carry a fragment.
	StepContinue StepKind = iota
	// StepRedirect ends the loop; Location holds the new target.
	StepRedirect
	// StepFatal ends the loop; Err holds the reason.
	StepFatal
	// StepDone marks the end of the stream. Err may report a truncated response.
	StepDone
)

// Step is the outcome of feeding one frame.
type Step struct {
	Kind     StepKind
	Body     []byte
	Location string
	Err      error
}

// Parser is the per-exchange response state. Header bytes are accumulated
// across frames until the CRLF CRLF boundary shows up; after that every frame
// is passed through as body.
type Parser struct {
	state          State
	acc            []byte
	maxHeaderBytes int
	frames         int
	logger         *slog.Logger

	Version       string
	Status        int
	RawHeader     string
	Header        textproto.MIMEHeader
	Location      string
	ContentLength uint64
	HasLength     bool
	Received      uint64
	Chunked       bool
}

// NewParser returns a parser awaiting a status line.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{
		state:          StateAwaitingStatusLine,
		maxHeaderBytes: constants.MaxHeaderBytes,
		logger:         log.OrDefault(logger),
		Status:         StatusUnset,
		Header:         textproto.MIMEHeader{},
	}
}

// SetMaxHeaderBytes bounds the header accumulator.
func (p *Parser) SetMaxHeaderBytes(n int) {
	if n > 0 {
		p.maxHeaderBytes = n
	}
}

// State returns the current state.
func (p *Parser) State() State {
	return p.state
}

// Frames returns the number of frames fed so far.
func (p *Parser) Frames() int {
	return p.frames
}

// Progress returns bytes received and the declared total. ok is false for
// chunked responses, whose total is unknown.
func (p *Parser) Progress() (current, total uint64, ok bool) {
	if p.Chunked || p.state == StateAwaitingStatusLine {
		return p.Received, p.ContentLength, false
	}
	return p.Received, p.ContentLength, true
}

// Feed consumes one frame.
func (p *Parser) Feed(frame []byte) Step {
	if p.state.Terminal() {
		return Step{Kind: StepFatal, Err: errors.NewProtocolError("frame after "+p.state.String(), nil)}
	}
	p.frames++

	if p.state == StateStreamingBody {
		p.Received += uint64(len(frame))
		return Step{Kind: StepContinue, Body: frame}
	}

	p.acc = append(p.acc, frame...)
	return p.parseHead()
}

// Finish marks the end of the stream.
func (p *Parser) Finish() Step {
	prev := p.state
	if prev == StateRedirecting || prev == StateFailed {
		return Step{Kind: StepDone}
	}
	p.state = StateEndOfStream

	switch {
	case prev == StateAwaitingStatusLine && len(p.acc) > 0:
		p.acc = nil
		return Step{Kind: StepDone, Err: errors.NewFramingError("stream ended inside the response header")}
	case prev == StateAwaitingStatusLine:
		return Step{Kind: StepDone, Err: errors.NewProtocolError("stream ended before any response", nil)}
	case p.HasLength && !p.Chunked && p.Received < p.ContentLength:
		p.logger.Warn("response body truncated", "received", p.Received, "declared", p.ContentLength)
		return Step{Kind: StepDone, Err: errors.NewProtocolError(
			"connection closed after "+strconv.FormatUint(p.Received, 10)+" of "+strconv.FormatUint(p.ContentLength, 10)+" body bytes", nil)}
	}
	return Step{Kind: StepDone}
}

func (p *Parser) parseHead() Step {
	n := len(p.acc)
	if n < len(httpPrefix) {
		if !bytes.HasPrefix(httpPrefix, p.acc) {
			return p.fail(errors.NewFramingError("response does not start with a status line"))
		}
		return p.checkSize()
	}
	if !bytes.HasPrefix(p.acc, httpPrefix) {
		return p.fail(errors.NewFramingError("response does not start with a status line"))
	}

	if p.Status == StatusUnset {
		eol := bytes.Index(p.acc, crlf)
		if eol < 0 {
			return p.checkSize()
		}
		if err := p.parseStatusLine(string(p.acc[:eol])); err != nil {
			return p.fail(err)
		}
	}

	boundary := bytes.Index(p.acc, headerSeparator)

	if !isSuccess(p.Status) && !isRedirect(p.Status) {
		if boundary >= 0 {
			p.parseHeaders(p.acc[:boundary])
		}
		return p.fail(errors.NewStatusError(p.Status))
	}

	if boundary < 0 {
		return p.checkSize()
	}

	p.parseHeaders(p.acc[:boundary])
	body := bytes.TrimLeft(p.acc[boundary+len(headerSeparator):], "\r\n")
	p.acc = nil

	if isRedirect(p.Status) {
		loc := p.Header.Get("Location")
		if loc == "" {
			p.logger.Warn("redirect failure, no new url", "status", p.Status)
			return p.fail(errors.NewMissingLocationError(p.Status))
		}
		p.Location = loc
		p.state = StateRedirecting
		return Step{Kind: StepRedirect, Location: loc}
	}

	if err := p.parseFraming(); err != nil {
		return p.fail(err)
	}
	p.state = StateStreamingBody
	p.Received = uint64(len(body))
	return Step{Kind: StepContinue, Body: body}
}

func (p *Parser) checkSize() Step {
	if len(p.acc) > p.maxHeaderBytes {
		return p.fail(errors.NewFramingError("response header exceeds " + strconv.Itoa(p.maxHeaderBytes) + " bytes"))
	}
	return Step{Kind: StepContinue}
}

func (p *Parser) fail(err error) Step {
	p.state = StateFailed
	p.acc = nil
	p.logger.Warn("response failed", "error", err)
	return Step{Kind: StepFatal, Err: err}
}

func (p *Parser) parseStatusLine(line string) error {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return errors.NewFramingError("invalid status line " + strconv.Quote(line))
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil || code < 100 || code > 999 {
		return errors.NewFramingError("invalid status code in " + strconv.Quote(line))
	}
	p.Version = parts[0]
	p.Status = code
	return nil
}

// parseHeaders reads the header block (status line included) into RawHeader
// and Header. Folded continuation lines are appended to the previous value.
func (p *Parser) parseHeaders(block []byte) {
	p.RawHeader = string(block)
	lines := strings.Split(p.RawHeader, "\r\n")
	var lastKey string
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if lastKey == "" {
				continue
			}
			vals := p.Header[lastKey]
			vals[len(vals)-1] += " " + strings.TrimSpace(line)
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		lastKey = textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(key))
		p.Header[lastKey] = append(p.Header[lastKey], strings.TrimSpace(value))
	}
}

// parseFraming reads Content-Length, falling back to Transfer-Encoding: chunked.
// Chunked bodies are only flagged; fragments are passed on still chunk-framed.
func (p *Parser) parseFraming() error {
	if cl := p.Header.Get("Content-Length"); cl != "" {
		length, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
		if err != nil {
			return errors.NewProtocolError("invalid content-length", err)
		}
		if length < 0 {
			return errors.NewProtocolError("negative content-length not allowed", nil)
		}
		if length > constants.MaxContentLength {
			return errors.NewProtocolError("content-length too large", nil)
		}
		p.ContentLength = uint64(length)
		p.HasLength = true
		return nil
	}
	for _, te := range p.Header.Values("Transfer-Encoding") {
		if strings.Contains(strings.ToLower(te), "chunked") {
			p.Chunked = true
			p.logger.Debug("chunked response, body is delivered chunk-framed")
			break
		}
	}
	return nil
}

func isSuccess(code int) bool  { return code >= 200 && code <= 299 }
func isRedirect(code int) bool { return code >= 300 && code <= 399 }
