package response_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WhileEndless/go-sahttp/pkg/errors"
	"github.com/WhileEndless/go-sahttp/pkg/log"
	"github.com/WhileEndless/go-sahttp/pkg/response"
)

func feedAll(p *response.Parser, frames ...string) ([]response.Step, string) {
	var steps []response.Step
	var body strings.Builder
	for _, f := range frames {
		st := p.Feed([]byte(f))
		steps = append(steps, st)
		body.Write(st.Body)
		if st.Kind != response.StepContinue {
			break
		}
	}
	return steps, body.String()
}

func TestContentLengthAcrossFrames(t *testing.T) {
	p := response.NewParser(log.Discard())
	steps, body := feedAll(p,
		"HTTP/1.1 200 OK\r\nContent-Le",
		"ngth: 11\r\nContent-Type: text/plain\r\n\r\nhello",
		" world",
	)
	for _, st := range steps {
		require.Equal(t, response.StepContinue, st.Kind)
	}
	assert.Equal(t, "hello world", body)
	assert.Equal(t, response.StateStreamingBody, p.State())
	assert.Equal(t, 200, p.Status)
	assert.Equal(t, "HTTP/1.1", p.Version)
	assert.Equal(t, "text/plain", p.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(p.RawHeader, "HTTP/1.1 200 OK\r\n"))

	cur, total, ok := p.Progress()
	assert.True(t, ok)
	assert.Equal(t, uint64(11), cur)
	assert.Equal(t, uint64(11), total)

	done := p.Finish()
	assert.Equal(t, response.StepDone, done.Kind)
	assert.NoError(t, done.Err)
	assert.Equal(t, response.StateEndOfStream, p.State())
	assert.Equal(t, 3, p.Frames())
}

func TestPartialPrefixKeepsWaiting(t *testing.T) {
	p := response.NewParser(log.Discard())
	st := p.Feed([]byte("HT"))
	assert.Equal(t, response.StepContinue, st.Kind)
	assert.Equal(t, response.StateAwaitingStatusLine, p.State())
	assert.Equal(t, response.StatusUnset, p.Status)

	_, _, ok := p.Progress()
	assert.False(t, ok)

	st = p.Feed([]byte("TP/1.0 204 No Content\r\n\r\n"))
	assert.Equal(t, response.StepContinue, st.Kind)
	assert.Empty(t, st.Body)
	assert.Equal(t, 204, p.Status)
	assert.Equal(t, response.StateStreamingBody, p.State())
}

func TestRedirect(t *testing.T) {
	p := response.NewParser(log.Discard())
	st := p.Feed([]byte("HTTP/1.1 302 Found\r\nLocation: http://example.test/new\r\nContent-Length: 0\r\n\r\n"))
	require.Equal(t, response.StepRedirect, st.Kind)
	assert.Equal(t, "http://example.test/new", st.Location)
	assert.Equal(t, "http://example.test/new", p.Location)
	assert.Equal(t, response.StateRedirecting, p.State())

	again := p.Feed([]byte("more"))
	assert.Equal(t, response.StepFatal, again.Kind)
	assert.Equal(t, response.StepDone, p.Finish().Kind)
}

func TestRedirectWithoutLocation(t *testing.T) {
	p := response.NewParser(log.Discard())
	st := p.Feed([]byte("HTTP/1.1 301 Moved Permanently\r\nContent-Length: 0\r\n\r\n"))
	require.Equal(t, response.StepFatal, st.Kind)
	assert.ErrorIs(t, st.Err, errors.ErrMissingLocation)
	assert.Equal(t, response.StateFailed, p.State())
}

func TestBadStatus(t *testing.T) {
	for _, tt := range []struct {
		name   string
		frame  string
		status int
	}{
		{"not found", "HTTP/1.1 404 Not Found\r\nContent-Length: 9\r\n\r\nnot found", 404},
		{"server error before headers end", "HTTP/1.1 500 Internal Server Error\r\nServer: x", 500},
		{"informational", "HTTP/1.1 100 Continue\r\n\r\n", 100},
	} {
		t.Run(tt.name, func(t *testing.T) {
			p := response.NewParser(log.Discard())
			st := p.Feed([]byte(tt.frame))
			require.Equal(t, response.StepFatal, st.Kind)
			assert.ErrorIs(t, st.Err, errors.ErrStatus)
			assert.Empty(t, st.Body)

			var e *errors.Error
			require.ErrorAs(t, st.Err, &e)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.status, p.Status)
		})
	}
}

func TestBadStatusLogsOnce(t *testing.T) {
	var buf bytes.Buffer
	p := response.NewParser(log.New(log.WithWriter(&buf)))
	st := p.Feed([]byte("HTTP/1.1 503 Service Unavailable\r\n\r\n"))
	require.Equal(t, response.StepFatal, st.Kind)

	assert.Equal(t, 1, strings.Count(buf.String(), "level=WARN"), buf.String())
	assert.Contains(t, buf.String(), "unexpected status 503")
}

func TestFramingErrors(t *testing.T) {
	for _, tt := range []struct {
		name   string
		frames []string
	}{
		{"garbage", []string{"garbage\r\n\r\n"}},
		{"garbage after partial prefix", []string{"HT", "XX/1.1 200 OK\r\n\r\n"}},
		{"bad status code", []string{"HTTP/1.1 abc OK\r\n\r\n"}},
		{"missing status code", []string{"HTTP/1.1\r\n\r\n"}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			p := response.NewParser(log.Discard())
			steps, _ := feedAll(p, tt.frames...)
			last := steps[len(steps)-1]
			require.Equal(t, response.StepFatal, last.Kind)
			assert.ErrorIs(t, last.Err, errors.ErrFraming)
			assert.Equal(t, response.StateFailed, p.State())
		})
	}
}

func TestHeaderLimit(t *testing.T) {
	p := response.NewParser(log.Discard())
	p.SetMaxHeaderBytes(64)

	st := p.Feed([]byte("HTTP/1.1 200 OK\r\n"))
	require.Equal(t, response.StepContinue, st.Kind)
	st = p.Feed([]byte("X-Filler: " + strings.Repeat("a", 80) + "\r\n"))
	require.Equal(t, response.StepFatal, st.Kind)
	assert.ErrorIs(t, st.Err, errors.ErrFraming)
}

func TestChunkedPassThrough(t *testing.T) {
	p := response.NewParser(log.Discard())
	_, body := feedAll(p,
		"HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n",
		"0\r\n\r\n",
	)
	assert.True(t, p.Chunked)
	assert.False(t, p.HasLength)
	assert.Equal(t, "5\r\nhello\r\n0\r\n\r\n", body)

	_, _, ok := p.Progress()
	assert.False(t, ok)
	assert.NoError(t, p.Finish().Err)
}

func TestTruncatedBody(t *testing.T) {
	p := response.NewParser(log.Discard())
	_, body := feedAll(p, "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nabc")
	assert.Equal(t, "abc", body)

	st := p.Finish()
	assert.Equal(t, response.StepDone, st.Kind)
	assert.Equal(t, errors.ErrorTypeProtocol, errors.GetErrorType(st.Err))
}

func TestFinishWithoutResponse(t *testing.T) {
	p := response.NewParser(log.Discard())
	st := p.Finish()
	assert.Equal(t, response.StepDone, st.Kind)
	assert.Equal(t, errors.ErrorTypeProtocol, errors.GetErrorType(st.Err))

	p = response.NewParser(log.Discard())
	p.Feed([]byte("HTTP/1.1 200 OK\r\nContent-"))
	st = p.Finish()
	assert.ErrorIs(t, st.Err, errors.ErrFraming)
	assert.Equal(t, response.StateEndOfStream, p.State())

	assert.Equal(t, response.StepFatal, p.Feed([]byte("late")).Kind)
}

func TestLeadingLineBreaksTrimmed(t *testing.T) {
	p := response.NewParser(log.Discard())
	st := p.Feed([]byte("HTTP/1.1 200 OK\r\n\r\n\r\n\nbody"))
	require.Equal(t, response.StepContinue, st.Kind)
	assert.Equal(t, "body", string(st.Body))
}

func TestFoldedHeader(t *testing.T) {
	p := response.NewParser(log.Discard())
	p.Feed([]byte("HTTP/1.1 200 OK\r\nX-Long: first\r\n\tsecond\r\nx-multi: a\r\nX-Multi: b\r\n\r\n"))
	assert.Equal(t, "first second", p.Header.Get("X-Long"))
	assert.Equal(t, []string{"a", "b"}, p.Header.Values("X-Multi"))
}

func TestInvalidContentLength(t *testing.T) {
	for _, cl := range []string{"abc", "-1", "99999999999999"} {
		t.Run(cl, func(t *testing.T) {
			p := response.NewParser(log.Discard())
			st := p.Feed([]byte("HTTP/1.1 200 OK\r\nContent-Length: " + cl + "\r\n\r\n"))
			require.Equal(t, response.StepFatal, st.Kind)
			assert.Equal(t, errors.ErrorTypeProtocol, errors.GetErrorType(st.Err))
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "streaming-body", response.StateStreamingBody.String())
	assert.True(t, response.StateFailed.Terminal())
	assert.False(t, response.StateStreamingBody.Terminal())
}
