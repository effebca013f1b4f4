package request_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WhileEndless/go-sahttp/pkg/errors"
	"github.com/WhileEndless/go-sahttp/pkg/log"
	"github.com/WhileEndless/go-sahttp/pkg/request"
)

func newBuilder(t *testing.T, m request.Method, path, host string) *request.Builder {
	t.Helper()
	b := request.NewBuilder(log.Discard())
	require.NoError(t, b.SetMethod(m))
	require.NoError(t, b.SetPath(path))
	require.NoError(t, b.SetHost(host))
	return b
}

func TestGenerateGet(t *testing.T) {
	b := newBuilder(t, request.MethodGet, "/index.html", "example.com")

	got, err := b.Generate()
	require.NoError(t, err)
	assert.Equal(t, "GET /index.html HTTP/1.1\r\n"+
		"User-Agent: libsa\r\n"+
		"Accept: */*\r\n"+
		"Connection: Close\r\n"+
		"Host: example.com\r\n"+
		"\r\n", got)
}

func TestGenerateRange(t *testing.T) {
	tests := []struct {
		name       string
		begin, end uint64
		want       string
	}{
		{"ascending", 0, 99, "Range: bytes=0-99\r\n"},
		{"empty", 10, 10, ""},
		{"inverted", 99, 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(t, request.MethodGet, "/file", "example.com")
			b.SetRange(tt.begin, tt.end)

			got, err := b.Generate()
			require.NoError(t, err)
			assert.Equal(t, "GET /file HTTP/1.1\r\n"+
				"User-Agent: libsa\r\n"+
				"Accept: */*\r\n"+
				"Connection: Close\r\n"+
				"Host: example.com\r\n"+
				tt.want+
				"\r\n", got)
		})
	}
}

func TestGeneratePost(t *testing.T) {
	b := newBuilder(t, request.MethodPost, "/submit", "example.com:8080")
	require.NoError(t, b.SetPostData([]byte("a=1&b=2")))

	got, err := b.Generate()
	require.NoError(t, err)
	assert.Equal(t, "POST /submit HTTP/1.1\r\n"+
		"User-Agent: libsa\r\n"+
		"Accept: */*\r\n"+
		"Connection: Close\r\n"+
		"Host: example.com:8080\r\n"+
		"Content-Length: 7\r\n"+
		"Content-Type: application/x-www-form-urlencoded;charset=UTF-8\r\n"+
		"\r\n"+
		"a=1&b=2\r\n", got)
}

func TestPostEmptyDataOmitsBody(t *testing.T) {
	b := newBuilder(t, request.MethodPost, "/submit", "example.com")
	require.NoError(t, b.SetPostData(nil))

	got, err := b.Generate()
	require.NoError(t, err)
	assert.NotContains(t, got, "Content-Length")
	assert.NotContains(t, got, "Content-Type")
}

func TestPostDataRequiresPost(t *testing.T) {
	b := newBuilder(t, request.MethodGet, "/", "example.com")
	err := b.SetPostData([]byte("x=1"))
	require.ErrorIs(t, err, errors.ErrInvalidMethodState)

	got, err := b.Generate()
	require.NoError(t, err)
	assert.NotContains(t, got, "x=1")
	assert.NotContains(t, got, "Content-Length")

	// the method check wins over the use-once check
	assert.ErrorIs(t, b.SetPostData([]byte("x=1")), errors.ErrInvalidMethodState)
}

func TestPostDataWithoutMethod(t *testing.T) {
	b := request.NewBuilder(log.Discard())
	assert.ErrorIs(t, b.SetPostData([]byte("x=1")), errors.ErrInvalidMethodState)
}

func TestGenerateValidation(t *testing.T) {
	t.Run("missing host", func(t *testing.T) {
		b := request.NewBuilder(log.Discard())
		require.NoError(t, b.SetMethod(request.MethodGet))
		_, err := b.Generate()
		assert.ErrorIs(t, err, errors.ErrMissingHost)
	})

	t.Run("unset method", func(t *testing.T) {
		b := request.NewBuilder(log.Discard())
		require.NoError(t, b.SetHost("example.com"))
		_, err := b.Generate()
		assert.ErrorIs(t, err, errors.ErrInvalidMethod)
	})

	t.Run("unknown method", func(t *testing.T) {
		b := request.NewBuilder(log.Discard())
		assert.ErrorIs(t, b.SetMethod("PUT"), errors.ErrInvalidMethod)
		assert.Equal(t, request.Method(""), b.Method())
	})

	t.Run("bad host", func(t *testing.T) {
		b := request.NewBuilder(log.Discard())
		err := b.SetHost("exa mple.com")
		assert.Equal(t, errors.ErrorTypeValidation, errors.GetErrorType(err))
	})

	t.Run("bad target", func(t *testing.T) {
		b := request.NewBuilder(log.Discard())
		for _, p := range []string{"index.html", "/a b", "/a\r\nX-Injected: 1"} {
			assert.Error(t, b.SetPath(p), p)
		}
		assert.NoError(t, b.SetPath("*"))
	})

	t.Run("bad user agent", func(t *testing.T) {
		b := request.NewBuilder(log.Discard())
		assert.Error(t, b.SetUserAgent(""))
		assert.Error(t, b.SetUserAgent("agent\r\nX: y"))
	})
}

func TestEmptyPathRendersRoot(t *testing.T) {
	b := newBuilder(t, request.MethodGet, "", "example.com")
	b.SetRange(0, 0)
	require.NoError(t, b.SetUserAgent("probe/1.0"))

	got, err := b.Generate()
	require.NoError(t, err)
	assert.Contains(t, got, "GET / HTTP/1.1\r\n")
	assert.Contains(t, got, "User-Agent: probe/1.0\r\n")
}

func TestBuilderIsSingleUse(t *testing.T) {
	b := newBuilder(t, request.MethodGet, "/", "example.com")
	_, err := b.Generate()
	require.NoError(t, err)

	_, err = b.Generate()
	assert.Equal(t, errors.ErrorTypeValidation, errors.GetErrorType(err))
	assert.Error(t, b.SetHost("other.example.com"))
	assert.Error(t, b.SetMethod(request.MethodPost))
}
