// Package transport provides the blocking TCP socket the HTTP client runs on.
package transport

import (
	"context"
	stdErrors "errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/WhileEndless/go-sahttp/pkg/constants"
	"github.com/WhileEndless/go-sahttp/pkg/errors"
	"github.com/WhileEndless/go-sahttp/pkg/log"
	"github.com/WhileEndless/go-sahttp/pkg/timing"
)

// Config holds socket configuration. Zero durations fall back to the package defaults.
type Config struct {
	ConnTimeout    time.Duration
	DNSTimeout     time.Duration
	SendTimeout    time.Duration
	ReceiveTimeout time.Duration
	Resolver       *net.Resolver
	Logger         *slog.Logger
	Timer          *timing.Timer
}

func (c Config) withDefaults() Config {
	if c.ConnTimeout <= 0 {
		c.ConnTimeout = constants.DefaultConnTimeout
	}
	if c.DNSTimeout <= 0 {
		c.DNSTimeout = constants.DefaultDNSTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = constants.DefaultSendTimeout
	}
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = constants.DefaultReceiveTimeout
	}
	if c.Resolver == nil {
		c.Resolver = net.DefaultResolver
	}
	c.Logger = log.OrDefault(c.Logger)
	return c
}

// Socket exclusively owns one OS connection or listener. A Socket must not be
// copied or shared between goroutines; pass the pointer to hand it over.
type Socket struct {
	cfg    Config
	logger *slog.Logger

	conn net.Conn
	ln   net.Listener

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

// New creates an unopened Socket.
func New(cfg Config) *Socket {
	cfg = cfg.withDefaults()
	return &Socket{cfg: cfg, logger: cfg.Logger}
}

// Open resolves host:port and either connects to it or, in server mode, binds
// and listens on it. Every failure kind is logged distinctly; the returned
// error carries the kind as its ErrorType.
func (s *Socket) Open(ctx context.Context, host string, port int, serverMode bool) error {
	if s.closed.Load() {
		return errors.NewClosedError("open")
	}
	if s.conn != nil || s.ln != nil {
		return errors.NewValidationError("socket is already open")
	}
	if port < 0 || port > 65535 || (!serverMode && port == 0) {
		return errors.NewValidationError("port must be between 1 and 65535")
	}

	addr, err := s.resolve(ctx, host, port, serverMode)
	if err != nil {
		s.logger.Warn("dns resolve failure", "host", host, "error", err)
		return err
	}

	if serverMode {
		return s.listen(ctx, host, port, addr)
	}
	return s.connect(ctx, host, port, addr)
}

func (s *Socket) resolve(ctx context.Context, host string, port int, serverMode bool) (string, error) {
	portStr := strconv.Itoa(port)
	if host == "" {
		if !serverMode {
			return "", errors.NewDNSError(host, errors.NewValidationError("host cannot be empty"))
		}
		return net.JoinHostPort("", portStr), nil
	}
	if ip := net.ParseIP(host); ip != nil {
		return net.JoinHostPort(ip.String(), portStr), nil
	}

	s.cfg.Timer.StartDNS()
	defer s.cfg.Timer.EndDNS()

	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.DNSTimeout)
	defer cancel()

	addrs, err := s.cfg.Resolver.LookupIPAddr(lookupCtx, host)
	if err != nil {
		return "", errors.NewDNSError(host, err)
	}
	if len(addrs) == 0 {
		return "", errors.NewDNSError(host, errors.NewValidationError("no IP addresses found"))
	}
	return net.JoinHostPort(addrs[0].IP.String(), portStr), nil
}

func (s *Socket) connect(ctx context.Context, host string, port int, addr string) error {
	s.cfg.Timer.StartTCP()
	dialer := &net.Dialer{Timeout: s.cfg.ConnTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	s.cfg.Timer.EndTCP()
	if err != nil {
		if isSyscall(err, "socket") {
			s.logger.Warn("socket create failure", "addr", addr, "error", err)
			return errors.NewSocketError(host, port, err)
		}
		s.logger.Warn("connect failure", "addr", addr, "error", err)
		return errors.NewConnectionError(host, port, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	s.conn = conn
	s.logger.Debug("connected", "addr", addr)
	return nil
}

func (s *Socket) listen(ctx context.Context, host string, port int, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		switch {
		case isSyscall(err, "socket"):
			s.logger.Warn("socket create failure", "addr", addr, "error", err)
			return errors.NewSocketError(host, port, err)
		case stdErrors.Is(err, syscall.EADDRINUSE), stdErrors.Is(err, syscall.EADDRNOTAVAIL),
			stdErrors.Is(err, syscall.EACCES), isSyscall(err, "bind"):
			s.logger.Warn("bind server failure", "addr", addr, "error", err)
			return errors.NewBindError(host, port, err)
		default:
			s.logger.Warn("listen server failure", "addr", addr, "error", err)
			return errors.NewListenError(host, port, err)
		}
	}
	s.ln = ln
	s.logger.Debug("listening", "addr", ln.Addr().String())
	return nil
}

func isSyscall(err error, name string) bool {
	var sysErr *os.SyscallError
	return stdErrors.As(err, &sysErr) && sysErr.Syscall == name
}

// Accept waits for a peer on a server-mode socket and returns a
// connection-mode Socket owning it.
func (s *Socket) Accept() (*Socket, error) {
	if s.closed.Load() {
		return nil, errors.NewClosedError("accept")
	}
	if s.ln == nil {
		return nil, errors.NewValidationError("accept requires a listening socket")
	}
	conn, err := s.ln.Accept()
	if err != nil {
		return nil, errors.NewIOError("accept", err)
	}
	peer := New(s.cfg)
	peer.conn = conn
	return peer, nil
}

// Send writes the whole buffer, looping over partial writes, under the send timeout.
func (s *Socket) Send(data []byte) error {
	if s.closed.Load() || s.conn == nil {
		return errors.NewClosedError("send")
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.SendTimeout)); err != nil {
		return errors.NewIOError("setting write deadline", err)
	}
	defer s.conn.SetWriteDeadline(time.Time{})

	written := 0
	for written < len(data) {
		n, err := s.conn.Write(data[written:])
		written += n
		if err != nil {
			if errors.IsTimeoutError(err) {
				return errors.NewTimeoutError("send", s.cfg.SendTimeout, err)
			}
			return errors.NewIOError("writing request", err)
		}
	}
	return nil
}

// Receive issues one read of at most maxLen bytes under the receive timeout.
// It returns io.EOF once the peer has closed the stream, a timeout error when
// nothing arrived in time, and an I/O error for anything else.
func (s *Socket) Receive(maxLen int) ([]byte, error) {
	if s.closed.Load() || s.conn == nil {
		return nil, errors.NewClosedError("receive")
	}
	if maxLen <= 0 {
		maxLen = constants.DefaultReadSize
	}
	if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReceiveTimeout)); err != nil {
		return nil, errors.NewIOError("setting read deadline", err)
	}

	buf := make([]byte, maxLen)
	n, err := s.conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	switch {
	case err == nil:
		return buf[:0], nil
	case stdErrors.Is(err, io.EOF):
		s.logger.Debug("recv over")
		return nil, io.EOF
	case errors.IsTimeoutError(err):
		return nil, errors.NewTimeoutError("receive", s.cfg.ReceiveTimeout, err)
	default:
		return nil, errors.NewIOError("reading response", err)
	}
}

// Addr returns the listening address in server mode, or the local address of
// the connection.
func (s *Socket) Addr() net.Addr {
	switch {
	case s.ln != nil:
		return s.ln.Addr()
	case s.conn != nil:
		return s.conn.LocalAddr()
	}
	return nil
}

// RemoteAddr returns the peer address of a connection-mode socket.
func (s *Socket) RemoteAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

// IsOpen reports whether the socket holds a live descriptor.
func (s *Socket) IsOpen() bool {
	return !s.closed.Load() && (s.conn != nil || s.ln != nil)
}

// Close releases the descriptor. It is idempotent: only the first call closes,
// later calls return the first call's result.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.conn != nil {
			if err := s.conn.Close(); err != nil {
				s.closeErr = errors.NewIOError("closing connection", err)
			}
		}
		if s.ln != nil {
			if err := s.ln.Close(); err != nil {
				s.closeErr = errors.NewIOError("closing listener", err)
			}
		}
	})
	return s.closeErr
}
