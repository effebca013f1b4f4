// Package timing measures the phases of a single request attempt.
package timing

import (
	"fmt"
	"time"
)

// Metrics captures the phase durations of one attempt. Phases that did not
// happen (for example DNS when the host is an IP literal) stay zero.
type Metrics struct {
	// DNSLookup is the time spent resolving the host
	DNSLookup time.Duration `json:"dns_lookup"`

	// TCPConnect is the time spent in the TCP handshake
	TCPConnect time.Duration `json:"tcp_connect"`

	// TTFB is the time between the request being flushed and the first response byte
	TTFB time.Duration `json:"ttfb"`

	// TotalTime is the total end-to-end time of the attempt
	TotalTime time.Duration `json:"total_time"`
}

// Timer records phase boundaries. It is not safe for concurrent use; an
// attempt is strictly sequential.
type Timer struct {
	start     time.Time
	dnsStart  time.Time
	dnsEnd    time.Time
	tcpStart  time.Time
	tcpEnd    time.Time
	ttfbStart time.Time
	ttfbEnd   time.Time
}

// NewTimer creates a new timing measurement session.
func NewTimer() *Timer {
	return &Timer{
		start: time.Now(),
	}
}

// StartDNS marks the beginning of address resolution.
func (t *Timer) StartDNS() {
	if t == nil {
		return
	}
	t.dnsStart = time.Now()
}

// EndDNS marks the end of address resolution.
func (t *Timer) EndDNS() {
	if t == nil {
		return
	}
	t.dnsEnd = time.Now()
}

// StartTCP marks the beginning of the TCP connect.
func (t *Timer) StartTCP() {
	if t == nil {
		return
	}
	t.tcpStart = time.Now()
}

// EndTCP marks the end of the TCP connect.
func (t *Timer) EndTCP() {
	if t == nil {
		return
	}
	t.tcpEnd = time.Now()
}

// StartTTFB marks when the request has been sent.
func (t *Timer) StartTTFB() {
	if t == nil {
		return
	}
	t.ttfbStart = time.Now()
}

// EndTTFB marks the first response byte. Only the first call counts.
func (t *Timer) EndTTFB() {
	if t == nil || !t.ttfbEnd.IsZero() {
		return
	}
	t.ttfbEnd = time.Now()
}

// GetMetrics returns the calculated timing metrics.
func (t *Timer) GetMetrics() Metrics {
	if t == nil {
		return Metrics{}
	}
	m := Metrics{TotalTime: time.Since(t.start)}
	m.DNSLookup = span(t.dnsStart, t.dnsEnd)
	m.TCPConnect = span(t.tcpStart, t.tcpEnd)
	m.TTFB = span(t.ttfbStart, t.ttfbEnd)
	return m
}

func span(start, end time.Time) time.Duration {
	if start.IsZero() || end.IsZero() {
		return 0
	}
	return end.Sub(start)
}

// GetConnectionTime returns DNS plus TCP connect time.
func (m Metrics) GetConnectionTime() time.Duration {
	return m.DNSLookup + m.TCPConnect
}

// String provides a human-readable representation of the metrics.
func (m Metrics) String() string {
	return fmt.Sprintf("DNSLookup: %v, TCPConnect: %v, TTFB: %v, TotalTime: %v",
		m.DNSLookup, m.TCPConnect, m.TTFB, m.TotalTime)
}
