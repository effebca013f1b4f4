package timing

import (
	"strings"
	"testing"
	"time"
)

func TestTimerPhases(t *testing.T) {
	timer := NewTimer()

	timer.StartDNS()
	time.Sleep(5 * time.Millisecond)
	timer.EndDNS()

	timer.StartTCP()
	time.Sleep(5 * time.Millisecond)
	timer.EndTCP()

	timer.StartTTFB()
	time.Sleep(5 * time.Millisecond)
	timer.EndTTFB()
	first := timer.GetMetrics().TTFB
	time.Sleep(5 * time.Millisecond)
	timer.EndTTFB()

	m := timer.GetMetrics()
	if m.DNSLookup < 5*time.Millisecond {
		t.Errorf("DNSLookup = %v, want >= 5ms", m.DNSLookup)
	}
	if m.TCPConnect < 5*time.Millisecond {
		t.Errorf("TCPConnect = %v, want >= 5ms", m.TCPConnect)
	}
	if m.TTFB != first {
		t.Errorf("TTFB changed after second EndTTFB: %v != %v", m.TTFB, first)
	}
	if m.TotalTime < m.DNSLookup+m.TCPConnect+m.TTFB {
		t.Errorf("TotalTime %v shorter than its phases", m.TotalTime)
	}
	if got := m.GetConnectionTime(); got != m.DNSLookup+m.TCPConnect {
		t.Errorf("GetConnectionTime = %v", got)
	}
	if !strings.HasPrefix(m.String(), "DNSLookup: ") {
		t.Errorf("String = %q", m.String())
	}
}

func TestTimerSkippedPhases(t *testing.T) {
	timer := NewTimer()
	timer.StartTCP()
	timer.EndTCP()

	m := timer.GetMetrics()
	if m.DNSLookup != 0 {
		t.Errorf("DNSLookup = %v, want 0 when resolution was skipped", m.DNSLookup)
	}
	if m.TTFB != 0 {
		t.Errorf("TTFB = %v, want 0 without a response", m.TTFB)
	}
}

func TestNilTimer(t *testing.T) {
	var timer *Timer
	timer.StartDNS()
	timer.EndDNS()
	timer.StartTTFB()
	timer.EndTTFB()
	if m := timer.GetMetrics(); m != (Metrics{}) {
		t.Errorf("nil timer metrics = %+v", m)
	}
}
