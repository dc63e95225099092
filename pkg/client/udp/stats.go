package udp

import (
	"sync"
	"time"

	"github.com/fabian4/Soft-Demo/pkg/logging"
)

type Stats struct {
	DatagramsSent     int
	DatagramsReceived int
	BytesSent         int64
	BytesReceived     int64
	StartTime         time.Time
	mu                sync.Mutex
}

func NewStats() *Stats {
	return &Stats{StartTime: time.Now()}
}

func (s *Stats) RecordSent(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DatagramsSent++
	s.BytesSent += int64(n)
}

func (s *Stats) RecordReceived(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DatagramsReceived++
	s.BytesReceived += int64(n)
}

func (s *Stats) GetBytesReceived() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.BytesReceived
}

func (s *Stats) GetDatagramsReceived() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.DatagramsReceived
}

func LogSummary(stats *Stats) {
	stats.mu.Lock()
	defer stats.mu.Unlock()

	logging.LogMetrics("Sent %d datagram(s), %d bytes; received %d datagram(s), %d bytes in %v",
		stats.DatagramsSent, stats.BytesSent,
		stats.DatagramsReceived, stats.BytesReceived,
		time.Since(stats.StartTime).Round(time.Millisecond))
}
