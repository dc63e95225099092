// Package echo is a UDP peer that sends every datagram back to its
// sender. It can split echoes into smaller datagrams and end an exchange
// with a zero-length datagram, which is what the client's receive loop
// stops on.
package echo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/fabian4/Soft-Demo/pkg/constants"
	"github.com/fabian4/Soft-Demo/pkg/logging"
)

type Config struct {
	Addr string
	// ChunkSize caps each echoed datagram; 0 echoes whole datagrams.
	ChunkSize int
	// CloseAfter sends a zero-length datagram to a peer after that many
	// echoes to it; 0 never does.
	CloseAfter int
	// TTL sets the unicast TTL (IPv4) or hop limit (IPv6); 0 keeps the
	// system default.
	TTL int
}

func DefaultConfig() *Config {
	return &Config{Addr: constants.DefaultEchoAddr}
}

type Stats struct {
	DatagramsIn  atomic.Int64
	DatagramsOut atomic.Int64
	BytesIn      atomic.Int64
	BytesOut     atomic.Int64
	EndSignals   atomic.Int64
	WriteErrors  atomic.Int64
	StartTime    time.Time

	mu    sync.Mutex
	peers map[string]struct{}
}

func NewStats() *Stats {
	return &Stats{StartTime: time.Now(), peers: make(map[string]struct{})}
}

func (s *Stats) recordPeer(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[addr] = struct{}{}
}

type Snapshot struct {
	DatagramsIn  int64
	DatagramsOut int64
	BytesIn      int64
	BytesOut     int64
	EndSignals   int64
	WriteErrors  int64
	Peers        int
	Uptime       time.Duration
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	peers := len(s.peers)
	s.mu.Unlock()

	return Snapshot{
		DatagramsIn:  s.DatagramsIn.Load(),
		DatagramsOut: s.DatagramsOut.Load(),
		BytesIn:      s.BytesIn.Load(),
		BytesOut:     s.BytesOut.Load(),
		EndSignals:   s.EndSignals.Load(),
		WriteErrors:  s.WriteErrors.Load(),
		Peers:        peers,
		Uptime:       time.Since(s.StartTime),
	}
}

func (s Snapshot) AsMap() map[string]any {
	return map[string]any{
		"datagrams_in":   s.DatagramsIn,
		"datagrams_out":  s.DatagramsOut,
		"bytes_in":       s.BytesIn,
		"bytes_out":      s.BytesOut,
		"end_signals":    s.EndSignals,
		"write_errors":   s.WriteErrors,
		"peers":          s.Peers,
		"uptime_seconds": s.Uptime.Seconds(),
	}
}

type Server struct {
	config *Config
	conn   *net.UDPConn
	stats  *Stats

	// echoes per peer since its last end signal
	counts map[string]int
}

func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{
		config: config,
		stats:  NewStats(),
		counts: make(map[string]int),
	}
}

func (s *Server) Listen() error {
	addr, err := net.ResolveUDPAddr("udp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to resolve address: %w", err)
	}

	s.conn, err = net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	if s.config.TTL > 0 {
		if err := s.setTTL(s.config.TTL); err != nil {
			s.conn.Close()
			return err
		}
	}

	logging.LogInfo("Echoing UDP datagrams on %s", s.conn.LocalAddr())
	return nil
}

func (s *Server) setTTL(ttl int) error {
	local := s.conn.LocalAddr().(*net.UDPAddr)
	if local.IP.To4() != nil {
		if err := ipv4.NewPacketConn(s.conn).SetTTL(ttl); err != nil {
			return fmt.Errorf("failed to set TTL %d: %w", ttl, err)
		}
		return nil
	}
	if err := ipv6.NewPacketConn(s.conn).SetHopLimit(ttl); err != nil {
		return fmt.Errorf("failed to set hop limit %d: %w", ttl, err)
	}
	return nil
}

func (s *Server) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *Server) GetStats() *Stats { return s.stats }

// Serve echoes until ctx is cancelled or the socket is closed.
func (s *Server) Serve(ctx context.Context) error {
	if s.conn == nil {
		return errors.New("echo server is not listening")
	}
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	buffer := make([]byte, constants.MaxDatagramSize)
	for {
		n, peer, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.LogError("Error reading UDP: %v", err)
			continue
		}

		s.stats.DatagramsIn.Add(1)
		s.stats.BytesIn.Add(int64(n))
		s.stats.recordPeer(peer.String())

		s.echo(buffer[:n], peer)
	}
}

func (s *Server) echo(data []byte, peer *net.UDPAddr) {
	for _, chunk := range split(data, s.config.ChunkSize) {
		if !s.write(chunk, peer) {
			return
		}
	}

	if s.config.CloseAfter <= 0 {
		return
	}
	key := peer.String()
	s.counts[key]++
	if s.counts[key] >= s.config.CloseAfter {
		delete(s.counts, key)
		if s.write(nil, peer) {
			s.stats.EndSignals.Add(1)
		}
	}
}

func (s *Server) write(p []byte, peer *net.UDPAddr) bool {
	n, err := s.conn.WriteToUDP(p, peer)
	if err != nil {
		s.stats.WriteErrors.Add(1)
		logging.LogError("Write to %s failed: %v", peer, err)
		return false
	}
	s.stats.DatagramsOut.Add(1)
	s.stats.BytesOut.Add(int64(n))
	return true
}

// split always returns at least one chunk so that a zero-length datagram
// is echoed as a zero-length datagram.
func split(data []byte, size int) [][]byte {
	if size <= 0 || len(data) <= size {
		return [][]byte{data}
	}
	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for len(data) > size {
		chunks = append(chunks, data[:size])
		data = data[size:]
	}
	return append(chunks, data)
}

func (s *Server) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func LogSummary(stats *Stats) {
	snap := stats.Snapshot()
	logging.LogMetrics("Uptime: %v", snap.Uptime.Round(time.Second))
	logging.LogMetrics("Datagrams: %d in, %d out (%d write errors)", snap.DatagramsIn, snap.DatagramsOut, snap.WriteErrors)
	logging.LogMetrics("Bytes: %d in, %d out", snap.BytesIn, snap.BytesOut)
	logging.LogMetrics("Peers: %d, end signals sent: %d", snap.Peers, snap.EndSignals)
}
