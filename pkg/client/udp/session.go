package udp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/fabian4/Soft-Demo/pkg/constants"
)

type Config struct {
	Network    string
	BufferSize int
}

func DefaultConfig() *Config {
	return &Config{
		Network:    constants.DefaultNetwork,
		BufferSize: constants.ReceiveBufferSize,
	}
}

type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

type State int32

const (
	StateCreated State = iota
	StateConnected
	StateSending
	StateReceiving
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnected:
		return "connected"
	case StateSending:
		return "sending"
	case StateReceiving:
		return "receiving"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one connected UDP socket plus its receive buffer. It is
// owned by a single caller; only Close may be called concurrently.
type Session struct {
	config *Config
	conn   *net.UDPConn
	buf    []byte
	stats  *Stats
	state  atomic.Int32

	closeOnce sync.Once
	closeErr  error
}

// Dial opens a UDP socket with ep as its fixed peer. No packet is sent.
func Dial(ctx context.Context, config *Config, ep Endpoint) (*Session, error) {
	if config == nil {
		config = DefaultConfig()
	}
	bufferSize := config.BufferSize
	if bufferSize <= 0 {
		bufferSize = constants.ReceiveBufferSize
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, config.Network, ep.String())
	if err != nil {
		return nil, fmt.Errorf("failed to connect UDP socket to %s: %w", ep, err)
	}
	udpConn, ok := conn.(*net.UDPConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("network %q did not produce a UDP socket", config.Network)
	}

	s := &Session{
		config: config,
		conn:   udpConn,
		buf:    make([]byte, bufferSize),
		stats:  NewStats(),
	}
	s.advance(StateConnected)
	return s, nil
}

// advance moves the state forward; it never goes back.
func (s *Session) advance(next State) {
	for {
		cur := s.state.Load()
		if State(cur) >= next {
			return
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			return
		}
	}
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) Stats() *Stats { return s.stats }

func (s *Session) LocalAddr() net.Addr { return s.conn.LocalAddr() }

func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Send hands the whole payload to the kernel. An empty payload is sent
// as one zero-length datagram.
func (s *Session) Send(payload []byte) error {
	if s.State() == StateClosed {
		return net.ErrClosed
	}
	s.advance(StateSending)

	if err := writeAll(s.conn, payload); err != nil {
		return fmt.Errorf("failed to send to %s: %w", s.conn.RemoteAddr(), err)
	}
	s.stats.RecordSent(len(payload))
	return nil
}

func writeAll(w io.Writer, p []byte) error {
	for {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 && len(p) > 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
		if len(p) == 0 {
			return nil
		}
	}
}

// Chunks reads datagrams from the peer. Each yielded slice aliases the
// session buffer and is only valid until the next iteration. The
// sequence ends after a zero-length datagram, after yielding the first
// error, or when the consumer stops. Cancelling ctx closes the socket so
// a blocked read returns; ctx.Err() is yielded in that case.
func (s *Session) Chunks(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if err := ctx.Err(); err != nil {
			s.Close()
			yield(nil, err)
			return
		}
		s.advance(StateReceiving)

		stop := context.AfterFunc(ctx, func() { s.Close() })
		defer stop()

		for {
			n, err := s.conn.Read(s.buf)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				} else {
					err = fmt.Errorf("failed to receive from %s: %w", s.conn.RemoteAddr(), err)
				}
				s.Close()
				yield(nil, err)
				return
			}
			if n == 0 {
				s.Close()
				return
			}

			s.stats.RecordReceived(n)
			if !yield(s.buf[:n], nil) {
				return
			}
		}
	}
}

// Receive copies every received chunk to w verbatim.
func (s *Session) Receive(ctx context.Context, w io.Writer) error {
	for chunk, err := range s.Chunks(ctx) {
		if err != nil {
			return err
		}
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("failed to write received data: %w", err)
		}
	}
	return nil
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.advance(StateClosed)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// SendThenReceive connects to ep, sends payload and yields what comes
// back. The socket is closed when the sequence ends, whichever way.
func SendThenReceive(ctx context.Context, config *Config, ep Endpoint, payload []byte) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		s, err := Dial(ctx, config, ep)
		if err != nil {
			yield(nil, err)
			return
		}
		defer s.Close()

		if err := s.Send(payload); err != nil {
			yield(nil, err)
			return
		}
		for chunk, err := range s.Chunks(ctx) {
			if !yield(chunk, err) {
				return
			}
		}
	}
}

// IsInterrupted reports whether err came from a cancelled context.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
