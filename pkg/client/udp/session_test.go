package udp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"runtime"
	"testing"
	"time"

	"golang.org/x/net/nettest"

	"github.com/fabian4/Soft-Demo/pkg/echo"
)

func startEcho(t *testing.T, config *echo.Config) Endpoint {
	t.Helper()
	config.Addr = "127.0.0.1:0"

	s := echo.NewServer(config)
	if err := s.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go s.Serve(ctx)
	t.Cleanup(cancel)

	return endpointOf(t, s.Addr())
}

func endpointOf(t *testing.T, addr net.Addr) Endpoint {
	t.Helper()
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		t.Fatalf("not a UDP address: %v", addr)
	}
	return Endpoint{Host: udpAddr.IP.String(), Port: udpAddr.Port}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSendThenReceiveReassemblesPayload(t *testing.T) {
	ep := startEcho(t, &echo.Config{ChunkSize: 1000, CloseAfter: 1})

	payload := make([]byte, 10000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	var got []byte
	chunks := 0
	for chunk, err := range SendThenReceive(testContext(t), nil, ep, payload) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chunk) > 2048 {
			t.Fatalf("chunk of %d bytes exceeds the receive buffer", len(chunk))
		}
		got = append(got, chunk...)
		chunks++
	}
	t.Logf("Received %d bytes in %d chunks", len(got), chunks)

	if chunks != 10 {
		t.Errorf("expected 10 chunks, got %d", chunks)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("concatenated chunks differ from payload")
	}
}

func TestReceiveStopsOnZeroLengthDatagram(t *testing.T) {
	ep := startEcho(t, &echo.Config{CloseAfter: 1})
	ctx := testContext(t)

	s, err := Dial(ctx, nil, ep)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer s.Close()

	if s.State() != StateConnected {
		t.Fatalf("expected connected, got %s", s.State())
	}
	if err := s.Send([]byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}

	var out bytes.Buffer
	if err := s.Receive(ctx, &out); err != nil {
		t.Fatalf("receive: %v", err)
	}

	if out.String() != "hello" {
		t.Errorf("expected hello, got %q", out.String())
	}
	if s.State() != StateClosed {
		t.Errorf("expected closed after end signal, got %s", s.State())
	}

	stats := s.Stats()
	t.Logf("Stats: sent=%d/%d received=%d/%d", stats.DatagramsSent, stats.BytesSent, stats.DatagramsReceived, stats.BytesReceived)
	if stats.DatagramsSent != 1 || stats.BytesSent != 5 {
		t.Errorf("unexpected send stats: %d datagrams, %d bytes", stats.DatagramsSent, stats.BytesSent)
	}
	if stats.GetDatagramsReceived() != 1 || stats.GetBytesReceived() != 5 {
		t.Errorf("unexpected receive stats: %d datagrams, %d bytes", stats.GetDatagramsReceived(), stats.GetBytesReceived())
	}
}

func TestSendEmptyPayload(t *testing.T) {
	// the echo of a zero-length datagram is itself the end signal
	ep := startEcho(t, &echo.Config{})
	ctx := testContext(t)

	s, err := Dial(ctx, nil, ep)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer s.Close()

	if err := s.Send(nil); err != nil {
		t.Fatalf("send: %v", err)
	}

	var out bytes.Buffer
	if err := s.Receive(ctx, &out); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
	if s.Stats().DatagramsSent != 1 {
		t.Errorf("expected one zero-length datagram sent, got %d", s.Stats().DatagramsSent)
	}
}

func TestCancelDuringBlockingReceive(t *testing.T) {
	peer, err := nettest.NewLocalPacketListener("udp")
	if err != nil {
		t.Fatalf("listener: %v", err)
	}
	defer peer.Close()

	s, err := Dial(context.Background(), nil, endpointOf(t, peer.LocalAddr()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer s.Close()

	if err := s.Send([]byte("anyone there?")); err != nil {
		t.Fatalf("send: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Receive(ctx, io.Discard) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		t.Logf("Receive returned: %v", err)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if !IsInterrupted(err) {
			t.Errorf("IsInterrupted(%v) = false", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not return after cancel")
	}

	if s.State() != StateClosed {
		t.Errorf("expected closed, got %s", s.State())
	}
	if err := s.Send([]byte("late")); err == nil {
		t.Error("expected send on closed session to fail")
	}
}

func TestChunksOnCancelledContext(t *testing.T) {
	peer, err := nettest.NewLocalPacketListener("udp")
	if err != nil {
		t.Fatalf("listener: %v", err)
	}
	defer peer.Close()

	s, err := Dial(context.Background(), nil, endpointOf(t, peer.LocalAddr()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := 0
	for _, err := range s.Chunks(ctx) {
		n++
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	}
	if n != 1 {
		t.Fatalf("expected exactly one yield, got %d", n)
	}
	if s.State() != StateClosed {
		t.Errorf("expected closed, got %s", s.State())
	}
}

func TestTransportErrorFromClosedPort(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("relies on ICMP port unreachable being reported to connected sockets")
	}

	peer, err := nettest.NewLocalPacketListener("udp")
	if err != nil {
		t.Fatalf("listener: %v", err)
	}
	ep := endpointOf(t, peer.LocalAddr())
	peer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var last error
	for _, err := range SendThenReceive(ctx, nil, ep, []byte("hello?")) {
		last = err
	}
	t.Logf("Last error: %v", last)

	if last == nil {
		t.Fatal("expected a transport error")
	}
	if IsInterrupted(last) {
		t.Skip("no port unreachable observed before the deadline")
	}
}

func TestConsumerCanStopEarly(t *testing.T) {
	ep := startEcho(t, &echo.Config{ChunkSize: 2})

	chunks := 0
	for chunk, err := range SendThenReceive(testContext(t), nil, ep, []byte("abcdef")) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(chunk) != "ab" {
			t.Fatalf("expected first chunk ab, got %q", chunk)
		}
		chunks++
		break
	}
	if chunks != 1 {
		t.Fatalf("expected 1 chunk, got %d", chunks)
	}
}

type stingyWriter struct {
	max    int
	writes int
	got    []byte
}

func (w *stingyWriter) Write(p []byte) (int, error) {
	w.writes++
	n := min(len(p), w.max)
	w.got = append(w.got, p[:n]...)
	return n, nil
}

func TestWriteAll(t *testing.T) {
	w := &stingyWriter{max: 3}
	if err := writeAll(w, []byte("abcdefgh")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(w.got) != "abcdefgh" || w.writes != 3 {
		t.Errorf("got %q in %d writes", w.got, w.writes)
	}

	empty := &stingyWriter{max: 3}
	if err := writeAll(empty, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty.writes != 1 {
		t.Errorf("expected one write for empty payload, got %d", empty.writes)
	}

	if err := writeAll(&stingyWriter{max: 0}, []byte("x")); !errors.Is(err, io.ErrShortWrite) {
		t.Errorf("expected io.ErrShortWrite, got %v", err)
	}
}

func TestStateOnlyMovesForward(t *testing.T) {
	var s Session
	s.advance(StateReceiving)
	s.advance(StateConnected)

	if s.State() != StateReceiving {
		t.Fatalf("state went back to %s", s.State())
	}
	if StateClosed.String() != "closed" || State(42).String() != "unknown" {
		t.Error("unexpected state names")
	}
}

func TestEndpointString(t *testing.T) {
	tests := []struct {
		ep   Endpoint
		want string
	}{
		{Endpoint{Host: "127.0.0.1", Port: 7}, "127.0.0.1:7"},
		{Endpoint{Host: "::1", Port: 53}, "[::1]:53"},
		{Endpoint{Host: "example.com", Port: 0}, "example.com:0"},
	}
	for _, tt := range tests {
		if got := tt.ep.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.ep, got, tt.want)
		}
	}
}
