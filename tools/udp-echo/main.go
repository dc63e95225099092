// A cooperating peer for the UDP client.
//
// Testing:
//   Terminal 1: go run ./tools/udp-echo -close-after 1
//   Terminal 2: go run ./cmd 127.0.0.1 5007
//   Terminal 3: curl 'localhost:8081/stats?format=prometheus'

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fabian4/Soft-Demo/pkg/constants"
	"github.com/fabian4/Soft-Demo/pkg/echo"
	"github.com/fabian4/Soft-Demo/pkg/logging"
	"github.com/fabian4/Soft-Demo/pkg/server"
)

func main() {
	var (
		addr       = flag.String("addr", constants.DefaultEchoAddr, "UDP address to echo on")
		chunk      = flag.Int("chunk", 0, "Split echoes into datagrams of at most this many bytes (0 = whole)")
		closeAfter = flag.Int("close-after", 0, "Send a zero-length datagram to a peer after this many echoes (0 = never)")
		ttl        = flag.Int("ttl", 0, "Unicast TTL / hop limit for echoed datagrams (0 = system default)")
		httpAddr   = flag.String("http", constants.DefaultStatusAddr, "Status HTTP address (empty disables)")
	)
	flag.Parse()

	logging.LogConfig("addr=%s chunk=%d close-after=%d ttl=%d http=%q", *addr, *chunk, *closeAfter, *ttl, *httpAddr)

	echoServer := echo.NewServer(&echo.Config{
		Addr:       *addr,
		ChunkSize:  *chunk,
		CloseAfter: *closeAfter,
		TTL:        *ttl,
	})
	if err := echoServer.Listen(); err != nil {
		logging.LogError("%v", err)
		os.Exit(constants.ExitFailure)
	}
	defer echoServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 2)
	go func() {
		errChan <- echoServer.Serve(ctx)
	}()

	var httpServer *server.HTTPServer
	if *httpAddr != "" {
		httpServer = server.NewHTTPServer(*httpAddr, echoServer.GetStats())
		go func() {
			if err := httpServer.Start(); err != nil {
				errChan <- err
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := constants.ExitOK
	select {
	case sig := <-sigChan:
		logging.LogInfo("Received signal %v, shutting down...", sig)
	case err := <-errChan:
		if err != nil {
			logging.LogError("Server error: %v", err)
			exitCode = constants.ExitFailure
		}
	}

	cancel()
	if httpServer != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.LogWarning("Status server shutdown: %v", err)
		}
		stop()
	}

	echo.LogSummary(echoServer.GetStats())
	logging.LogSuccess("Shutdown complete")
	if exitCode != constants.ExitOK {
		os.Exit(exitCode)
	}
}
