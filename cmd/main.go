package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fabian4/Soft-Demo/pkg/client/udp"
	"github.com/fabian4/Soft-Demo/pkg/config"
	"github.com/fabian4/Soft-Demo/pkg/constants"
	"github.com/fabian4/Soft-Demo/pkg/logging"
	"github.com/fabian4/Soft-Demo/pkg/port"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.FromArgs(args)
	if err != nil {
		if errors.Is(err, config.ErrUsage) {
			fmt.Fprintf(stderr, "Usage:  %s <host> <port-or-service-name>\n", os.Args[0])
		}
		logging.LogError("%v", err)
		return constants.ExitFailure
	}

	p, err := port.Resolve(ctx, cfg.Network, cfg.PortToken)
	if err != nil {
		return exitCode(err, "Failed to resolve port")
	}
	ep := udp.Endpoint{Host: cfg.Host, Port: p}

	sess, err := udp.Dial(ctx, &udp.Config{Network: cfg.Network, BufferSize: cfg.BufferSize}, ep)
	if err != nil {
		return exitCode(err, "Dial failed")
	}
	defer sess.Close()

	fmt.Fprintln(stderr, constants.PromptTransmit)
	line, err := readLine(ctx, stdin)
	if err != nil {
		return exitCode(err, "Failed to read input")
	}

	if err := sess.Send([]byte(line)); err != nil {
		return exitCode(err, "Send failed")
	}

	fmt.Fprintln(stderr, constants.PromptReplies)
	err = sess.Receive(ctx, stdout)
	udp.LogSummary(sess.Stats())
	if err != nil {
		return exitCode(err, "Receive failed")
	}
	return constants.ExitOK
}

func exitCode(err error, msg string) int {
	if udp.IsInterrupted(err) {
		logging.LogWarning("Interrupted")
		return constants.ExitInterrupted
	}
	logging.LogError("%s: %v", msg, err)
	return constants.ExitFailure
}

type lineResult struct {
	line string
	err  error
}

// readLine returns one line without its line terminator. EOF before a
// newline is not an error. The read runs on its own goroutine so an
// interrupt does not wait on the terminal.
func readLine(ctx context.Context, r io.Reader) (string, error) {
	ch := make(chan lineResult, 1)
	go func() {
		line, err := bufio.NewReader(r).ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = nil
		}
		ch <- lineResult{line: trimNewline(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}

func trimNewline(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
