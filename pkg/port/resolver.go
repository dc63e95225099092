// Package port turns the client's port argument into a port number. The
// argument is either a base-10 integer or a service name looked up in
// the system service database (/etc/services) for UDP.
package port

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
)

const MaxPort = 65535

var (
	ErrNameResolution = errors.New("service name resolution failed")
	ErrPortRange      = errors.New("port out of range")
)

// NameResolutionError reports a token that is neither an integer nor a
// service registered for the network.
type NameResolutionError struct {
	Service string
	Network string
	Err     error
}

func (e *NameResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unknown %s service %q", e.Network, e.Service)
	}
	return fmt.Sprintf("unknown %s service %q: %v", e.Network, e.Service, e.Err)
}

func (e *NameResolutionError) Unwrap() error { return e.Err }

func (e *NameResolutionError) Is(target error) bool { return target == ErrNameResolution }

type RangeError struct {
	Token string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("port %s not in [0, %d]", e.Token, MaxPort)
}

func (e *RangeError) Is(target error) bool { return target == ErrPortRange }

// Token is the parsed form of a port argument: a number, or a service
// name that still needs a lookup.
type Token struct {
	raw      string
	port     int
	numeric  bool
	overflow bool
}

func Parse(token string) Token {
	n, err := strconv.ParseInt(token, 10, 64)
	switch {
	case err == nil:
		if n < 0 || n > MaxPort {
			return Token{raw: token, numeric: true, overflow: true}
		}
		return Token{raw: token, port: int(n), numeric: true}
	case errors.Is(err, strconv.ErrRange):
		return Token{raw: token, numeric: true, overflow: true}
	default:
		return Token{raw: token}
	}
}

// Numeric returns the port and true when the token was an in-range integer.
func (t Token) Numeric() (int, bool) {
	return t.port, t.numeric && !t.overflow
}

// NeedsLookup reports whether the token must be resolved as a service name.
func (t Token) NeedsLookup() bool { return !t.numeric }

func (t Token) String() string { return t.raw }

// Lookuper is satisfied by *net.Resolver.
type Lookuper interface {
	LookupPort(ctx context.Context, network, service string) (int, error)
}

type Resolver struct {
	Network string
	Lookup  Lookuper
}

func NewResolver(network string) *Resolver {
	return &Resolver{Network: network, Lookup: net.DefaultResolver}
}

func (r *Resolver) Resolve(ctx context.Context, token string) (int, error) {
	t := Parse(token)
	if p, ok := t.Numeric(); ok {
		return p, nil
	}
	if !t.NeedsLookup() {
		return 0, &RangeError{Token: token}
	}

	network := r.Network
	if network == "" {
		network = "udp"
	}
	// The Go resolver maps an empty service to port 0; an empty name is
	// never a registered service.
	if token == "" {
		return 0, &NameResolutionError{Service: token, Network: network}
	}

	p, err := r.Lookup.LookupPort(ctx, network, token)
	if err != nil {
		return 0, &NameResolutionError{Service: token, Network: network, Err: err}
	}
	return p, nil
}

// Resolve resolves token against the default resolver.
func Resolve(ctx context.Context, network, token string) (int, error) {
	return NewResolver(network).Resolve(ctx, token)
}
