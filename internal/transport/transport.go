// Package transport describes the message-queue socket surface the publisher drives,
// independent of the cgo binding that implements it.
package transport

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Pattern is the messaging pattern of an outbound socket
type Pattern int

const (
	// PatternUnknown marks a socktype that did not match any supported name
	PatternUnknown Pattern = iota
	// PatternPub fans messages out to every subscriber
	PatternPub
	// PatternPush distributes messages round-robin to pullers
	PatternPush
	// PatternDealer is an asynchronous request socket
	PatternDealer
)

// ParsePattern maps the socktype directive to a Pattern. Matching is case-sensitive.
func ParsePattern(name string) Pattern {
	switch name {
	case "PUB":
		return PatternPub
	case "PUSH":
		return PatternPush
	case "DEALER":
		return PatternDealer
	default:
		return PatternUnknown
	}
}

// String returns the directive spelling of the pattern
func (p Pattern) String() string {
	switch p {
	case PatternPub:
		return "PUB"
	case PatternPush:
		return "PUSH"
	case PatternDealer:
		return "DEALER"
	default:
		return "UNKNOWN"
	}
}

// Listener reports whether sockets of this pattern bind (true) or connect (false)
func (p Pattern) Listener() bool {
	return p == PatternPub
}

// Socket is a single outbound message-queue socket
type Socket interface {
	// SetSendTimeout sets the send timeout in milliseconds; -1 blocks forever
	SetSendTimeout(ms int) error
	SetZapDomain(domain string) error
	SetCurveServer(enabled bool) error
	SetCurveServerKey(key string) error
	SetCurvePublicKey(key string) error
	SetCurveSecretKey(key string) error
	Bind(endpoint string) error
	Connect(endpoint string) error
	// Send transmits frames as the parts of one message
	Send(frames ...string) error
	Close() error
}

// Factory creates sockets for a pattern
type Factory interface {
	NewSocket(p Pattern) (Socket, error)
}

// Endpoint is one entry of an endpoints directive with its resolved role
type Endpoint struct {
	Address string
	Listen  bool
}

// ParseEndpoints splits a comma-separated endpoint list. A leading '@' forces bind and
// a leading '>' forces connect; unprefixed entries take the default role.
func ParseEndpoints(spec string, listenDefault bool) ([]Endpoint, error) {
	parts := strings.Split(spec, ",")
	endpoints := make([]Endpoint, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ep := Endpoint{Address: part, Listen: listenDefault}
		switch part[0] {
		case '@':
			ep.Address, ep.Listen = part[1:], true
		case '>':
			ep.Address, ep.Listen = part[1:], false
		}
		if ep.Address == "" {
			return nil, fmt.Errorf("empty endpoint address in %q", spec)
		}
		endpoints = append(endpoints, ep)
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints in %q", spec)
	}
	return endpoints, nil
}

// Attach binds or connects s to every endpoint in spec. It stops at the first failure.
func Attach(s Socket, spec string, listener bool) error {
	endpoints, err := ParseEndpoints(spec, listener)
	if err != nil {
		return err
	}
	for _, ep := range endpoints {
		if ep.Listen {
			err = s.Bind(ep.Address)
		} else {
			err = s.Connect(ep.Address)
		}
		if err != nil {
			verb := "connect"
			if ep.Listen {
				verb = "bind"
			}
			return fmt.Errorf("%s %s: %w", verb, ep.Address, err)
		}
	}
	return nil
}

// SignalHandlerEnv is read by czmq-based peers in the same process; setting it to
// false keeps the transport from installing its own SIGINT/SIGTERM handlers.
const SignalHandlerEnv = "ZSYS_SIGHANDLER"

var signalOnce sync.Once

// DisableSignalHandling turns off the transport's process-wide signal handler.
// Only the first call has an effect.
func DisableSignalHandling() {
	signalOnce.Do(func() {
		_ = os.Setenv(SignalHandlerEnv, "false")
	})
}
