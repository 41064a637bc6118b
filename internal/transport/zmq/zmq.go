// Package zmq binds the transport surface to libzmq through github.com/pebbe/zmq4.
package zmq

import (
	"fmt"
	"time"

	zmq4 "github.com/pebbe/zmq4"

	"github.com/ibs-source/syslog-forwarder/internal/transport"
)

// Factory creates libzmq sockets
type Factory struct{}

// NewFactory returns a socket factory on the default libzmq context
func NewFactory() *Factory {
	return &Factory{}
}

// NewSocket implements transport.Factory
func (f *Factory) NewSocket(p transport.Pattern) (transport.Socket, error) {
	var t zmq4.Type
	switch p {
	case transport.PatternPub:
		t = zmq4.PUB
	case transport.PatternPush:
		t = zmq4.PUSH
	case transport.PatternDealer:
		t = zmq4.DEALER
	default:
		return nil, fmt.Errorf("unsupported socket pattern %s", p)
	}
	s, err := zmq4.NewSocket(t)
	if err != nil {
		return nil, err
	}
	// Pending frames are dropped on close so that a resume never blocks
	if err := s.SetLinger(0); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set linger: %w", err)
	}
	return &Socket{sock: s}, nil
}

// Socket adapts *zmq4.Socket. It is not safe for concurrent use.
type Socket struct {
	sock *zmq4.Socket
}

// SetSendTimeout implements transport.Socket
func (s *Socket) SetSendTimeout(ms int) error {
	return s.sock.SetSndtimeo(time.Duration(ms) * time.Millisecond)
}

// SetZapDomain implements transport.Socket
func (s *Socket) SetZapDomain(domain string) error {
	return s.sock.SetZapDomain(domain)
}

// SetCurveServer implements transport.Socket
func (s *Socket) SetCurveServer(enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	return s.sock.SetCurveServer(v)
}

// SetCurveServerKey implements transport.Socket
func (s *Socket) SetCurveServerKey(key string) error {
	return s.sock.SetCurveServerkey(key)
}

// SetCurvePublicKey implements transport.Socket
func (s *Socket) SetCurvePublicKey(key string) error {
	return s.sock.SetCurvePublickey(key)
}

// SetCurveSecretKey implements transport.Socket
func (s *Socket) SetCurveSecretKey(key string) error {
	return s.sock.SetCurveSecretkey(key)
}

// Bind implements transport.Socket
func (s *Socket) Bind(endpoint string) error {
	return s.sock.Bind(endpoint)
}

// Connect implements transport.Socket
func (s *Socket) Connect(endpoint string) error {
	return s.sock.Connect(endpoint)
}

// Send implements transport.Socket. All frames go out as one multipart message.
func (s *Socket) Send(frames ...string) error {
	if len(frames) == 1 {
		_, err := s.sock.Send(frames[0], 0)
		return err
	}
	parts := make([]interface{}, len(frames))
	for i, f := range frames {
		parts[i] = f
	}
	_, err := s.sock.SendMessage(parts...)
	return err
}

// Close implements transport.Socket
func (s *Socket) Close() error {
	return s.sock.Close()
}

var _ transport.Factory = (*Factory)(nil)
var _ transport.Socket = (*Socket)(nil)
