// Package transporttest provides an in-memory transport that records every call.
package transporttest

import (
	"errors"
	"sync"

	"github.com/ibs-source/syslog-forwarder/internal/transport"
)

// ErrClosed is returned by operations on a closed fake socket
var ErrClosed = errors.New("socket closed")

// Socket is a recording transport.Socket
type Socket struct {
	mu sync.Mutex

	Pattern     transport.Pattern
	SendTimeout int
	ZapDomain   string
	CurveServer bool
	ServerKey   string
	PublicKey   string
	SecretKey   string
	Bound       []string
	Connected   []string
	// Sent holds one entry per Send call, each the frames of that message
	Sent   [][]string
	Closed bool

	// Attempts counts Send calls including failed ones
	Attempts int

	TimeoutErr error
	BindErr    error
	ConnectErr error
	// SendErr fails every send once Attempts reaches FailFrom (1-based; 0 means first)
	SendErr  error
	FailFrom int
}

// NewSocket returns an open fake socket
func NewSocket(p transport.Pattern) *Socket {
	return &Socket{Pattern: p, SendTimeout: -1}
}

// SetSendTimeout records the timeout
func (s *Socket) SetSendTimeout(ms int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TimeoutErr != nil {
		return s.TimeoutErr
	}
	s.SendTimeout = ms
	return nil
}

// SetZapDomain records the domain
func (s *Socket) SetZapDomain(domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ZapDomain = domain
	return nil
}

// SetCurveServer records the server flag
func (s *Socket) SetCurveServer(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurveServer = enabled
	return nil
}

// SetCurveServerKey records the expected remote key
func (s *Socket) SetCurveServerKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ServerKey = key
	return nil
}

// SetCurvePublicKey records the local public key
func (s *Socket) SetCurvePublicKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PublicKey = key
	return nil
}

// SetCurveSecretKey records the local secret key
func (s *Socket) SetCurveSecretKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SecretKey = key
	return nil
}

// Bind records a bind
func (s *Socket) Bind(endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.BindErr != nil {
		return s.BindErr
	}
	s.Bound = append(s.Bound, endpoint)
	return nil
}

// Connect records a connect
func (s *Socket) Connect(endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ConnectErr != nil {
		return s.ConnectErr
	}
	s.Connected = append(s.Connected, endpoint)
	return nil
}

// Send records a message or fails according to SendErr/FailFrom
func (s *Socket) Send(frames ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Closed {
		return ErrClosed
	}
	s.Attempts++
	if s.SendErr != nil && s.Attempts >= s.FailFrom {
		return s.SendErr
	}
	msg := make([]string, len(frames))
	copy(msg, frames)
	s.Sent = append(s.Sent, msg)
	return nil
}

// Close marks the socket closed
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Messages returns a copy of the recorded messages
func (s *Socket) Messages() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.Sent))
	copy(out, s.Sent)
	return out
}

// Factory hands out fake sockets and keeps every one it created
type Factory struct {
	mu sync.Mutex

	Sockets []*Socket
	// NewErr makes NewSocket fail
	NewErr error
	// Prepare, if set, runs on each socket before it is returned
	Prepare func(*Socket)
}

// NewSocket implements transport.Factory
func (f *Factory) NewSocket(p transport.Pattern) (transport.Socket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NewErr != nil {
		return nil, f.NewErr
	}
	s := NewSocket(p)
	if f.Prepare != nil {
		f.Prepare(s)
	}
	f.Sockets = append(f.Sockets, s)
	return s, nil
}

// Last returns the most recently created socket, or nil
func (f *Factory) Last() *Socket {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sockets) == 0 {
		return nil
	}
	return f.Sockets[len(f.Sockets)-1]
}

// Count returns how many sockets were created
func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sockets)
}

var _ transport.Socket = (*Socket)(nil)
var _ transport.Factory = (*Factory)(nil)
