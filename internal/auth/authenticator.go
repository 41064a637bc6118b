// Package auth runs the process-wide CURVE authorizer that accepts or rejects peers
// during the security handshake of listening sockets.
package auth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ibs-source/syslog-forwarder/internal/cert"
	"github.com/ibs-source/syslog-forwarder/internal/config"
	"github.com/ibs-source/syslog-forwarder/internal/fault"
	"github.com/ibs-source/syslog-forwarder/internal/log"
)

// AllowAnyPath is the clientcertpath value that accepts every CURVE client
const AllowAnyPath = "*"

// AnyDomain applies a policy to every ZAP domain
const AnyDomain = "*"

// ErrNotRunning is returned by Reload when the actor was never started
var ErrNotRunning = errors.New("authenticator not running")

// Backend is the ZAP handler the actor drives
type Backend interface {
	Start() error
	// AllowAny accepts every CURVE client in domain
	AllowAny(domain string)
	// Allow accepts only the listed Z85 public keys in domain
	Allow(domain string, publicKeys ...string)
	// Reset forgets every CURVE key for domain
	Reset(domain string)
	Stop()
}

type commandKind int

const (
	cmdReload commandKind = iota
	cmdStop
)

type command struct {
	kind  commandKind
	reply chan error
}

// Authenticator owns one Backend on a dedicated goroutine. Start is memoized.
type Authenticator struct {
	backend Backend
	log     *log.Logger

	mu       sync.Mutex
	running  bool
	mode     config.SecurityMode
	certPath string
	cmds     chan command
	done     chan struct{}
}

// New creates a stopped authenticator
func New(backend Backend, logger *log.Logger) *Authenticator {
	return &Authenticator{backend: backend, log: logger}
}

// Start launches the actor and blocks until its policy is installed. A second call
// while running is a no-op.
func (a *Authenticator) Start(mode config.SecurityMode, clientCertPath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}
	a.mode = mode
	a.certPath = clientCertPath
	a.cmds = make(chan command)
	a.done = make(chan struct{})

	ready := make(chan error, 1)
	go a.run(ready)
	if err := <-ready; err != nil {
		return err
	}
	a.running = true
	a.log.Info("Authenticator started (mode %s, clients %s)", mode, clientCertPath)
	return nil
}

// Reload re-reads the client certificate location and replaces the policy
func (a *Authenticator) Reload() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return ErrNotRunning
	}
	reply := make(chan error, 1)
	a.cmds <- command{kind: cmdReload, reply: reply}
	return <-reply
}

// Stop terminates the actor. Safe to call when it was never started.
func (a *Authenticator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	a.cmds <- command{kind: cmdStop}
	<-a.done
	a.running = false
	a.log.Info("Authenticator stopped")
}

// Running reports whether the actor is live
func (a *Authenticator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *Authenticator) run(ready chan<- error) {
	defer close(a.done)

	if err := a.backend.Start(); err != nil {
		ready <- fmt.Errorf("failed to start ZAP handler: %w", err)
		return
	}
	if err := a.applyPolicy(); err != nil {
		a.backend.Stop()
		ready <- err
		return
	}
	ready <- nil

	for cmd := range a.cmds {
		switch cmd.kind {
		case cmdReload:
			cmd.reply <- a.applyPolicy()
		case cmdStop:
			a.backend.Stop()
			return
		}
	}
}

func (a *Authenticator) applyPolicy() error {
	if a.certPath == AllowAnyPath {
		a.backend.Reset(AnyDomain)
		a.backend.AllowAny(AnyDomain)
		return nil
	}

	keys, err := cert.PublicKeys(a.certPath)
	if err != nil {
		return fault.New(fault.CertLoadFailed, "auth.Start", a.certPath, err)
	}
	a.backend.Reset(AnyDomain)
	if len(keys) == 0 {
		a.log.WarnWithFields(log.Fields{"path": a.certPath},
			"No client certificates found, every CURVE client will be rejected")
		return nil
	}
	a.backend.Allow(AnyDomain, keys...)
	a.log.Debug("Authenticator trusts %d client certificates from %s", len(keys), a.certPath)
	return nil
}
