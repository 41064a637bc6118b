// Package publisher turns rendered log records into framed messages on ZeroMQ sockets.
// A Module holds the process-wide security state; each Action owns one socket and
// routes every record to its configured topics.
package publisher

import (
	"fmt"
	"sync"

	"github.com/ibs-source/syslog-forwarder/internal/auth"
	"github.com/ibs-source/syslog-forwarder/internal/cert"
	"github.com/ibs-source/syslog-forwarder/internal/config"
	"github.com/ibs-source/syslog-forwarder/internal/fault"
	"github.com/ibs-source/syslog-forwarder/internal/log"
	"github.com/ibs-source/syslog-forwarder/internal/transport"
)

// ZapDomain is the authentication domain of every CURVE server socket
const ZapDomain = "global"

// Module is the state of one loaded configuration. Every socket operation of every
// action runs under its single lock, so sends are serialized process-wide.
type Module struct {
	mu sync.Mutex

	security *config.Security
	factory  transport.Factory
	auth     *auth.Authenticator
	log      *log.Logger
	actions  []*Action
	active   bool
}

// NewModule binds a security configuration to a socket factory. authenticator may be
// nil when security.Authenticator is off.
func NewModule(security *config.Security, factory transport.Factory, authenticator *auth.Authenticator, logger *log.Logger) *Module {
	if security == nil {
		security = config.NewSecurity()
	}
	return &Module{
		security: security,
		factory:  factory,
		auth:     authenticator,
		log:      logger,
	}
}

// Activate starts the authenticator when enabled. A certificate failure here is fatal
// for the configuration.
func (m *Module) Activate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return nil
	}
	if m.security.Authenticator {
		if m.auth == nil {
			return fault.Config("publisher.Activate", config.DirectiveAuthenticator, "enabled but no authenticator is available")
		}
		if err := m.auth.Start(m.security.Mode, m.security.ClientCertPath); err != nil {
			return err
		}
	}
	m.active = true
	m.log.Info("Publisher module activated (authtype %s, authenticator %t)", m.security.Mode, m.security.Authenticator)
	return nil
}

// Teardown closes every action's socket and stops the authenticator
func (m *Module) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.actions {
		a.destroy()
	}
	if m.auth != nil {
		m.auth.Stop()
	}
	m.active = false
	m.log.Info("Publisher module torn down")
}

// Security returns the module's security configuration
func (m *Module) Security() *config.Security {
	return m.security
}

// NewAction validates cfg and registers an action. The socket is created on first use.
func (m *Module) NewAction(cfg *config.Action) (*Action, error) {
	if cfg == nil {
		return nil, fault.Config("publisher.NewAction", "action", "missing configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Topics) > 0 && cfg.Pattern != transport.PatternPub {
		m.log.WarnWithFields(log.Fields{"action": cfg.Name, "socktype": cfg.Pattern.String()},
			"Topics are only used with PUB sockets and will be ignored")
	}

	a := &Action{module: m, cfg: cfg}
	m.mu.Lock()
	m.actions = append(m.actions, a)
	m.mu.Unlock()
	return a, nil
}

// secure applies the module's CURVE role to a freshly created socket
func (m *Module) secure(s transport.Socket) error {
	const op = "publisher.ensureSocket"

	switch m.security.Mode {
	case config.ModeCurveServer:
		server, err := cert.Load(m.security.ServerCertPath)
		if err != nil {
			return fault.New(fault.CertLoadFailed, op, m.security.ServerCertPath, err)
		}
		if err := s.SetZapDomain(ZapDomain); err != nil {
			return fault.New(fault.SocketCreateFailed, op, "zap_domain", err)
		}
		if err := s.SetCurveServer(true); err != nil {
			return fault.New(fault.SocketCreateFailed, op, "curve_server", err)
		}
		if err := server.Apply(s); err != nil {
			return fault.New(fault.CertLoadFailed, op, m.security.ServerCertPath, err)
		}

	case config.ModeCurveClient:
		server, err := cert.Load(m.security.ServerCertPath)
		if err != nil {
			return fault.New(fault.CertLoadFailed, op, m.security.ServerCertPath, err)
		}
		if err := s.SetCurveServerKey(server.PublicText()); err != nil {
			return fault.New(fault.CertLoadFailed, op, m.security.ServerCertPath,
				fmt.Errorf("failed to set server key: %w", err))
		}
		client, err := cert.Load(m.security.ClientCertPath)
		if err != nil {
			return fault.New(fault.CertLoadFailed, op, m.security.ClientCertPath, err)
		}
		if err := client.Apply(s); err != nil {
			return fault.New(fault.CertLoadFailed, op, m.security.ClientCertPath, err)
		}
	}
	return nil
}
