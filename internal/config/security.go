package config

import (
	"github.com/ibs-source/syslog-forwarder/internal/fault"
)

// SecurityMode is the CURVE role of every socket in the process
type SecurityMode int

const (
	// ModeNone leaves sockets unauthenticated
	ModeNone SecurityMode = iota
	// ModeCurveServer proves this endpoint's identity to every connecting peer
	ModeCurveServer
	// ModeCurveClient verifies the remote's identity and presents a client certificate
	ModeCurveClient
)

// Module-level directive names
const (
	DirectiveAuthenticator  = "authenticator"
	DirectiveAuthType       = "authtype"
	DirectiveServerCertPath = "servercertpath"
	DirectiveClientCertPath = "clientcertpath"
)

var moduleDirectives = []string{
	DirectiveAuthenticator,
	DirectiveAuthType,
	DirectiveServerCertPath,
	DirectiveClientCertPath,
}

// ParseSecurityMode maps the authtype directive. Unknown names are a CONFIG_ERROR.
func ParseSecurityMode(name string) (SecurityMode, error) {
	switch name {
	case "":
		return ModeNone, nil
	case "CURVESERVER":
		return ModeCurveServer, nil
	case "CURVECLIENT":
		return ModeCurveClient, nil
	default:
		return ModeNone, fault.Config("config.ParseSecurityMode", DirectiveAuthType,
			"unsupported authtype %q (want CURVESERVER or CURVECLIENT)", name)
	}
}

// String returns the directive spelling of the mode
func (m SecurityMode) String() string {
	switch m {
	case ModeCurveServer:
		return "CURVESERVER"
	case ModeCurveClient:
		return "CURVECLIENT"
	default:
		return "NONE"
	}
}

// Security is the process-wide security configuration. It is written while the
// configuration loads and read-only once activated.
type Security struct {
	Authenticator  bool
	Mode           SecurityMode
	ServerCertPath string
	// ClientCertPath is a certificate file or directory; "*" accepts any client
	ClientCertPath string
}

// NewSecurity returns an empty configuration with security disabled
func NewSecurity() *Security {
	return &Security{Mode: ModeNone}
}

// ParseModule builds and validates the security configuration from module directives
func ParseModule(p Params) (*Security, error) {
	s := NewSecurity()
	if err := s.SetParams(p); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetParams applies module directives on top of the current values
func (s *Security) SetParams(p Params) error {
	const op = "config.ParseModule"
	if err := checkKnown(op, p, moduleDirectives); err != nil {
		return err
	}
	if v, ok := p[DirectiveAuthenticator]; ok {
		enabled, err := parseBool(op, DirectiveAuthenticator, v)
		if err != nil {
			return err
		}
		s.Authenticator = enabled
	}
	if v, ok := p[DirectiveAuthType]; ok {
		mode, err := ParseSecurityMode(v)
		if err != nil {
			return err
		}
		s.Mode = mode
	}
	if v, ok := p[DirectiveServerCertPath]; ok {
		s.ServerCertPath = v
	}
	if v, ok := p[DirectiveClientCertPath]; ok {
		s.ClientCertPath = v
	}
	return nil
}

// Validate checks that every enabled feature has the certificates it needs
func (s *Security) Validate() error {
	const op = "config.Security.Validate"
	switch s.Mode {
	case ModeCurveServer:
		if s.ServerCertPath == "" {
			return fault.Config(op, DirectiveServerCertPath, "required by authtype %s", s.Mode)
		}
	case ModeCurveClient:
		if s.ServerCertPath == "" {
			return fault.Config(op, DirectiveServerCertPath, "required by authtype %s", s.Mode)
		}
		if s.ClientCertPath == "" {
			return fault.Config(op, DirectiveClientCertPath, "required by authtype %s", s.Mode)
		}
	}
	if s.Authenticator && s.ClientCertPath == "" {
		return fault.Config(op, DirectiveClientCertPath, "required when the authenticator is enabled")
	}
	return nil
}
