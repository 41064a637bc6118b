package zmq

import (
	zmq4 "github.com/pebbe/zmq4"
)

// ZapBackend drives the libzmq ZAP handler built into pebbe/zmq4
type ZapBackend struct {
	Verbose bool
}

// Start launches the ZAP handler
func (z *ZapBackend) Start() error {
	zmq4.AuthSetVerbose(z.Verbose)
	return zmq4.AuthStart()
}

// AllowAny accepts every CURVE client in domain
func (z *ZapBackend) AllowAny(domain string) {
	zmq4.AuthCurveAdd(domain, zmq4.CURVE_ALLOW_ANY)
}

// Allow accepts the listed Z85 public keys in domain
func (z *ZapBackend) Allow(domain string, publicKeys ...string) {
	zmq4.AuthCurveAdd(domain, publicKeys...)
}

// Reset drops every CURVE key for domain
func (z *ZapBackend) Reset(domain string) {
	zmq4.AuthCurveRemoveAll(domain)
}

// Stop terminates the ZAP handler
func (z *ZapBackend) Stop() {
	zmq4.AuthStop()
}
