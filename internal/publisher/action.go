package publisher

import (
	"github.com/google/uuid"

	"github.com/ibs-source/syslog-forwarder/internal/config"
	"github.com/ibs-source/syslog-forwarder/internal/fault"
	"github.com/ibs-source/syslog-forwarder/internal/log"
	"github.com/ibs-source/syslog-forwarder/internal/transport"
)

// Action publishes to one configured endpoint. Its socket is created lazily and
// rebuilt from scratch by Resume.
type Action struct {
	module *Module
	cfg    *config.Action

	sock      transport.Socket
	socketID  string
	sendError bool
}

// Config returns the action's configuration
func (a *Action) Config() *config.Action {
	return a.cfg
}

// Name returns the action's label
func (a *Action) Name() string {
	return a.cfg.Name
}

// Publish sends one record. rendered[0] is the payload; under dynakey
// rendered[1..N] are the topic keys in topic order.
func (a *Action) Publish(rendered []string) error {
	a.module.mu.Lock()
	defer a.module.mu.Unlock()

	if want := a.cfg.RenderedCount(); len(rendered) != want {
		return fault.Config("publisher.Publish", a.cfg.Name, "got %d rendered strings, want %d", len(rendered), want)
	}
	if err := a.ensureSocket(); err != nil {
		return err
	}
	return a.send(rendered)
}

func (a *Action) send(rendered []string) error {
	payload := rendered[0]

	if !a.cfg.RoutesTopics() {
		if err := a.sock.Send(payload); err != nil {
			return a.sendFailed("", err)
		}
		a.sendError = false
		return nil
	}

	// The key index advances for every topic, dynamic or not
	index := 1
	for _, name := range a.cfg.Topics {
		topic := name
		if a.cfg.DynaKey {
			topic = rendered[index]
		}
		index++

		var err error
		if a.cfg.TopicFrame {
			err = a.sock.Send(topic, payload)
		} else {
			err = a.sock.Send(topic + payload)
		}
		if err != nil {
			return a.sendFailed(topic, err)
		}
	}
	a.sendError = false
	return nil
}

func (a *Action) sendFailed(topic string, err error) error {
	a.sendError = true
	fields := log.Fields{"action": a.cfg.Name, "endpoints": a.cfg.Endpoints}
	subject := a.cfg.Endpoints
	if topic != "" {
		fields["topic"] = topic
		subject = topic
	}
	a.module.log.ErrorWithFields(fields, "Send failed: %v", err)
	return fault.New(fault.SendFailed, "publisher.Publish", subject, err)
}

// Resume destroys the current socket, if any, and builds a new one
func (a *Action) Resume() error {
	a.module.mu.Lock()
	defer a.module.mu.Unlock()

	a.destroy()
	return a.ensureSocket()
}

// Close destroys the socket. The next Publish creates a new one.
func (a *Action) Close() {
	a.module.mu.Lock()
	defer a.module.mu.Unlock()
	a.destroy()
}

// SendError reports whether the most recent send failed
func (a *Action) SendError() bool {
	a.module.mu.Lock()
	defer a.module.mu.Unlock()
	return a.sendError
}

// SocketID identifies the current socket generation; "" when there is none
func (a *Action) SocketID() string {
	a.module.mu.Lock()
	defer a.module.mu.Unlock()
	return a.socketID
}

// ensureSocket creates, secures and attaches the socket unless one exists. On any
// failure the partial socket is closed and no handle is kept.
func (a *Action) ensureSocket() error {
	const op = "publisher.ensureSocket"
	if a.sock != nil {
		return nil
	}

	transport.DisableSignalHandling()

	sock, err := a.module.factory.NewSocket(a.cfg.Pattern)
	if err != nil {
		a.module.log.ErrorWithFields(log.Fields{"action": a.cfg.Name, "socktype": a.cfg.Pattern.String()},
			"Failed to create socket: %v", err)
		return fault.New(fault.SocketCreateFailed, op, a.cfg.Pattern.String(), err)
	}
	if err := a.configure(sock); err != nil {
		_ = sock.Close()
		a.module.log.ErrorWithFields(log.Fields{"action": a.cfg.Name, "endpoints": a.cfg.Endpoints},
			"Socket setup failed: %v", err)
		return err
	}

	a.sock = sock
	a.socketID = uuid.NewString()
	a.module.log.InfoWithFields(log.Fields{
		"action":    a.cfg.Name,
		"endpoints": a.cfg.Endpoints,
		"socktype":  a.cfg.Pattern.String(),
		"socket":    a.socketID,
	}, "Socket ready")
	return nil
}

func (a *Action) configure(sock transport.Socket) error {
	const op = "publisher.ensureSocket"

	if err := sock.SetSendTimeout(a.cfg.SendTimeoutMs); err != nil {
		return fault.New(fault.SocketCreateFailed, op, config.DirectiveSendTimeout, err)
	}
	if err := a.module.secure(sock); err != nil {
		return err
	}
	if err := transport.Attach(sock, a.cfg.Endpoints, a.cfg.Pattern.Listener()); err != nil {
		return fault.New(fault.AttachFailed, op, a.cfg.Endpoints, err)
	}
	return nil
}

func (a *Action) destroy() {
	if a.sock == nil {
		return
	}
	if err := a.sock.Close(); err != nil {
		a.module.log.WarnWithFields(log.Fields{"action": a.cfg.Name}, "Failed to close socket: %v", err)
	}
	a.module.log.Debug("Socket %s of action %s destroyed", a.socketID, a.cfg.Name)
	a.sock = nil
	a.socketID = ""
}
