package config

import (
	"strings"

	"github.com/ibs-source/syslog-forwarder/internal/fault"
	"github.com/ibs-source/syslog-forwarder/internal/transport"
)

// DefaultTemplate renders the payload when an action names no template
const DefaultTemplate = "RSYSLOG_ForwardFormat"

// MaxTopicLength bounds a single topic; longer entries are rejected
const MaxTopicLength = 255

// Action-level directive names
const (
	DirectiveName        = "name"
	DirectiveEndpoints   = "endpoints"
	DirectiveSockType    = "socktype"
	DirectiveSendTimeout = "sendtimeout"
	DirectiveTemplate    = "template"
	DirectiveTopics      = "topics"
	DirectiveTopicFrame  = "topicframe"
	DirectiveDynaKey     = "dynakey"
)

var actionDirectives = []string{
	DirectiveName,
	DirectiveEndpoints,
	DirectiveSockType,
	DirectiveSendTimeout,
	DirectiveTemplate,
	DirectiveTopics,
	DirectiveTopicFrame,
	DirectiveDynaKey,
}

// Action is the validated configuration of one publishing endpoint
type Action struct {
	// Name labels the action in logs and metrics; defaults to Endpoints
	Name      string
	Endpoints string
	Pattern   transport.Pattern
	// SendTimeoutMs is the per-send timeout; -1 blocks indefinitely
	SendTimeoutMs int
	// Topics is empty when no topic routing applies
	Topics []string
	// TopicFrame sends the topic as its own frame instead of a payload prefix
	TopicFrame bool
	// DynaKey treats each topic as the name of the template rendering its key
	DynaKey  bool
	Template string
}

// NewAction returns an action with every optional directive at its default
func NewAction() *Action {
	return &Action{
		Pattern:       transport.PatternUnknown,
		SendTimeoutMs: -1,
		Template:      DefaultTemplate,
	}
}

// ParseAction builds and validates an action from its directives
func ParseAction(p Params) (*Action, error) {
	const op = "config.ParseAction"
	if err := checkKnown(op, p, actionDirectives); err != nil {
		return nil, err
	}

	a := NewAction()
	a.Name = strings.TrimSpace(p[DirectiveName])
	a.Endpoints = strings.TrimSpace(p[DirectiveEndpoints])
	if v, ok := p[DirectiveSockType]; ok {
		a.Pattern = transport.ParsePattern(strings.TrimSpace(v))
	}
	if v, ok := p[DirectiveSendTimeout]; ok {
		ms, err := parseInt(op, DirectiveSendTimeout, v)
		if err != nil {
			return nil, err
		}
		a.SendTimeoutMs = ms
	}
	if v, ok := p[DirectiveTemplate]; ok && strings.TrimSpace(v) != "" {
		a.Template = strings.TrimSpace(v)
	}
	if v, ok := p[DirectiveTopics]; ok {
		topics, err := ParseTopics(v)
		if err != nil {
			return nil, err
		}
		a.Topics = topics
	}
	if v, ok := p[DirectiveTopicFrame]; ok {
		b, err := parseBool(op, DirectiveTopicFrame, v)
		if err != nil {
			return nil, err
		}
		a.TopicFrame = b
	}
	if v, ok := p[DirectiveDynaKey]; ok {
		b, err := parseBool(op, DirectiveDynaKey, v)
		if err != nil {
			return nil, err
		}
		a.DynaKey = b
	}
	if a.Name == "" {
		a.Name = a.Endpoints
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// ParseTopics splits a comma-delimited topic list. Entries are trimmed and keep
// their order; a trailing comma is tolerated. An empty list is a CONFIG_ERROR.
func ParseTopics(list string) ([]string, error) {
	const op = "config.ParseTopics"
	if strings.TrimSpace(list) == "" {
		return nil, fault.Config(op, DirectiveTopics, "empty topic list")
	}
	parts := strings.Split(list, ",")
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	topics := make([]string, 0, len(parts))
	for _, part := range parts {
		topic := strings.TrimSpace(part)
		if len(topic) > MaxTopicLength {
			return nil, fault.Config(op, DirectiveTopics, "topic %.16q... exceeds %d bytes", topic, MaxTopicLength)
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

// Validate rejects incomplete or contradictory actions
func (a *Action) Validate() error {
	const op = "config.Action.Validate"
	if a.Endpoints == "" {
		return fault.Config(op, DirectiveEndpoints, "required")
	}
	if _, err := transport.ParseEndpoints(a.Endpoints, a.Pattern.Listener()); err != nil {
		return fault.New(fault.ConfigError, op, DirectiveEndpoints, err)
	}
	if a.Pattern == transport.PatternUnknown {
		return fault.Config(op, DirectiveSockType, "required, one of PUB, PUSH, DEALER")
	}
	if a.SendTimeoutMs < -1 {
		return fault.Config(op, DirectiveSendTimeout, "must be -1 or a non-negative number of milliseconds, got %d", a.SendTimeoutMs)
	}
	if a.DynaKey {
		for i, name := range a.Topics {
			if name == "" {
				return fault.Config(op, DirectiveTopics, "entry %d names no template", i+1)
			}
		}
	}
	return nil
}

// RoutesTopics reports whether Publish fans out per topic
func (a *Action) RoutesTopics() bool {
	return a.Pattern == transport.PatternPub && len(a.Topics) > 0
}

// RenderedCount is the number of rendered strings Publish expects per record
func (a *Action) RenderedCount() int {
	if a.DynaKey {
		return 1 + len(a.Topics)
	}
	return 1
}

// TemplateNames lists the templates the host renders per record, payload first
// and, under DynaKey, one per topic in topic order
func (a *Action) TemplateNames() []string {
	names := make([]string, 0, a.RenderedCount())
	names = append(names, a.Template)
	if a.DynaKey {
		names = append(names, a.Topics...)
	}
	return names
}
