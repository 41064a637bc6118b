// Package template renders syslog records into the strings handed to the publisher.
// Built-in rsyslog formats are native; user templates are text/template bodies
// executed against *message.Record.
package template

import (
	"fmt"
	"sort"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/ibs-source/syslog-forwarder/internal/fault"
	"github.com/ibs-source/syslog-forwarder/internal/message"
	"github.com/ibs-source/syslog-forwarder/pkg/jsonfast"
)

// Func renders one record
type Func func(*message.Record) (string, error)

// Renderer holds every known template by name. It is safe for concurrent use.
type Renderer struct {
	funcs map[string]Func
}

var helpers = texttemplate.FuncMap{
	"json":     jsonfast.Escape,
	"upper":    strings.ToUpper,
	"lower":    strings.ToLower,
	"trim":     strings.TrimSpace,
	"truncate": truncate,
	"rfc3339":  func(t time.Time) string { return formatTime(rfc3339Layout, t) },
	"date":     formatTime,
}

// New compiles the user templates on top of the built-ins. User templates may not
// replace a built-in.
func New(user map[string]string) (*Renderer, error) {
	const op = "template.New"
	r := &Renderer{funcs: make(map[string]Func, len(builtins)+len(user))}
	for name, fn := range builtins {
		r.funcs[name] = fn
	}
	for name, body := range user {
		if name == "" {
			return nil, fault.Config(op, "templates", "template without a name")
		}
		if _, ok := builtins[name]; ok {
			return nil, fault.Config(op, name, "built-in template cannot be redefined")
		}
		t, err := texttemplate.New(name).Funcs(helpers).Option("missingkey=zero").Parse(body)
		if err != nil {
			return nil, fault.New(fault.ConfigError, op, name, err)
		}
		r.funcs[name] = execute(t)
	}
	return r, nil
}

func execute(t *texttemplate.Template) Func {
	return func(rec *message.Record) (string, error) {
		var b strings.Builder
		if err := t.Execute(&b, rec); err != nil {
			return "", err
		}
		return b.String(), nil
	}
}

// Check reports the first name that is not a known template as a CONFIG_ERROR
func (r *Renderer) Check(names ...string) error {
	for _, name := range names {
		if _, ok := r.funcs[name]; !ok {
			return fault.Config("template.Check", name, "unknown template")
		}
	}
	return nil
}

// Names lists every known template in sorted order
func (r *Renderer) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render renders rec with the named template
func (r *Renderer) Render(name string, rec *message.Record) (string, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return "", fault.Config("template.Render", name, "unknown template")
	}
	out, err := fn(rec)
	if err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	return out, nil
}

// RenderAll renders rec once per name, keeping the order of names
func (r *Renderer) RenderAll(names []string, rec *message.Record) ([]string, error) {
	out := make([]string, len(names))
	for i, name := range names {
		s, err := r.Render(name, rec)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
