package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ibs-source/syslog-forwarder/internal/fault"
)

// File is the on-disk layout of the actions file
type File struct {
	Module    Params            `yaml:"module"`
	Templates map[string]string `yaml:"templates"`
	Actions   []Params          `yaml:"actions"`
}

// Forwarding is the parsed actions file
type Forwarding struct {
	Security *Security
	// Templates maps user template names to text/template bodies
	Templates map[string]string
	Actions   []*Action
}

// LoadForwarding reads and parses the actions file at path
func LoadForwarding(path string) (*Forwarding, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read actions file: %w", err)
	}
	fw, err := ParseForwarding(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fw, nil
}

// ParseForwarding decodes an actions document. Every action is validated; the first
// invalid one aborts the whole document.
func ParseForwarding(data []byte) (*Forwarding, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fault.New(fault.ConfigError, "config.ParseForwarding", "yaml", err)
	}

	security, err := ParseModule(f.Module)
	if err != nil {
		return nil, err
	}
	if len(f.Actions) == 0 {
		return nil, fault.Config("config.ParseForwarding", "actions", "at least one action is required")
	}

	fw := &Forwarding{
		Security:  security,
		Templates: f.Templates,
		Actions:   make([]*Action, 0, len(f.Actions)),
	}
	if fw.Templates == nil {
		fw.Templates = map[string]string{}
	}
	for i, p := range f.Actions {
		a, err := ParseAction(p)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i+1, err)
		}
		fw.Actions = append(fw.Actions, a)
	}
	return fw, nil
}
