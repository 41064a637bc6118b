package config

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ibs-source/syslog-forwarder/internal/fault"
)

// Params is one block of raw directives, name to textual value
type Params map[string]string

// parseBool accepts the spellings used in rsyslog-style configuration
func parseBool(op, directive, value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "yes", "true", "1":
		return true, nil
	case "off", "no", "false", "0":
		return false, nil
	default:
		return false, fault.Config(op, directive, "invalid boolean %q", value)
	}
}

func parseInt(op, directive, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fault.Config(op, directive, "invalid integer %q", value)
	}
	return n, nil
}

// checkKnown rejects directives that are not in known, naming them in sorted order
func checkKnown(op string, p Params, known []string) error {
	var unknown []string
	for name := range p {
		if !contains(known, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fault.Config(op, strings.Join(unknown, ","), "unknown directive")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
