package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/syslog-forwarder/internal/fault"
	"github.com/ibs-source/syslog-forwarder/internal/transport"
)

const sampleActions = `
module:
  authenticator: on
  authtype: CURVESERVER
  servercertpath: /etc/curve/server.cert
  clientcertpath: "*"
templates:
  hostkey: "{{.Hostname}}."
actions:
  - name: fanout
    endpoints: "@tcp://*:5555"
    socktype: PUB
    topics: hostkey
    dynakey: true
    topicframe: true
  - endpoints: tcp://archive:5556
    socktype: PUSH
    sendtimeout: 1000
`

func TestParseForwarding(t *testing.T) {
	fw, err := ParseForwarding([]byte(sampleActions))
	require.NoError(t, err)

	assert.True(t, fw.Security.Authenticator)
	assert.Equal(t, ModeCurveServer, fw.Security.Mode)
	assert.Equal(t, "{{.Hostname}}.", fw.Templates["hostkey"])

	require.Len(t, fw.Actions, 2)
	assert.Equal(t, "fanout", fw.Actions[0].Name)
	assert.True(t, fw.Actions[0].DynaKey)
	assert.True(t, fw.Actions[0].TopicFrame)
	assert.Equal(t, []string{DefaultTemplate, "hostkey"}, fw.Actions[0].TemplateNames())
	assert.Equal(t, transport.PatternPush, fw.Actions[1].Pattern)
	assert.Equal(t, 1000, fw.Actions[1].SendTimeoutMs)
	assert.Equal(t, "tcp://archive:5556", fw.Actions[1].Name)
}

func TestParseForwarding_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "actions: [\n"},
		{"no actions", "module: {}\n"},
		{"bad module", "module:\n  authtype: NOPE\nactions:\n  - {endpoints: x, socktype: PUB}\n"},
		{"bad action", "actions:\n  - {endpoints: 'tcp://a:1', socktype: SUB}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseForwarding([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, fault.ErrConfig)
		})
	}
}

func TestLoadForwarding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleActions), 0o600))

	fw, err := LoadForwarding(path)
	require.NoError(t, err)
	assert.Len(t, fw.Actions, 2)

	_, err = LoadForwarding(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
