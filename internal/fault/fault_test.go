package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{SocketCreateFailed, "SOCKET_CREATE_FAILED"},
		{CertLoadFailed, "CERT_LOAD_FAILED"},
		{AttachFailed, "ATTACH_FAILED"},
		{SendFailed, "SEND_FAILED"},
		{ConfigError, "CONFIG_ERROR"},
		{OutOfMemory, "OUT_OF_MEMORY"},
		{KindUnknown, "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestRecoverableAndFatal(t *testing.T) {
	for _, k := range []Kind{SocketCreateFailed, AttachFailed, SendFailed} {
		err := New(k, "op", "tcp://127.0.0.1:1", errors.New("boom"))
		assert.True(t, IsRecoverable(err), k.String())
		assert.False(t, IsFatal(err), k.String())
	}
	for _, k := range []Kind{CertLoadFailed, ConfigError, OutOfMemory} {
		err := New(k, "op", "x", nil)
		assert.False(t, IsRecoverable(err), k.String())
		assert.True(t, IsFatal(err), k.String())
	}
	assert.False(t, IsRecoverable(nil))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsRecoverable(errors.New("plain")))
}

func TestErrorsIsMatchesSentinelByKind(t *testing.T) {
	cause := errors.New("resource temporarily unavailable")
	err := fmt.Errorf("publish: %w", New(SendFailed, "publisher.Publish", "logs", cause))

	assert.True(t, errors.Is(err, ErrSend))
	assert.False(t, errors.Is(err, ErrAttach))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, SendFailed, KindOf(err))
}

func TestErrorMessage(t *testing.T) {
	err := New(AttachFailed, "publisher.ensureSocket", "tcp://host:5555", errors.New("refused"))
	assert.Equal(t, "publisher.ensureSocket: ATTACH_FAILED [tcp://host:5555]: refused", err.Error())

	cfg := Config("config.ParseAction", "socktype", "unknown socket type %q", "SUB")
	require.Equal(t, ConfigError, cfg.Kind)
	assert.Contains(t, cfg.Error(), `unknown socket type "SUB"`)
}
