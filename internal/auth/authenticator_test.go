package auth

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/syslog-forwarder/internal/cert"
	"github.com/ibs-source/syslog-forwarder/internal/config"
	"github.com/ibs-source/syslog-forwarder/internal/fault"
	"github.com/ibs-source/syslog-forwarder/internal/log"
)

type fakeBackend struct {
	mu       sync.Mutex
	startErr error
	started  int
	stopped  int
	allowAny []string
	allowed  map[string][]string
	resets   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{allowed: map[string][]string{}}
}

func (b *fakeBackend) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started++
	return b.startErr
}

func (b *fakeBackend) AllowAny(domain string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowAny = append(b.allowAny, domain)
}

func (b *fakeBackend) Allow(domain string, keys ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowed[domain] = append(b.allowed[domain], keys...)
}

func (b *fakeBackend) Reset(domain string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets++
	delete(b.allowed, domain)
}

func (b *fakeBackend) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped++
}

func writeClientCerts(t *testing.T, dir string, n int) []string {
	t.Helper()
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		c, err := cert.Generate()
		require.NoError(t, err)
		require.NoError(t, c.Save(filepath.Join(dir, string(rune('a'+i))+".cert")))
		keys = append(keys, c.PublicText())
	}
	return keys
}

func TestStart_AllowAny(t *testing.T) {
	b := newFakeBackend()
	a := New(b, log.Discard())

	require.NoError(t, a.Start(config.ModeCurveClient, AllowAnyPath))
	defer a.Stop()

	assert.True(t, a.Running())
	assert.Equal(t, []string{AnyDomain}, b.allowAny)
	assert.Empty(t, b.allowed)
}

func TestStart_RestrictsToCertificateDirectory(t *testing.T) {
	dir := t.TempDir()
	keys := writeClientCerts(t, dir, 2)

	b := newFakeBackend()
	a := New(b, log.Discard())
	require.NoError(t, a.Start(config.ModeCurveServer, dir))
	defer a.Stop()

	assert.Empty(t, b.allowAny)
	assert.ElementsMatch(t, keys, b.allowed[AnyDomain])
}

func TestStart_IsMemoized(t *testing.T) {
	b := newFakeBackend()
	a := New(b, log.Discard())

	require.NoError(t, a.Start(config.ModeCurveServer, AllowAnyPath))
	require.NoError(t, a.Start(config.ModeCurveServer, "/elsewhere"))
	defer a.Stop()

	assert.Equal(t, 1, b.started)
}

func TestStart_BackendFailure(t *testing.T) {
	b := newFakeBackend()
	b.startErr = errors.New("zap endpoint in use")
	a := New(b, log.Discard())

	err := a.Start(config.ModeCurveServer, AllowAnyPath)
	require.Error(t, err)
	assert.False(t, a.Running())
}

func TestStart_MissingCertificatePath(t *testing.T) {
	b := newFakeBackend()
	a := New(b, log.Discard())

	err := a.Start(config.ModeCurveServer, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, fault.CertLoadFailed, fault.KindOf(err))
	assert.False(t, a.Running())
	assert.Equal(t, 1, b.stopped)
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	first := writeClientCerts(t, dir, 1)

	b := newFakeBackend()
	a := New(b, log.Discard())
	require.NoError(t, a.Start(config.ModeCurveServer, dir))
	defer a.Stop()
	assert.Equal(t, first, b.allowed[AnyDomain])

	c, err := cert.Generate()
	require.NoError(t, err)
	require.NoError(t, c.Save(filepath.Join(dir, "z.cert")))

	require.NoError(t, a.Reload())
	assert.ElementsMatch(t, append(first, c.PublicText()), b.allowed[AnyDomain])
	assert.Equal(t, 2, b.resets)
}

func TestReload_NotRunning(t *testing.T) {
	a := New(newFakeBackend(), log.Discard())
	assert.ErrorIs(t, a.Reload(), ErrNotRunning)
}

func TestStop(t *testing.T) {
	b := newFakeBackend()
	a := New(b, log.Discard())

	a.Stop() // never started
	assert.Equal(t, 0, b.stopped)

	require.NoError(t, a.Start(config.ModeCurveServer, AllowAnyPath))
	a.Stop()
	assert.False(t, a.Running())
	assert.Equal(t, 1, b.stopped)

	a.Stop()
	assert.Equal(t, 1, b.stopped)

	require.NoError(t, a.Start(config.ModeCurveServer, AllowAnyPath))
	a.Stop()
	assert.Equal(t, 2, b.started)
}
