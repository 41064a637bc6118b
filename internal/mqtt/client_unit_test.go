package mqtt

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ibs-source/syslog-forwarder/internal/config"
	"github.com/ibs-source/syslog-forwarder/internal/log"
	"github.com/ibs-source/syslog-forwarder/internal/message"
)

type testPKI struct {
	ca, cert, key, junk string
}

// writeTestPKI creates a CA, a client certificate signed by it and its key
func writeTestPKI(t *testing.T) testPKI {
	t.Helper()
	dir := t.TempDir()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("CreateCertificate(ca): %v", err)
	}

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "edge-01"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, caTmpl, &leafKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("CreateCertificate(leaf): %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(leafKey)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}

	p := testPKI{
		ca:   filepath.Join(dir, "authority.pem"),
		cert: filepath.Join(dir, "certificate.pem"),
		key:  filepath.Join(dir, "key.pem"),
		junk: filepath.Join(dir, "README.md"),
	}
	write := func(path string, data []byte) {
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	write(p.ca, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER}))
	write(p.cert, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: leafDER}))
	write(p.key, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))
	write(p.junk, []byte("not a certificate"))
	return p
}

func TestNewTLSConfig_Unit(t *testing.T) {
	p := writeTestPKI(t)

	t.Run("ValidTLSWithCA", func(t *testing.T) {
		tlsConfig, err := newTLSConfig(&config.MQTTConfig{TLSEnabled: true, CACert: p.ca})
		if err != nil {
			t.Fatalf("Failed to create TLS config: %v", err)
		}
		if tlsConfig.RootCAs == nil {
			t.Error("RootCAs not set")
		}
		if tlsConfig.InsecureSkipVerify {
			t.Error("InsecureSkipVerify should be false by default")
		}
	})

	t.Run("ValidTLSWithClientCert", func(t *testing.T) {
		tlsConfig, err := newTLSConfig(&config.MQTTConfig{
			TLSEnabled: true, CACert: p.ca, ClientCert: p.cert, ClientKey: p.key,
		})
		if err != nil {
			t.Fatalf("Failed to create TLS config: %v", err)
		}
		if len(tlsConfig.Certificates) == 0 {
			t.Error("Client certificates not loaded")
		}
	})

	t.Run("InsecureSkipVerify", func(t *testing.T) {
		tlsConfig, err := newTLSConfig(&config.MQTTConfig{TLSEnabled: true, InsecureSkip: true})
		if err != nil {
			t.Fatalf("Failed to create TLS config: %v", err)
		}
		if !tlsConfig.InsecureSkipVerify {
			t.Error("InsecureSkipVerify should be true")
		}
	})

	t.Run("EmptyCACert", func(t *testing.T) {
		tlsConfig, err := newTLSConfig(&config.MQTTConfig{TLSEnabled: true})
		if err != nil {
			t.Fatalf("Failed to create TLS config with empty CA: %v", err)
		}
		if tlsConfig.RootCAs != nil {
			t.Error("RootCAs should fall back to the system pool")
		}
	})

	errorCases := []struct {
		name string
		cfg  config.MQTTConfig
	}{
		{"InvalidCACert", config.MQTTConfig{CACert: "/nonexistent/ca.crt"}},
		{"CorruptedCACert", config.MQTTConfig{CACert: p.junk}},
		{"InvalidClientCert", config.MQTTConfig{ClientCert: "/nonexistent/client.crt", ClientKey: "/nonexistent/client.key"}},
		{"MismatchedClientCertKey", config.MQTTConfig{ClientCert: p.cert, ClientKey: p.junk}},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.TLSEnabled = true
			if _, err := newTLSConfig(&tc.cfg); err == nil {
				t.Error("expected an error, got nil")
			}
		})
	}
}

func testClient(buffer, batch int) *Client {
	return newClient(&config.MQTTConfig{Topic: "syslog/in", QoS: 1}, buffer, batch, log.Discard())
}

func TestHandleMessage_QueuesRecords(t *testing.T) {
	c := testClient(10, 10)

	c.handleMessage([]byte(`{"hostname":"web-01","message":"hello","severity":"err"}`))
	c.handleMessage([]byte(`plain text line`))
	c.handleMessage(nil)

	if c.Invalid() != 1 {
		t.Errorf("expected 1 invalid payload, got %d", c.Invalid())
	}

	batch, err := c.ReadBatch(context.Background())
	if err != nil {
		t.Fatalf("ReadBatch: %v", err)
	}
	if len(batch.Items) != 2 {
		t.Fatalf("expected 2 records, got %d", len(batch.Items))
	}
	first := batch.Items[0]
	if first.Hostname() != "web-01" || first.Severity() != 3 {
		t.Errorf("unexpected first record %+v", first.Fields)
	}
	second := batch.Items[1]
	if second.Message() != "plain text line" {
		t.Errorf("expected raw payload as message, got %q", second.Message())
	}
}

func TestReadBatch_RespectsBatchSize(t *testing.T) {
	c := testClient(10, 2)
	for i := 0; i < 5; i++ {
		c.handleMessage([]byte(`{"message":"m"}`))
	}

	sizes := []int{}
	for i := 0; i < 3; i++ {
		batch, err := c.ReadBatch(context.Background())
		if err != nil {
			t.Fatalf("ReadBatch: %v", err)
		}
		sizes = append(sizes, len(batch.Items))
	}
	if sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Errorf("unexpected batch sizes %v", sizes)
	}
}

func TestReadBatch_Cancelled(t *testing.T) {
	c := testClient(1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.ReadBatch(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestClose_ReleasesBlockedHandler(t *testing.T) {
	c := testClient(1, 1)
	c.handleMessage([]byte(`{"message":"fills the buffer"}`))

	done := make(chan struct{})
	go func() {
		c.handleMessage([]byte(`{"message":"blocked"}`))
		close(done)
	}()

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler still blocked after Close")
	}

	if err := c.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
	if err := c.Ack(context.Background(), message.Record{}); err != nil {
		t.Errorf("Ack returned %v", err)
	}
}

type stubToken struct {
	mqtt.Token
	completed bool
	err       error
}

func (s *stubToken) WaitTimeout(time.Duration) bool { return s.completed }
func (s *stubToken) Error() error                   { return s.err }

type stubClient struct {
	mqtt.Client
	token        *stubToken
	disconnected int
}

func (s *stubClient) Connect() mqtt.Token { return s.token }
func (s *stubClient) Disconnect(uint)     { s.disconnected++ }

func TestConnect_DisconnectsOnFailure(t *testing.T) {
	tests := []struct {
		name           string
		token          *stubToken
		wantErr        bool
		wantDisconnect int
	}{
		{"connected", &stubToken{completed: true}, false, 0},
		{"timeout", &stubToken{completed: false}, true, 1},
		{"refused", &stubToken{completed: true, err: errors.New("connection refused")}, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubClient{token: tt.token}
			err := connect(client, 10*time.Millisecond)
			if (err != nil) != tt.wantErr {
				t.Fatalf("connect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if client.disconnected != tt.wantDisconnect {
				t.Errorf("expected %d Disconnect calls, got %d", tt.wantDisconnect, client.disconnected)
			}
		})
	}
}
