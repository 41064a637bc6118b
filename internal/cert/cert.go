// Package cert reads and writes CURVE certificates in the czmq ZPL text format and
// applies their key material to sockets.
package cert

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/curve25519"
)

// KeySize is the length of a raw CURVE key
const KeySize = 32

// SecretSuffix is appended to a certificate path to find its secret half
const SecretSuffix = "_secret"

// ErrNoSecret is returned when key material is applied from a public-only certificate
var ErrNoSecret = errors.New("certificate has no secret key")

// KeyApplier receives the local key pair of a certificate
type KeyApplier interface {
	SetCurvePublicKey(key string) error
	SetCurveSecretKey(key string) error
}

// Certificate is a CURVE key pair plus free-form metadata
type Certificate struct {
	public    [KeySize]byte
	secret    [KeySize]byte
	hasSecret bool
	Metadata  map[string]string
}

// Generate creates a certificate with a fresh key pair
func Generate() (*Certificate, error) {
	c := &Certificate{hasSecret: true, Metadata: map[string]string{}}
	if _, err := rand.Read(c.secret[:]); err != nil {
		return nil, fmt.Errorf("failed to read random secret: %w", err)
	}
	pub, err := curve25519.X25519(c.secret[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	copy(c.public[:], pub)
	return c, nil
}

// Load reads the certificate at path. When path holds only the public key, the
// secret key is taken from path+"_secret" if that file exists.
func Load(path string) (*Certificate, error) {
	c, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if c.hasSecret {
		return c, nil
	}
	secret, err := loadFile(path + SecretSuffix)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return c, nil
	case err != nil:
		return nil, err
	}
	if secret.public != c.public {
		return nil, fmt.Errorf("certificate %s: secret file holds a different key pair", path)
	}
	c.secret = secret.secret
	c.hasSecret = secret.hasSecret
	return c, nil
}

func loadFile(path string) (*Certificate, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("certificate %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a ZPL certificate document
func Parse(data []byte) (*Certificate, error) {
	c := &Certificate{Metadata: map[string]string{}}
	var section, publicText, secretText string

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for lineNo := 1; scanner.Scan(); lineNo++ {
		raw := strings.TrimRight(scanner.Text(), " \t\r")
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indented := raw[0] == ' ' || raw[0] == '\t'
		if !indented {
			section = trimmed
			continue
		}
		key, value, ok := splitZPL(trimmed)
		if !ok {
			return nil, fmt.Errorf("line %d: malformed entry %q", lineNo, trimmed)
		}
		switch section {
		case "curve":
			switch key {
			case "public-key":
				publicText = value
			case "secret-key":
				secretText = value
			}
		case "metadata":
			c.Metadata[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if publicText == "" {
		return nil, fmt.Errorf("missing curve public-key")
	}
	if err := decodeKey(publicText, &c.public); err != nil {
		return nil, fmt.Errorf("public-key: %w", err)
	}
	if secretText != "" {
		if err := decodeKey(secretText, &c.secret); err != nil {
			return nil, fmt.Errorf("secret-key: %w", err)
		}
		c.hasSecret = true
	}
	return c, nil
}

func splitZPL(entry string) (key, value string, ok bool) {
	key, value, ok = strings.Cut(entry, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if n := len(value); n >= 2 && (value[0] == '"' || value[0] == '\'') && value[n-1] == value[0] {
		value = value[1 : n-1]
	}
	return key, value, key != ""
}

func decodeKey(text string, dst *[KeySize]byte) error {
	raw, err := z85Decode(text)
	if err != nil {
		return err
	}
	if len(raw) != KeySize {
		return fmt.Errorf("decoded key is %d bytes, want %d", len(raw), KeySize)
	}
	copy(dst[:], raw)
	return nil
}

// PublicText returns the Z85 encoded public key
func (c *Certificate) PublicText() string {
	s, _ := z85Encode(c.public[:])
	return s
}

// SecretText returns the Z85 encoded secret key, or "" for a public-only certificate
func (c *Certificate) SecretText() string {
	if !c.hasSecret {
		return ""
	}
	s, _ := z85Encode(c.secret[:])
	return s
}

// HasSecret reports whether the secret key was loaded
func (c *Certificate) HasSecret() bool {
	return c.hasSecret
}

// Apply sets the certificate's key pair on s
func (c *Certificate) Apply(s KeyApplier) error {
	if !c.hasSecret {
		return ErrNoSecret
	}
	if err := s.SetCurvePublicKey(c.PublicText()); err != nil {
		return fmt.Errorf("failed to set public key: %w", err)
	}
	if err := s.SetCurveSecretKey(c.SecretText()); err != nil {
		return fmt.Errorf("failed to set secret key: %w", err)
	}
	return nil
}

// Save writes the public certificate to path and, when present, the secret
// certificate to path+"_secret" with owner-only permissions.
func (c *Certificate) Save(path string) error {
	if err := os.WriteFile(path, c.render(false), 0o644); err != nil { // #nosec G306 - public half
		return fmt.Errorf("failed to write public certificate: %w", err)
	}
	if !c.hasSecret {
		return nil
	}
	if err := os.WriteFile(path+SecretSuffix, c.render(true), 0o600); err != nil {
		return fmt.Errorf("failed to write secret certificate: %w", err)
	}
	return nil
}

func (c *Certificate) render(withSecret bool) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "#   ****  Generated on %s by syslog-forwarder  ****\n", time.Now().Format("2006-01-02 15:04:05"))
	if withSecret {
		b.WriteString("#   ZeroMQ CURVE **Secret** Certificate\n")
		b.WriteString("#   DO NOT PROVIDE THIS FILE TO OTHER USERS nor change its permissions.\n\n")
	} else {
		b.WriteString("#   ZeroMQ CURVE Public Certificate\n")
		b.WriteString("#   Exchange securely, or use a secure mechanism to verify the contents\n")
		b.WriteString("#   of this file after exchange.\n\n")
	}
	b.WriteString("metadata\n")
	keys := make([]string, 0, len(c.Metadata))
	for k := range c.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "    %s = %q\n", k, c.Metadata[k])
	}
	b.WriteString("curve\n")
	fmt.Fprintf(&b, "    public-key = %q\n", c.PublicText())
	if withSecret {
		fmt.Fprintf(&b, "    secret-key = %q\n", c.SecretText())
	}
	return b.Bytes()
}

// PublicKeys returns the Z85 public keys found at path. A directory is scanned for
// certificate files (secret halves and hidden files are skipped, unreadable
// certificates are ignored); a regular file yields its single key.
func PublicKeys(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat certificate path: %w", err)
	}
	if !info.IsDir() {
		c, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		return []string{c.PublicText()}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate directory: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, SecretSuffix) {
			continue
		}
		c, err := loadFile(filepath.Join(path, name))
		if err != nil {
			continue
		}
		keys = append(keys, c.PublicText())
	}
	return keys, nil
}
