package template

import (
	"encoding/json"
	"testing"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/syslog-forwarder/internal/fault"
	"github.com/ibs-source/syslog-forwarder/internal/message"
)

func sampleRecord() *message.Record {
	r := message.New("1-0", "syslog", map[string]string{
		"timestamp": "2024-03-01T10:20:30.123456+01:00",
		"hostname":  "web-01",
		"appname":   "sshd",
		"procid":    "42",
		"facility":  "auth",
		"severity":  "info",
		"message":   "Accepted publickey for ops",
	})
	r.Received = time.Date(2024, 3, 1, 9, 20, 31, 0, time.UTC)
	return &r
}

func TestBuiltins(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)
	rec := sampleRecord()

	tests := []struct {
		name string
		want string
	}{
		{ForwardFormat, "<38>2024-03-01T10:20:30.123456+01:00 web-01 sshd[42]: Accepted publickey for ops"},
		{TraditionalForwardFormat, "<38>Mar  1 10:20:30 web-01 sshd[42]: Accepted publickey for ops"},
		{SyslogProtocol23Format, "<38>1 2024-03-01T10:20:30.123456+01:00 web-01 sshd 42 - - Accepted publickey for ops\n"},
		{TraditionalFileFormat, "Mar  1 10:20:30 web-01 sshd[42]: Accepted publickey for ops\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(tt.name, rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestForwardFormat_KeepsLeadingSpaceAndTruncatesTag(t *testing.T) {
	rec := message.New("", "", map[string]string{
		"syslogtag": "a-very-long-application-tag-name-over-limit:",
		"message":   " already spaced",
	})
	got, err := forwardFormat(&rec)
	require.NoError(t, err)
	assert.Contains(t, got, " a-very-long-application-tag-name already spaced")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		n    int
		in   string
		want string
	}{
		{"short", 8, "sshd", "sshd"},
		{"exact", 4, "sshd", "sshd"},
		{"ascii", 2, "sshd", "ss"},
		{"zero", 0, "sshd", ""},
		{"rune boundary", 3, "aé", "aé"},
		{"inside rune", 2, "aé", "a"},
		{"inside wide rune", 3, "a日本", "a"},
		{"after wide rune", 4, "a日本", "a日"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.n, tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestForwardFormat_TruncatesMultiByteTag(t *testing.T) {
	tag := strings.Repeat("a", maxTagLength-1) + "é:"
	rec := message.New("", "", map[string]string{"syslogtag": tag, "message": "m"})
	got, err := forwardFormat(&rec)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(got))
	assert.Contains(t, got, " "+strings.Repeat("a", maxTagLength-1)+" m")
}

func TestStdJSONFmt(t *testing.T) {
	out, err := stdJSONFmt(sampleRecord())
	require.NoError(t, err)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "Accepted publickey for ops", parsed["message"])
	assert.Equal(t, "web-01", parsed["fromhost"])
	assert.Equal(t, "auth", parsed["facility"])
	assert.Equal(t, "info", parsed["priority"])
	assert.Equal(t, "2024-03-01T09:20:30Z", parsed["timereported"])
	assert.Equal(t, "2024-03-01T09:20:31Z", parsed["timegenerated"])
}

func TestSyslogJSONFmt(t *testing.T) {
	out, err := syslogJSONFmt(sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, `{"timestamp":"2024-03-01T10:20:30.123456+01:00","hostname":"web-01","appname":"sshd",`+
		`"procid":"42","msgid":"-","facility":4,"severity":6,"message":"Accepted publickey for ops"}`, out)
}

func TestRecordJSONFmt(t *testing.T) {
	rec := message.New("", "", map[string]string{
		"object": `{"user":"ops","uid":1000}`,
		"raw":    "line with \"quotes\"",
	})
	out, err := recordJSONFmt(&rec)
	require.NoError(t, err)
	assert.Equal(t, `{"object":{"user":"ops","uid":1000},"raw":"line with \"quotes\""}`, out)

	rec = message.New("", "", map[string]string{"object": "not json"})
	out, err = recordJSONFmt(&rec)
	require.NoError(t, err)
	assert.Equal(t, `{"object":"not json"}`, out)
}

func TestUserTemplates(t *testing.T) {
	r, err := New(map[string]string{
		"hostkey": "{{.Hostname}}.",
		"sevkey":  "{{.SeverityText | upper}}/",
		"json":    `{"msg":"{{json .Message}}","app":"{{.Field "appname"}}","at":"{{rfc3339 .Timestamp}}"}`,
	})
	require.NoError(t, err)
	rec := sampleRecord()

	out, err := r.RenderAll([]string{"hostkey", "sevkey"}, rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"web-01.", "INFO/"}, out)

	js, err := r.Render("json", rec)
	require.NoError(t, err)
	assert.Equal(t, `{"msg":"Accepted publickey for ops","app":"sshd","at":"2024-03-01T10:20:30.123456+01:00"}`, js)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(map[string]string{ForwardFormat: "{{.Hostname}}"})
	assert.ErrorIs(t, err, fault.ErrConfig)

	_, err = New(map[string]string{"broken": "{{.Hostname"})
	assert.ErrorIs(t, err, fault.ErrConfig)

	_, err = New(map[string]string{"": "x"})
	assert.ErrorIs(t, err, fault.ErrConfig)
}

func TestCheckAndUnknown(t *testing.T) {
	r, err := New(map[string]string{"k": "x"})
	require.NoError(t, err)

	assert.NoError(t, r.Check(ForwardFormat, "k"))
	assert.ErrorIs(t, r.Check("k", "missing"), fault.ErrConfig)

	_, err = r.RenderAll([]string{ForwardFormat, "missing"}, sampleRecord())
	assert.ErrorIs(t, err, fault.ErrConfig)
	assert.Contains(t, r.Names(), StdJSONFmt)
}

func TestRender_ExecutionError(t *testing.T) {
	r, err := New(map[string]string{"bad": `{{index .Fields "x" "y"}}`})
	require.NoError(t, err)

	_, err = r.Render("bad", sampleRecord())
	assert.Error(t, err)
}
