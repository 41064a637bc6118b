package template

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ibs-source/syslog-forwarder/internal/message"
	"github.com/ibs-source/syslog-forwarder/pkg/jsonfast"
)

// Built-in template names
const (
	ForwardFormat            = "RSYSLOG_ForwardFormat"
	TraditionalForwardFormat = "RSYSLOG_TraditionalForwardFormat"
	SyslogProtocol23Format   = "RSYSLOG_SyslogProtocol23Format"
	TraditionalFileFormat    = "RSYSLOG_TraditionalFileFormat"
	StdJSONFmt               = "StdJSONFmt"
	SyslogJSONFmt            = "SyslogJSONFmt"
	RecordJSONFmt            = "RecordJSONFmt"
)

const (
	rfc3339Layout     = "2006-01-02T15:04:05.999999-07:00"
	traditionalLayout = "Jan _2 15:04:05"
	maxTagLength      = 32
)

var builtins = map[string]Func{
	ForwardFormat:            forwardFormat,
	TraditionalForwardFormat: traditionalForwardFormat,
	SyslogProtocol23Format:   syslogProtocol23Format,
	TraditionalFileFormat:    traditionalFileFormat,
	StdJSONFmt:               stdJSONFmt,
	SyslogJSONFmt:            syslogJSONFmt,
	RecordJSONFmt:            recordJSONFmt,
}

var builders = sync.Pool{New: func() any { return jsonfast.New(512) }}

// renderJSON fills a pooled builder and copies the result out
func renderJSON(fill func(b *jsonfast.Builder)) string {
	b := builders.Get().(*jsonfast.Builder)
	b.Reset()
	b.BeginObject()
	fill(b)
	b.EndObject()
	out := string(b.Bytes())
	builders.Put(b)
	return out
}

// <PRI>TIMESTAMP HOSTNAME TAG MSG
func forwardFormat(r *message.Record) (string, error) {
	return header(r, r.Timestamp().Format(rfc3339Layout)) + spIfNoFirstSpace(r.Message()), nil
}

func traditionalForwardFormat(r *message.Record) (string, error) {
	return header(r, r.Timestamp().Format(traditionalLayout)) + spIfNoFirstSpace(r.Message()), nil
}

func header(r *message.Record, ts string) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(strconv.Itoa(r.PRI()))
	b.WriteByte('>')
	b.WriteString(ts)
	b.WriteByte(' ')
	b.WriteString(r.Hostname())
	b.WriteByte(' ')
	b.WriteString(truncate(maxTagLength, r.Tag()))
	return b.String()
}

// <PRI>1 TIMESTAMP HOSTNAME APP-NAME PROCID MSGID STRUCTURED-DATA MSG
func syslogProtocol23Format(r *message.Record) (string, error) {
	return "<" + strconv.Itoa(r.PRI()) + ">1 " +
		r.Timestamp().Format(rfc3339Layout) + " " +
		r.Hostname() + " " +
		r.AppName() + " " +
		r.ProcID() + " " +
		r.MsgID() + " " +
		r.StructuredData() + " " +
		r.Message() + "\n", nil
}

func traditionalFileFormat(r *message.Record) (string, error) {
	return r.Timestamp().Format(traditionalLayout) + " " +
		r.Hostname() + " " +
		r.Tag() +
		spIfNoFirstSpace(strings.TrimSuffix(r.Message(), "\n")) + "\n", nil
}

func stdJSONFmt(r *message.Record) (string, error) {
	return renderJSON(func(b *jsonfast.Builder) {
		b.AddStringField("message", r.Message())
		b.AddStringField("fromhost", r.Hostname())
		b.AddStringField("facility", r.FacilityText())
		b.AddStringField("priority", r.SeverityText())
		b.AddTimeRFC3339Field("timereported", r.Timestamp())
		b.AddTimeRFC3339Field("timegenerated", r.Received)
	}), nil
}

// syslogJSONFmt carries the RFC 5424 header with numeric facility and severity
func syslogJSONFmt(r *message.Record) (string, error) {
	return renderJSON(func(b *jsonfast.Builder) {
		b.AddStringField("timestamp", r.Timestamp().Format(rfc3339Layout))
		b.AddStringField("hostname", r.Hostname())
		b.AddStringField("appname", r.AppName())
		b.AddStringField("procid", r.ProcID())
		b.AddStringField("msgid", r.MsgID())
		b.AddIntField("facility", r.Facility())
		b.AddIntField("severity", r.Severity())
		b.AddStringField("message", r.Message())
	}), nil
}

// recordJSONFmt serializes every source field; "object" is embedded as raw JSON
// when it holds a JSON document
func recordJSONFmt(r *message.Record) (string, error) {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return renderJSON(func(b *jsonfast.Builder) {
		for _, k := range keys {
			v := r.Fields[k]
			if k == "object" && message.IsJSON(v) {
				b.AddRawJSONField(k, []byte(v))
				continue
			}
			b.AddStringField(k, v)
		}
	}), nil
}

func spIfNoFirstSpace(msg string) string {
	if strings.HasPrefix(msg, " ") {
		return msg
	}
	return " " + msg
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(n int, s string) string {
	if len(s) <= n {
		return s
	}
	if n <= 0 {
		return ""
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func formatTime(layout string, t time.Time) string {
	return t.Format(layout)
}
