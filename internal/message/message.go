// Package message provides the syslog record model shared by the sources, the
// template renderer and the pipeline.
package message

import (
	"strconv"
	"strings"
	"time"
)

// Record is one syslog message read from a source. Fields holds every source field
// verbatim; the accessors derive the syslog header values from well-known names.
type Record struct {
	// ID is the source position used for acknowledgement (Redis entry ID); empty for MQTT
	ID string
	// Stream is the Redis stream the record came from
	Stream   string
	Fields   map[string]string
	Received time.Time
}

// Batch is an envelope returned by record fetchers
type Batch struct {
	Items []Record
}

// Syslog defaults applied when a record carries no priority
const (
	DefaultFacility = 1 // user
	DefaultSeverity = 5 // notice
)

var facilityNames = []string{
	"kern", "user", "mail", "daemon", "auth", "syslog", "lpr", "news",
	"uucp", "cron", "authpriv", "ftp", "ntp", "security", "console", "solaris-cron",
	"local0", "local1", "local2", "local3", "local4", "local5", "local6", "local7",
}

var severityNames = []string{
	"emerg", "alert", "crit", "err", "warning", "notice", "info", "debug",
}

// New creates a record received now
func New(id, stream string, fields map[string]string) Record {
	if fields == nil {
		fields = map[string]string{}
	}
	return Record{ID: id, Stream: stream, Fields: fields, Received: time.Now()}
}

// Field returns the first non-empty value among names
func (r *Record) Field(names ...string) string {
	for _, n := range names {
		if v := r.Fields[n]; v != "" {
			return v
		}
	}
	return ""
}

// Hostname returns the originating host, "-" when unknown
func (r *Record) Hostname() string {
	return orNil(r.Field("hostname", "host", "fromhost"))
}

// AppName returns the application name, "-" when unknown
func (r *Record) AppName() string {
	return orNil(r.Field("appname", "app_name", "programname", "program"))
}

// ProcID returns the process id, "-" when unknown
func (r *Record) ProcID() string {
	return orNil(r.Field("procid", "pid"))
}

// MsgID returns the RFC 5424 message id, "-" when unknown
func (r *Record) MsgID() string {
	return orNil(r.Field("msgid"))
}

// StructuredData returns the RFC 5424 structured data, "-" when absent
func (r *Record) StructuredData() string {
	return orNil(r.Field("structured_data", "sd"))
}

// Message returns the free-form message text
func (r *Record) Message() string {
	return r.Field("message", "msg")
}

// Tag returns the traditional syslog tag, e.g. "sshd[42]:"
func (r *Record) Tag() string {
	if tag := r.Field("syslogtag", "tag"); tag != "" {
		return tag
	}
	app := r.AppName()
	if pid := r.ProcID(); pid != "-" {
		return app + "[" + pid + "]:"
	}
	return app + ":"
}

// Timestamp returns the reported time, falling back to the receive time
func (r *Record) Timestamp() time.Time {
	v := r.Field("timestamp", "timereported", "time", "@timestamp")
	if v == "" {
		return r.Received
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		whole := int64(secs)
		return time.Unix(whole, int64((secs-float64(whole))*1e9))
	}
	return r.Received
}

// Facility returns the numeric facility (0-23)
func (r *Record) Facility() int {
	if pri, ok := r.pri(); ok {
		return pri / 8
	}
	if f, ok := lookup(r.Field("facility"), facilityNames); ok {
		return f
	}
	return DefaultFacility
}

// Severity returns the numeric severity (0-7)
func (r *Record) Severity() int {
	if pri, ok := r.pri(); ok {
		return pri % 8
	}
	if s, ok := lookup(r.Field("severity", "level"), severityNames); ok {
		return s
	}
	return DefaultSeverity
}

// PRI returns facility*8 + severity
func (r *Record) PRI() int {
	return r.Facility()*8 + r.Severity()
}

// FacilityText returns the facility keyword
func (r *Record) FacilityText() string {
	return facilityNames[r.Facility()]
}

// SeverityText returns the severity keyword
func (r *Record) SeverityText() string {
	return severityNames[r.Severity()]
}

func (r *Record) pri() (int, bool) {
	v := r.Field("pri", "priority")
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.Trim(v, "<>"))
	if err != nil || n < 0 || n > 191 {
		return 0, false
	}
	return n, true
}

// lookup accepts a number in range or a keyword from names
func lookup(v string, names []string) (int, bool) {
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n, n >= 0 && n < len(names)
	}
	v = strings.ToLower(v)
	switch v {
	case "warn":
		v = "warning"
	case "error":
		v = "err"
	case "emergency", "panic":
		v = "emerg"
	case "critical":
		v = "crit"
	}
	for i, name := range names {
		if name == v {
			return i, true
		}
	}
	return 0, false
}

func orNil(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
