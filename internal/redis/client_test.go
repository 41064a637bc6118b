package redis

import (
	"testing"

	"github.com/redis/go-redis/v9"
)

// Stream I/O needs a live server and is covered by integration_test.go

func TestGroupName(t *testing.T) {
	if got := GroupName("syslog-stream"); got != "group-syslog-stream" {
		t.Errorf("expected group-syslog-stream, got %s", got)
	}
}

func TestToRecords(t *testing.T) {
	msgs := []redis.XMessage{
		{ID: "1-0", Values: map[string]interface{}{"message": "first", "hostname": "a"}},
		{ID: "2-0", Values: map[string]interface{}{"message": "second", "pri": 13}},
	}

	records := toRecords("syslog", msgs)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "1-0" || records[0].Stream != "syslog" {
		t.Errorf("unexpected position %s/%s", records[0].Stream, records[0].ID)
	}
	if records[0].Hostname() != "a" {
		t.Errorf("expected hostname a, got %s", records[0].Hostname())
	}
	if records[1].PRI() != 13 {
		t.Errorf("expected PRI 13, got %d", records[1].PRI())
	}
}

func TestGroupFallsBackToNaming(t *testing.T) {
	c := &Client{groups: map[string]string{"known": "custom"}}
	if c.group("known") != "custom" {
		t.Errorf("expected registered group")
	}
	if c.group("other") != "group-other" {
		t.Errorf("expected derived group, got %s", c.group("other"))
	}
}
