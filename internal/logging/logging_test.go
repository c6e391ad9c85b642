package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup(&buf, "debug", "json"); err != nil {
		t.Fatal(err)
	}
	defer Setup(&bytes.Buffer{}, "info", "text")

	Component("runner").WithField("port", 7860).Info("ready")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["component"] != "runner" {
		t.Errorf("component = %v, want runner", entry["component"])
	}
	if entry["msg"] != "ready" {
		t.Errorf("msg = %v, want ready", entry["msg"])
	}
}

func TestSetupRejectsBadInput(t *testing.T) {
	if err := Setup(&bytes.Buffer{}, "loud", "text"); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := Setup(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestLeveledFields(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&log.JSONFormatter{})

	l := Leveled{Entry: log.NewEntry(logger)}
	l.Warn("retrying", "attempt", 2, "dangling")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["attempt"] != float64(2) {
		t.Errorf("attempt = %v, want 2", entry["attempt"])
	}
	if entry["extra"] != "dangling" {
		t.Errorf("extra = %v, want dangling", entry["extra"])
	}
}
