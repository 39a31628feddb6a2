package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestConfigureJSON(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	if err := Configure(l, Options{Level: "debug", Format: "json", Output: &buf}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	l.WithField("slot", 2).Debug("bound")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if entry["msg"] != "bound" || entry["level"] != "debug" || entry["slot"] != float64(2) {
		t.Errorf("entry = %v", entry)
	}
}

func TestConfigureRejectsBadInput(t *testing.T) {
	l := logrus.New()
	if err := Configure(l, Options{Level: "loud"}); err == nil {
		t.Error("Configure() accepted an unknown level")
	}
	if err := Configure(l, Options{Format: "xml"}); err == nil {
		t.Error("Configure() accepted an unknown format")
	}
}

func TestConfigureLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	if err := Configure(l, Options{Level: "warn", Output: &buf}); err != nil {
		t.Fatal(err)
	}
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
}
