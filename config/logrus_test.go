package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestLogError_WritesCloudLoggingFields(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetFormatter(newJSONFormatter())
	logger.SetOutput(&buf)

	LogError(logger, "ledger", "AllocateFunds", "store.Commit", map[string]interface{}{"request_id": 7}, errors.New("deadlock found"))

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if line["severity"] != "error" || line["message"] != "deadlock found" {
		t.Fatalf("unexpected severity/message: %v", line)
	}
	if line["module"] != "ledger" || line["funcName"] != "AllocateFunds" || line["context"] != "store.Commit" {
		t.Fatalf("unexpected location fields: %v", line)
	}
	if _, ok := line["data"]; !ok {
		t.Fatalf("expected data field: %v", line)
	}
}

func TestLogLevelFromEnv(t *testing.T) {
	cases := map[string]logrus.Level{
		"":        logrus.InfoLevel,
		"debug":   logrus.DebugLevel,
		"WARNING": logrus.WarnLevel,
		"loud":    logrus.InfoLevel,
	}
	for raw, expected := range cases {
		t.Setenv("LOG_LEVEL", raw)
		if got := logLevelFromEnv(); got != expected {
			t.Fatalf("LOG_LEVEL=%q expected %s, got %s", raw, expected, got)
		}
	}
}
