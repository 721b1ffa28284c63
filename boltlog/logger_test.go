package boltlog_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/gobolt/driver/boltlog"
)

func TestForAttachesCorrelationField(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.Out = &buf
	base.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	base.SetLevel(logrus.DebugLevel)

	boltlog.For(base, "conn-123").Debugf("hello")

	if !strings.Contains(buf.String(), "conn=conn-123") {
		t.Fatalf("expected correlation field in log line, got %q", buf.String())
	}
}

func TestForFallsBackToDefaultWhenNilLogger(t *testing.T) {
	entry := boltlog.For(nil, "conn-456")
	if entry == nil {
		t.Fatal("expected a non-nil entry from the default logger")
	}
}
