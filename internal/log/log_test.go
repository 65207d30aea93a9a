package log

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestSetLevel(t *testing.T) {
	cases := []struct {
		in       string
		expected zapcore.Level
	}{
		{LevelDebug, zapcore.DebugLevel},
		{LevelInfo, zapcore.InfoLevel},
		{LevelWarn, zapcore.WarnLevel},
		{LevelError, zapcore.ErrorLevel},
		{"unknown", zapcore.InfoLevel},
	}
	t.Cleanup(func() { SetLevel(LevelInfo) })

	for _, c := range cases {
		SetLevel(c.in)
		if got := zapLevel.Level(); got != c.expected {
			t.Fatalf("SetLevel(%q) = %v; want %v", c.in, got, c.expected)
		}
	}
}

func TestHelpersDelegateToDefault(t *testing.T) {
	stub := &Recorder{}
	old := Default
	Default = stub
	t.Cleanup(func() { Default = old })

	Infof("question %d", 1)
	Errorf("failed %s", "q")
	Warnf("slow")
	Debugf("trace")

	if len(stub.Lines) != 4 {
		t.Fatalf("expected 4 recorded lines, got %d", len(stub.Lines))
	}
	if stub.Lines[1] != "ERROR failed q" {
		t.Fatalf("unexpected line: %q", stub.Lines[1])
	}
}
