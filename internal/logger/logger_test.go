package logger

import (
	"fmt"
	"strings"
	"testing"
)

type recorder struct {
	lines []string
}

func (r *recorder) record(level, msg string, keyvals ...any) {
	r.lines = append(r.lines, fmt.Sprint(level, " ", msg, keyvals))
}

func (r *recorder) Debug(m string, kv ...any) { r.record("DEBUG", m, kv...) }
func (r *recorder) Info(m string, kv ...any)  { r.record("INFO", m, kv...) }
func (r *recorder) Warn(m string, kv ...any)  { r.record("WARN", m, kv...) }
func (r *recorder) Error(m string, kv ...any) { r.record("ERROR", m, kv...) }
func (r *recorder) Fatal(m string, kv ...any) { r.record("FATAL", m, kv...) }

func TestDispatchToAllInstances(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Init(a, b)
	t.Cleanup(func() { Init() })

	Info("stored", "recording_id", "abc")
	Warn("slow")

	for i, r := range []*recorder{a, b} {
		if len(r.lines) != 2 {
			t.Fatalf("instance %d got %d lines, want 2", i, len(r.lines))
		}
		if !strings.Contains(r.lines[0], "recording_id") {
			t.Errorf("instance %d line = %q, want keyvals forwarded", i, r.lines[0])
		}
	}
}

func TestLogBufferKeepsTail(t *testing.T) {
	buf := NewLogBuffer(3)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(buf, "line %d\n", i)
	}
	got := buf.Lines()
	want := []string{"line 2", "line 3", "line 4"}
	if len(got) != len(want) {
		t.Fatalf("Lines() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Lines()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConsoleLoggerWritesToOutput(t *testing.T) {
	buf := NewLogBuffer(10)
	c := NewConsoleLogger(ConsoleLoggerParams{Output: buf})
	c.Info("pipeline started", "run_id", "r1")
	c.Debug("hidden")

	lines := buf.Lines()
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 (debug filtered): %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "pipeline started") || !strings.Contains(lines[0], "run_id=r1") {
		t.Errorf("line = %q", lines[0])
	}
}
