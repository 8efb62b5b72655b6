package logger

import "testing"

type recordLogger struct {
	lines []string
}

func (r *recordLogger) Debug(msg string) { r.lines = append(r.lines, "D "+msg) }
func (r *recordLogger) Info(msg string)  { r.lines = append(r.lines, "I "+msg) }
func (r *recordLogger) Warn(msg string)  { r.lines = append(r.lines, "W "+msg) }
func (r *recordLogger) Error(msg string) { r.lines = append(r.lines, "E "+msg) }

func TestSetRoutesMessages(t *testing.T) {
	prev := Get()
	defer Set(prev)

	rec := &recordLogger{}
	Set(rec)
	Debug("a")
	Warn("b")
	Error("c")

	want := []string{"D a", "W b", "E c"}
	if len(rec.lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(rec.lines), len(want))
	}
	for i := range want {
		if rec.lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, rec.lines[i], want[i])
		}
	}
}

func TestSetNilSilences(t *testing.T) {
	prev := Get()
	defer Set(prev)

	Set(nil)
	if _, ok := Get().(*nopLogger); !ok {
		t.Errorf("Set(nil) installed %T, want *nopLogger", Get())
	}
	Info("dropped")
}

func TestItoa(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{7, "7"},
		{1999, "1999"},
		{-42, "-42"},
		{65535, "65535"},
	}
	for _, tt := range tests {
		if got := Itoa(tt.in); got != tt.want {
			t.Errorf("Itoa(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
