package logging

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	for _, tc := range []struct {
		format string
		level  string
	}{
		{"json", "info"},
		{"console", "debug"},
		{"JSON", "warn"},
	} {
		logger, err := New(tc.format, tc.level)
		if err != nil {
			t.Fatalf("New(%q, %q) error = %v", tc.format, tc.level, err)
		}
		if logger == nil {
			t.Fatalf("New(%q, %q) returned nil logger", tc.format, tc.level)
		}
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New("json", "chatty"); err == nil {
		t.Fatalf("New() error = nil, want level parse error")
	}
}

func TestTruncate(t *testing.T) {
	for _, tc := range []struct {
		in    string
		limit int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 5, "hello..."},
		{"  padded  ", 20, "padded"},
		{"anything", 0, ""},
	} {
		if got := Truncate(tc.in, tc.limit); got != tc.want {
			t.Fatalf("Truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}

func TestPreviewRedactsAndCollapses(t *testing.T) {
	in := "reach me at   jane@example.com \n anytime"
	got := Preview(in, 80)
	if strings.Contains(got, "jane@example.com") {
		t.Fatalf("Preview() leaked email: %q", got)
	}
	if strings.Contains(got, "\n") || strings.Contains(got, "  ") {
		t.Fatalf("Preview() did not collapse whitespace: %q", got)
	}
}
