package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"* [!] WiFi is Not Connected...", "alert"},
		{"*  pax-01", "frame"},
		{`time=2026-05-01T12:00:00Z level=ERROR msg=boot:fatal reason=wifi-timeout`, "error"},
		{`time=2026-05-01T12:00:00Z level=WARN msg=restart:requested`, "warn"},
		{`time=2026-05-01T12:00:00Z level=DEBUG msg=state:running`, "debug"},
		{`time=2026-05-01T12:00:00Z level=INFO msg=report:cycle`, "plain"},
		{"========================================", "plain"},
		{"", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.line, func(t *testing.T) {
			if got := kind(tt.line); got != tt.want {
				t.Errorf("kind(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestFollowPlain(t *testing.T) {
	in := "level=INFO msg=init:complete\r\n* [!] SNTP timed out\r\npartial"
	var out bytes.Buffer
	if err := follow(strings.NewReader(in), &out, newStyler(false)); err != nil {
		t.Fatalf("follow() error = %v", err)
	}
	want := "level=INFO msg=init:complete\n* [!] SNTP timed out\npartial\n"
	if got := out.String(); got != want {
		t.Errorf("follow() wrote %q, want %q", got, want)
	}
}

func TestStylerKeepsText(t *testing.T) {
	s := newStyler(true)
	for _, line := range []string{"* [!] alert", "* frame", "level=ERROR x", "plain"} {
		if got := s.line(line); !strings.Contains(got, line) {
			t.Errorf("line(%q) = %q, lost the text", line, got)
		}
	}
}
