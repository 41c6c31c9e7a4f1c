package config

import (
	"testing"
	"time"
)

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Duration
	}{
		{"empty uses default", "", DefaultTimeout},
		{"whitespace uses default", "  \n", DefaultTimeout},
		{"bare milliseconds", "60000", 60 * time.Second},
		{"bare milliseconds trailing newline", "1500\n", 1500 * time.Millisecond},
		{"go duration", "90s", 90 * time.Second},
		{"go duration minutes", "2m", 2 * time.Minute},
		{"zero falls back", "0", DefaultTimeout},
		{"negative falls back", "-5s", DefaultTimeout},
		{"garbage falls back", "soon", DefaultTimeout},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseTimeout(tc.in); got != tc.want {
				t.Errorf("ParseTimeout(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseHTTPURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain http", "http://ifconfig.me/ip", "http://ifconfig.me/ip", false},
		{"with port and newline", "http://192.168.1.10:8080/report\n", "http://192.168.1.10:8080/report", false},
		{"https rejected", "https://script.google.com/macros/s/x/exec", "", true},
		{"empty", "", "", true},
		{"no host", "http:///path", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseHTTPURL(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseHTTPURL(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ParseHTTPURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	got := ParseList(" time.cloudflare.com, ntp.ubiobio.cl\npool.ntp.org ,")
	want := []string{"time.cloudflare.com", "ntp.ubiobio.cl", "pool.ntp.org"}
	if len(got) != len(want) {
		t.Fatalf("ParseList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParseList()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := ParseList("  "); got != nil {
		t.Errorf("ParseList(blank) = %v, want nil", got)
	}
}

func TestDefaults(t *testing.T) {
	if servers := NTPServers(); len(servers) < 2 {
		t.Errorf("NTPServers() = %v, want primary and at least one fallback", servers)
	}
	if _, err := PublicAddrURL(); err != nil {
		t.Errorf("PublicAddrURL() err = %v", err)
	}
	if TimeZone() == "" {
		t.Error("TimeZone() is empty")
	}
	if DeviceName() == "" {
		t.Error("DeviceName() is empty")
	}
}
