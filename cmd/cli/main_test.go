package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	env := `# bench setup
PAXCOUNTER_PORT=/dev/ttyACM1
PAXCOUNTER_WIFI_PASSWORD="secret pass"
PAXCOUNTER_TEST_SINGLE='x'
not a pair
PAXCOUNTER_TEST_SET=from-file
`
	if err := os.WriteFile(path, []byte(env), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAXCOUNTER_PORT", "")
	t.Setenv("PAXCOUNTER_WIFI_PASSWORD", "")
	t.Setenv("PAXCOUNTER_TEST_SINGLE", "")
	t.Setenv("PAXCOUNTER_TEST_SET", "from-env")

	loadEnvFile(path)

	tests := []struct {
		key  string
		want string
	}{
		{"PAXCOUNTER_PORT", "/dev/ttyACM1"},
		{"PAXCOUNTER_WIFI_PASSWORD", "secret pass"},
		{"PAXCOUNTER_TEST_SINGLE", "x"},
		{"PAXCOUNTER_TEST_SET", "from-env"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := os.Getenv(tt.key); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestSerialPort(t *testing.T) {
	old := portName
	t.Cleanup(func() { portName = old })

	portName = ""
	t.Setenv(envPort, "")
	if _, err := serialPort(); err == nil {
		t.Error("expected error without port")
	}

	t.Setenv(envPort, "/dev/ttyACM0")
	if got, _ := serialPort(); got != "/dev/ttyACM0" {
		t.Errorf("serialPort() = %q from env", got)
	}

	portName = "/dev/cu.usbmodem1"
	if got, _ := serialPort(); got != "/dev/cu.usbmodem1" {
		t.Errorf("serialPort() = %q, flag should win", got)
	}
}
