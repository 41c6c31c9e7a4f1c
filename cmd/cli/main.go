// Command paxcounter-cli is the bench companion for the paxcounter
// firmware: it follows the serial log, provisions Wi-Fi, stands in for the
// collector and builds the USB disk image.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"openenterprise/paxcounter/version"
)

const (
	defaultBaud = 115200
	envPort     = "PAXCOUNTER_PORT"
	envPassword = "PAXCOUNTER_WIFI_PASSWORD"
)

var (
	// Serial connection flags
	portName string
	baudRate int
)

var rootCmd = &cobra.Command{
	Use:   "paxcounter-cli",
	Short: "Bench tool for the paxcounter firmware",
	Long: `paxcounter-cli talks to a paxcounter over its USB serial console and
stands in for the services it reports to.

The serial port can be given with --port or the PAXCOUNTER_PORT environment
variable; both may also be set in a .env file in the current directory.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device (default $"+envPort+")")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", defaultBaud, "Baud rate")
}

func main() {
	// Load .env file before parsing flags
	loadEnvFile(".env")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// serialPort returns the --port flag or the environment default.
func serialPort() (string, error) {
	if portName != "" {
		return portName, nil
	}
	if p := os.Getenv(envPort); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("no serial port: use --port or set %s", envPort)
}

// loadEnvFile loads environment variables from a .env file. Variables that
// are already set win.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // File doesn't exist or can't be read, that's fine
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Remove quotes if present
		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
