package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"openenterprise/paxcounter/credentials"
	"openenterprise/paxcounter/provision"
)

var provisionWait time.Duration

var (
	errJoinFailed  = errors.New("device could not join the network")
	errNoAnswer    = errors.New("no answer from device")
	errPasswordTTY = errors.New("no password: set " + envPassword + " or run in a terminal")
)

var provisionCmd = &cobra.Command{
	Use:   "provision <ssid>",
	Short: "Send Wi-Fi credentials to a device waiting for provisioning",
	Long: `Send "wifi <ssid> <password>" to the device console and wait for it to
join. The password is read from PAXCOUNTER_WIFI_PASSWORD, or prompted for
without echo. It is intentionally not a flag to keep it out of shell history.
An open network needs an empty password.`,
	Args: cobra.ExactArgs(1),
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().DurationVar(&provisionWait, "wait", 30*time.Second, "How long to wait for the device to join")
	rootCmd.AddCommand(provisionCmd)
}

func runProvision(cmd *cobra.Command, args []string) error {
	pass, err := wifiPassword()
	if err != nil {
		return err
	}
	creds := credentials.Credentials{SSID: args[0], Password: pass}
	if len(creds.SSID) > credentials.MaxSSID || len(creds.Password) > credentials.MaxPassword {
		return credentials.ErrTooLong
	}

	conn, info, err := openConsole()
	if err != nil {
		return err
	}
	defer conn.Close()
	fmt.Printf("Connection: %s\n", info)

	if _, err := io.WriteString(conn, provision.FormatLine(creds)+"\r\n"); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	fmt.Printf("Sent credentials for %q, waiting up to %v...\n", creds.SSID, provisionWait)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	if err := awaitJoin(lines, creds.SSID, time.After(provisionWait)); err != nil {
		return err
	}
	fmt.Println("Device joined and saved the network.")
	return nil
}

// awaitJoin watches the device log for the outcome of joining ssid.
func awaitJoin(lines <-chan string, ssid string, timeout <-chan time.Time) error {
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return errNoAnswer
			}
			if !strings.Contains(line, "provision:") {
				continue
			}
			if !strings.Contains(line, "ssid="+ssid) && !strings.Contains(line, "ssid="+fmt.Sprintf("%q", ssid)) {
				continue
			}
			switch {
			case strings.Contains(line, "provision:joined"):
				return nil
			case strings.Contains(line, "provision:join-failed"):
				return errJoinFailed
			}
		case <-timeout:
			return errNoAnswer
		}
	}
}

// wifiPassword reads the password from the environment or the terminal.
func wifiPassword() (string, error) {
	if pw, ok := os.LookupEnv(envPassword); ok {
		return pw, nil
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", errPasswordTTY
	}
	fmt.Fprint(os.Stderr, "Wi-Fi password: ")
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after password
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytes.TrimRight(pw, "\r\n")), nil
}
