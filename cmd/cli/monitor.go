package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var monitorPlain bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Follow the device's serial log",
	Long: `Print the device's serial output with log levels and display frames
coloured. Display frames are the "* ..." lines mirrored from the TFT; a
"* [!]" line marks a frame drawn in the alert colour.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorPlain, "plain", false, "Disable colours")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, info, err := openConsole()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Connection: %s\n", info)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	s := newStyler(!monitorPlain && term.IsTerminal(int(os.Stdout.Fd())))
	return follow(conn, os.Stdout, s)
}

// follow copies lines from r to w through s until r ends.
func follow(r io.Reader, w io.Writer, s styler) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fmt.Fprintln(w, s.line(strings.TrimRight(sc.Text(), "\r")))
	}
	if err := sc.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}

type styler struct {
	enabled bool
	debug   lipgloss.Style
	warn    lipgloss.Style
	errs    lipgloss.Style
	frame   lipgloss.Style
	alert   lipgloss.Style
}

func newStyler(enabled bool) styler {
	return styler{
		enabled: enabled,
		debug:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		errs:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		frame:   lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		alert:   lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("9")),
	}
}

// kind classifies one console line.
func kind(line string) string {
	switch {
	case strings.HasPrefix(line, "* [!]"):
		return "alert"
	case strings.HasPrefix(line, "* "):
		return "frame"
	case strings.Contains(line, "level=ERROR"):
		return "error"
	case strings.Contains(line, "level=WARN"):
		return "warn"
	case strings.Contains(line, "level=DEBUG"):
		return "debug"
	default:
		return "plain"
	}
}

func (s styler) line(line string) string {
	if !s.enabled {
		return line
	}
	switch kind(line) {
	case "alert":
		return s.alert.Render(line)
	case "frame":
		return s.frame.Render(line)
	case "error":
		return s.errs.Render(line)
	case "warn":
		return s.warn.Render(line)
	case "debug":
		return s.debug.Render(line)
	default:
		return line
	}
}
