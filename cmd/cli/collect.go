package main

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"openenterprise/paxcounter/telemetry"
)

const maxReportBody = 4096

var (
	collectListen string
	collectPath   string
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run a stand-in collector on the bench network",
	Long: `Accept the device's form-encoded reports and print them, and answer
the public address lookup with the caller's address. Point collector_url.text
at http://<host>:8080/report and pubip_url.text at http://<host>:8080/ip.`,
	Args: cobra.NoArgs,
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().StringVarP(&collectListen, "listen", "l", ":8080", "Listen address")
	collectCmd.Flags().StringVar(&collectPath, "path", "/report", "Report path")
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	c := &collector{out: os.Stdout, now: time.Now}
	srv := &http.Server{
		Addr:              collectListen,
		Handler:           c.handler(collectPath),
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Printf("Collecting on %s%s, public address on %s/ip\n", collectListen, collectPath, collectListen)
	return srv.ListenAndServe()
}

// collector prints every report it receives.
type collector struct {
	out io.Writer
	now func() time.Time

	mu      sync.Mutex
	reports []telemetry.Report
}

var (
	reportTime  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	reportLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	reportValue = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func (c *collector) handler(path string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+path, c.report)
	mux.HandleFunc("GET /ip", remoteAddr)
	return mux
}

func (c *collector) report(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxReportBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rep, err := telemetry.ParseReport(string(body))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c.mu.Lock()
	c.reports = append(c.reports, rep)
	fmt.Fprintf(c.out, "%s %s %s %s %s %s\n",
		reportTime.Render(c.now().Format(time.DateTime)),
		reportLabel.Render(rep.Device),
		"ssid="+rep.SSID,
		"ippub="+telemetry.FormatAddr(rep.PublicAddr),
		reportValue.Render(fmt.Sprintf("wifi=%d", rep.WiFi)),
		reportValue.Render(fmt.Sprintf("ble=%d", rep.BLE)),
	)
	c.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (c *collector) received() []telemetry.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]telemetry.Report(nil), c.reports...)
}

// remoteAddr answers with the caller's address as plain text.
func remoteAddr(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, host+"\n")
}
