package httpc

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"runtime"
	"strings"
	"testing"
)

// pipeDialer answers every Dial with one end of a net.Pipe served by handle.
type pipeDialer struct {
	handle func(t *testing.T, req *http.Request, body []byte, conn net.Conn)
	t      *testing.T

	host string
	port uint16
}

func (d *pipeDialer) Dial(ctx context.Context, host string, port uint16) (io.ReadWriteCloser, error) {
	d.host, d.port = host, port
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		req, err := http.ReadRequest(bufio.NewReader(server))
		if err != nil {
			d.t.Errorf("server ReadRequest: %v", err)
			return
		}
		body, _ := io.ReadAll(req.Body)
		d.handle(d.t, req, body, server)
	}()
	return client, nil
}

func reply(raw string) func(*testing.T, *http.Request, []byte, net.Conn) {
	return func(_ *testing.T, _ *http.Request, _ []byte, conn net.Conn) {
		io.WriteString(conn, raw)
	}
}

type failDialer struct{}

func (failDialer) Dial(context.Context, string, uint16) (io.ReadWriteCloser, error) {
	return nil, errors.New("no route")
}

func TestGet(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		status  int
		body    string
		trunc   bool
		maxBody int
	}{
		{
			name:   "content length",
			raw:    "HTTP/1.1 200 OK\r\nContent-Length: 11\r\n\r\n203.0.113.7",
			status: 200, body: "203.0.113.7",
		},
		{
			name:   "read to eof",
			raw:    "HTTP/1.0 200 OK\r\nContent-Type: text/plain\r\n\r\n198.51.100.2\n",
			status: 200, body: "198.51.100.2\n",
		},
		{
			name:   "chunked",
			raw:    "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n4\r\n10.0\r\n4;ext=1\r\n.0.1\r\n0\r\nX-Trailer: y\r\n\r\n",
			status: 200, body: "10.0.0.1",
		},
		{
			name:   "not found",
			raw:    "HTTP/1.1 404 Not Found\r\nContent-Length: 3\r\n\r\nnope",
			status: 404, body: "nop",
		},
		{
			name:   "no content",
			raw:    "HTTP/1.1 204 No Content\r\n\r\n",
			status: 204, body: "",
		},
		{
			name:   "truncated",
			raw:    "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\n0123456789",
			status: 200, body: "0123", trunc: true, maxBody: 4,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := &pipeDialer{t: t, handle: reply(tc.raw)}
			c := &Client{Dialer: d, MaxBody: tc.maxBody}
			resp, err := c.Get(context.Background(), "http://ifconfig.me/ip")
			if err != nil {
				t.Fatalf("Get() err = %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, tc.status)
			}
			if string(resp.Body) != tc.body {
				t.Errorf("Body = %q, want %q", resp.Body, tc.body)
			}
			if resp.Truncated != tc.trunc {
				t.Errorf("Truncated = %v", resp.Truncated)
			}
			if d.host != "ifconfig.me" || d.port != 80 {
				t.Errorf("dialed %s:%d", d.host, d.port)
			}
		})
	}
}

func TestPostForm(t *testing.T) {
	var got struct {
		method, path, host, ctype, agent, conn string
		body                                   string
	}
	d := &pipeDialer{t: t, handle: func(t *testing.T, req *http.Request, body []byte, conn net.Conn) {
		got.method = req.Method
		got.path = req.URL.RequestURI()
		got.host = req.Host
		got.ctype = req.Header.Get("Content-Type")
		got.agent = req.Header.Get("User-Agent")
		got.conn = req.Header.Get("Connection")
		got.body = string(body)
		io.WriteString(conn, "HTTP/1.1 302 Found\r\nLocation: /x\r\nContent-Length: 0\r\n\r\n")
	}}
	c := &Client{Dialer: d}
	resp, err := c.PostForm(context.Background(), "http://collector.local:8080/report?v=1", []byte("wifi=5&ble=3"))
	if err != nil {
		t.Fatalf("PostForm() err = %v", err)
	}
	if resp.StatusCode != 302 || resp.Header["location"] != "/x" {
		t.Errorf("resp = %+v", resp)
	}
	if got.method != "POST" || got.path != "/report?v=1" || got.host != "collector.local:8080" {
		t.Errorf("request line = %s %s host %s", got.method, got.path, got.host)
	}
	if got.ctype != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", got.ctype)
	}
	if got.agent != DefaultAgent || got.conn != "close" {
		t.Errorf("User-Agent = %q, Connection = %q", got.agent, got.conn)
	}
	if got.body != "wifi=5&ble=3" {
		t.Errorf("body = %q", got.body)
	}
	if d.port != 8080 {
		t.Errorf("port = %d", d.port)
	}
}

func TestCheckStatus(t *testing.T) {
	if err := CheckStatus(&Response{StatusCode: 204}); err != nil {
		t.Errorf("204 err = %v", err)
	}
	err := CheckStatus(&Response{StatusCode: 503, Status: "Service Unavailable"})
	if !errors.Is(err, ErrStatus) || !strings.Contains(err.Error(), "503") {
		t.Errorf("503 err = %v", err)
	}
}

func TestDoErrors(t *testing.T) {
	c := &Client{Dialer: failDialer{}}
	if _, err := c.Get(context.Background(), "https://ifconfig.me/ip"); !errors.Is(err, ErrScheme) {
		t.Errorf("https err = %v, want ErrScheme", err)
	}
	if _, err := c.Get(context.Background(), "http://ifconfig.me/ip"); err == nil || !strings.Contains(err.Error(), "no route") {
		t.Errorf("dial failure err = %v", err)
	}

	d := &pipeDialer{t: t, handle: reply("garbage\r\n\r\n")}
	c = &Client{Dialer: d}
	if _, err := c.Get(context.Background(), "http://ifconfig.me/ip"); !errors.Is(err, ErrMalformed) {
		t.Errorf("garbage err = %v, want ErrMalformed", err)
	}

	d = &pipeDialer{t: t, handle: reply("HTTP/1.1 200 OK\r\nContent-Length: 20\r\n\r\nshort")}
	c = &Client{Dialer: d}
	if _, err := c.Get(context.Background(), "http://ifconfig.me/ip"); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("short body err = %v", err)
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{in: "http://ifconfig.me/ip", want: Target{Host: "ifconfig.me", Port: 80, Path: "/ip"}},
		{in: "http://10.0.0.2:8080", want: Target{Host: "10.0.0.2", Port: 8080, Path: "/"}},
		{in: "http://h/p?q=a%20b", want: Target{Host: "h", Port: 80, Path: "/p?q=a%20b"}},
		{in: "https://h/", wantErr: true},
		{in: "http:///nohost", wantErr: true},
		{in: "http://h:0/", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseURL(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ParseURL() = %+v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if got != tc.want {
				t.Errorf("ParseURL() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestReadResponseOversizedChunk(t *testing.T) {
	const head = "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n40000000\r\n"
	tests := []struct {
		name      string
		body      string
		wantErr   bool
		wantBody  int
		wantTrunc bool
	}{
		{name: "short stream", body: "1.2.3.4", wantErr: true},
		{name: "long stream", body: strings.Repeat("a", 3000), wantBody: 1024, wantTrunc: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			resp, err := ReadResponse(bufio.NewReader(strings.NewReader(head+tt.body)), 1024)
			runtime.ReadMemStats(&after)

			if grew := after.TotalAlloc - before.TotalAlloc; grew > 1<<20 {
				t.Errorf("allocated %d bytes for a 1024 byte body limit", grew)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatal("ReadResponse() succeeded on a truncated chunk")
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadResponse() error = %v", err)
			}
			if len(resp.Body) != tt.wantBody || resp.Truncated != tt.wantTrunc {
				t.Errorf("body %d bytes, truncated %v; want %d, %v", len(resp.Body), resp.Truncated, tt.wantBody, tt.wantTrunc)
			}
		})
	}
}
