// Package httpc is a small HTTP/1.1 client for the device. It writes one
// request per connection ("Connection: close") over whatever transport the
// Dialer provides, so it runs the same over the lneto TCP stack on the board
// and over net.Pipe in tests. No TLS.
package httpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultMaxBody = 1024
	DefaultAgent   = "paxcounter"
)

var (
	ErrScheme    = errors.New("httpc: only http URLs are supported")
	ErrStatus    = errors.New("httpc: non-success status")
	ErrMalformed = errors.New("httpc: malformed response")
)

// Dialer opens a byte stream to host:port.
type Dialer interface {
	Dial(ctx context.Context, host string, port uint16) (io.ReadWriteCloser, error)
}

// Response is a fully read response. Header keys are lower case.
type Response struct {
	StatusCode int
	Status     string
	Header     map[string]string
	Body       []byte
	// Truncated is set when the body was longer than the client's MaxBody.
	Truncated bool
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client issues requests through Dialer. Zero fields take the defaults.
type Client struct {
	Dialer    Dialer
	Timeout   time.Duration
	MaxBody   int
	UserAgent string
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, "GET", rawURL, "", nil)
}

// PostForm posts an application/x-www-form-urlencoded body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form []byte) (*Response, error) {
	return c.Do(ctx, "POST", rawURL, "application/x-www-form-urlencoded", form)
}

// Do performs one request and reads the whole response. A non-2xx status
// is not an error; use Response.OK or CheckStatus.
func (c *Client) Do(ctx context.Context, method, rawURL, contentType string, body []byte) (*Response, error) {
	target, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := c.Dialer.Dial(ctx, target.Host, target.Port)
	if err != nil {
		return nil, fmt.Errorf("httpc: dial %s: %w", target.HostPort(), err)
	}
	defer conn.Close()

	if dl, ok := conn.(interface{ SetDeadline(time.Time) error }); ok {
		deadline, _ := ctx.Deadline()
		dl.SetDeadline(deadline)
	}

	agent := c.UserAgent
	if agent == "" {
		agent = DefaultAgent
	}
	if err := WriteRequest(conn, method, target, agent, contentType, body); err != nil {
		return nil, fmt.Errorf("httpc: write request: %w", err)
	}

	max := c.MaxBody
	if max <= 0 {
		max = DefaultMaxBody
	}
	return ReadResponse(bufio.NewReader(conn), max)
}

// CheckStatus returns ErrStatus, wrapped with the status line, unless resp is 2xx.
func CheckStatus(resp *Response) error {
	if resp.OK() {
		return nil
	}
	return fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, resp.Status)
}

// Target is a parsed request URL.
type Target struct {
	Host string
	Port uint16
	Path string // request URI, at least "/"
}

// HostPort returns the Host header value.
func (t Target) HostPort() string {
	if t.Port == 80 {
		return t.Host
	}
	return t.Host + ":" + strconv.Itoa(int(t.Port))
}

// ParseURL splits an http URL into the parts needed on the wire.
func ParseURL(rawURL string) (Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Target{}, err
	}
	if u.Scheme != "http" {
		return Target{}, ErrScheme
	}
	t := Target{Host: u.Hostname(), Port: 80, Path: u.RequestURI()}
	if t.Host == "" {
		return Target{}, fmt.Errorf("httpc: no host in %q", rawURL)
	}
	if p := u.Port(); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || n == 0 {
			return Target{}, fmt.Errorf("httpc: bad port in %q", rawURL)
		}
		t.Port = uint16(n)
	}
	return t, nil
}

// WriteRequest writes a complete request in a single Write call.
func WriteRequest(w io.Writer, method string, t Target, agent, contentType string, body []byte) error {
	var b strings.Builder
	b.Grow(128 + len(body))
	b.WriteString(method)
	b.WriteByte(' ')
	b.WriteString(t.Path)
	b.WriteString(" HTTP/1.1\r\nHost: ")
	b.WriteString(t.HostPort())
	b.WriteString("\r\nUser-Agent: ")
	b.WriteString(agent)
	b.WriteString("\r\nAccept: */*\r\nConnection: close\r\n")
	if body != nil || method == "POST" {
		if contentType != "" {
			b.WriteString("Content-Type: ")
			b.WriteString(contentType)
			b.WriteString("\r\n")
		}
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.Itoa(len(body)))
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.Write(body)
	_, err := io.WriteString(w, b.String())
	return err
}

// ReadResponse reads a status line, headers and a body of at most max
// bytes. Bodies are delimited by Content-Length, chunked encoding, or the
// end of the stream.
func ReadResponse(r *bufio.Reader, max int) (*Response, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	proto, rest, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/1.") {
		return nil, ErrMalformed
	}
	code, reason, _ := strings.Cut(rest, " ")
	resp := &Response{Status: reason, Header: make(map[string]string)}
	if resp.StatusCode, err = strconv.Atoi(code); err != nil || len(code) != 3 {
		return nil, ErrMalformed
	}

	for {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return nil, ErrMalformed
		}
		resp.Header[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	switch {
	case resp.StatusCode == 204 || resp.StatusCode == 304 || resp.StatusCode/100 == 1:
	case strings.EqualFold(resp.Header["transfer-encoding"], "chunked"):
		err = resp.readChunked(r, max)
	case resp.Header["content-length"] != "":
		n, perr := strconv.Atoi(resp.Header["content-length"])
		if perr != nil || n < 0 {
			return nil, ErrMalformed
		}
		err = resp.readN(r, n, max)
	default:
		err = resp.readToEOF(r, max)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (resp *Response) readN(r io.Reader, n, max int) error {
	if n > max {
		n = max
		resp.Truncated = true
	}
	resp.Body = make([]byte, n)
	if _, err := io.ReadFull(r, resp.Body); err != nil {
		return fmt.Errorf("httpc: body: %w", err)
	}
	return nil
}

func (resp *Response) readToEOF(r io.Reader, max int) error {
	body, err := io.ReadAll(io.LimitReader(r, int64(max)+1))
	if len(body) > max {
		body = body[:max]
		resp.Truncated = true
	}
	resp.Body = body
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("httpc: body: %w", err)
	}
	return nil
}

func (resp *Response) readChunked(r *bufio.Reader, max int) error {
	for {
		line, err := readLine(r)
		if err != nil {
			return err
		}
		sizeHex, _, _ := strings.Cut(line, ";")
		size, err := strconv.ParseUint(strings.TrimSpace(sizeHex), 16, 32)
		if err != nil {
			return ErrMalformed
		}
		if size == 0 {
			// Trailers are ignored.
			for {
				line, err := readLine(r)
				if err != nil || line == "" {
					return nil
				}
			}
		}
		// Only what fits under max is read; the rest of an oversized
		// chunk is left unread since the connection is closed anyway.
		room := uint64(max - len(resp.Body))
		take := size
		if take > room {
			take = room
			resp.Truncated = true
		}
		n := len(resp.Body)
		resp.Body = append(resp.Body, make([]byte, take)...)
		if _, err := io.ReadFull(r, resp.Body[n:]); err != nil {
			return fmt.Errorf("httpc: chunk: %w", err)
		}
		if resp.Truncated {
			return nil
		}
		if _, err := readLine(r); err != nil {
			return err
		}
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("httpc: %w", io.ErrUnexpectedEOF)
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
