//go:build tinygo

package main

import (
	"context"
	"errors"
	"io"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/soypat/lneto/tcp"
	"github.com/soypat/lneto/x/xnet"
)

const (
	dialTimeout = 10 * time.Second
	dialRetries = 3
	dnsTimeout  = 5 * time.Second
	dnsRetries  = 2
	tcpBufSize  = 2030 // MTU - ethhdr - iphdr - tcphdr
	writeChunk  = 1024
)

var errNoAddress = errors.New("dns: no address for host")

// Pre-allocated buffers for memory efficiency
var (
	tcpRxBuf [tcpBufSize]byte
	tcpTxBuf [tcpBufSize]byte
)

// lookup resolves host, which may already be a literal address.
func (l *wifiLink) lookup(ctx context.Context, host string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr, nil
	}
	stack, err := l.lneto()
	if err != nil {
		return netip.Addr{}, err
	}
	timeout, err := attemptTimeout(ctx, dnsRetries*dnsTimeout, dnsRetries)
	if err != nil {
		return netip.Addr{}, err
	}
	rstack := stack.StackRetrying(pollTime)
	addrs, err := rstack.DoLookupIP(host, timeout, dnsRetries)
	if err != nil {
		return netip.Addr{}, err
	}
	if len(addrs) == 0 {
		return netip.Addr{}, errNoAddress
	}
	return addrs[0], nil
}

// Dial opens a TCP connection for the HTTP client.
func (l *wifiLink) Dial(ctx context.Context, host string, port uint16) (io.ReadWriteCloser, error) {
	addr, err := l.lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	return l.dialTCP(ctx, netip.AddrPortFrom(addr, port))
}

func (l *wifiLink) dialTCP(ctx context.Context, remote netip.AddrPort) (*tcpConn, error) {
	stack, err := l.lneto()
	if err != nil {
		return nil, err
	}
	timeout, err := attemptTimeout(ctx, dialTimeout, dialRetries)
	if err != nil {
		return nil, err
	}

	l.connMu.Lock()
	c := &tcpConn{stack: stack, remote: remote, release: l.connMu.Unlock}
	err = c.conn.Configure(tcp.ConnConfig{
		RxBuf:             tcpRxBuf[:],
		TxBuf:             tcpTxBuf[:],
		TxPacketQueueSize: 3,
	})
	if err != nil {
		l.connMu.Unlock()
		return nil, err
	}

	rstack := stack.StackRetrying(pollTime)
	lport := uint16(stack.Prand32()>>17) + 1024
	err = rstack.DoDialTCP(&c.conn, lport, remote, timeout, dialRetries)
	if err != nil {
		c.abort()
		return nil, err
	}
	if !c.conn.State().IsSynchronized() {
		c.abort()
		return nil, errors.New("tcp: connection not established")
	}
	return c, nil
}

// tcpConn adapts tcp.Conn to blocking reads and chunked writes.
type tcpConn struct {
	conn     tcp.Conn
	stack    *xnet.StackAsync
	remote   netip.AddrPort
	deadline time.Time

	release func()
	once    sync.Once
}

func (c *tcpConn) SetDeadline(t time.Time) error {
	c.deadline = t
	return c.conn.SetDeadline(t)
}

func (c *tcpConn) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		end := min(written+writeChunk, len(p))
		n, err := c.conn.Write(p[written:end])
		written += n
		if err != nil {
			return written, err
		}
		c.conn.Flush()
		time.Sleep(pollTime)
	}
	return written, nil
}

// Read blocks until data arrives, the peer closes or the deadline passes.
// Errors from an empty receive buffer are retried while the connection is
// still synchronized.
func (c *tcpConn) Read(p []byte) (int, error) {
	for {
		n, _ := c.conn.Read(p)
		if n > 0 {
			return n, nil
		}
		if !c.deadline.IsZero() && time.Now().After(c.deadline) {
			return 0, os.ErrDeadlineExceeded
		}
		if !c.conn.State().IsSynchronized() {
			return 0, io.EOF
		}
		time.Sleep(pollTime)
	}
}

func (c *tcpConn) Close() error {
	c.once.Do(func() {
		c.conn.Close()
		// Wait up to 1 second for graceful close
		for i := 0; i < 10 && !c.conn.State().IsClosed(); i++ {
			time.Sleep(100 * time.Millisecond)
		}
		c.finish()
	})
	return nil
}

func (c *tcpConn) abort() {
	c.once.Do(c.finish)
}

func (c *tcpConn) finish() {
	c.conn.Abort()
	// Discard ARP query to free slot for next connection
	c.stack.DiscardResolveHardwareAddress6(c.remote.Addr())
	c.release()
}
