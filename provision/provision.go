// Package provision obtains Wi-Fi credentials and joins the network.
//
// Sources are tried in order: the credential saved in flash, the factory
// seed compiled into the firmware (only when flash has never held a
// credential), then "wifi <ssid> <password>" lines typed on the serial
// console. A credential that joins successfully is saved for the next boot.
package provision

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/shlex"

	"openenterprise/paxcounter/credentials"
)

// Command is the console verb that carries a credential.
const Command = "wifi"

var (
	ErrSyntax        = errors.New("provision: expected: wifi <ssid> [password]")
	ErrNoCredentials = errors.New("provision: console closed before a network was joined")
	ErrStarted       = errors.New("provision: already started")
)

// JoinFunc attempts to associate with the network and blocks until it has
// joined or failed.
type JoinFunc func(ctx context.Context, c credentials.Credentials) error

// Provisioner runs the credential sources until one joins.
type Provisioner struct {
	Store   credentials.Store
	Seed    func() credentials.Credentials
	Console io.Reader
	Join    JoinFunc
	Logger  *slog.Logger

	mu      sync.Mutex
	started bool
	done    chan struct{}
	err     error
	joined  credentials.Credentials
}

// Begin starts provisioning in the background. Progress is observed through
// the link it joins, or through Done and Err.
func (p *Provisioner) Begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrStarted
	}
	p.started = true
	p.done = make(chan struct{})
	go func() {
		creds, err := p.Run(context.Background())
		p.mu.Lock()
		p.joined, p.err = creds, err
		p.mu.Unlock()
		close(p.done)
	}()
	return nil
}

// Done is closed when the background run finishes. Nil before Begin.
func (p *Provisioner) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Result returns the joined credential or the error the run ended with.
func (p *Provisioner) Result() (credentials.Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.joined, p.err
}

// Run tries each source in turn and returns the credential that joined.
func (p *Provisioner) Run(ctx context.Context) (credentials.Credentials, error) {
	log := p.logger()

	stored, err := p.Store.Load()
	switch {
	case err == nil:
		log.Info("provision:stored", slog.String("ssid", stored.SSID))
		if p.try(ctx, stored) == nil {
			return stored, nil
		}
	case errors.Is(err, credentials.ErrNotFound):
		if p.Seed != nil {
			if seed := p.Seed(); seed.Valid() {
				log.Info("provision:seed", slog.String("ssid", seed.SSID))
				if p.try(ctx, seed) == nil {
					p.save(seed)
					return seed, nil
				}
			}
		}
	case errors.Is(err, credentials.ErrErased):
		log.Info("provision:erased")
	default:
		log.Warn("provision:load-failed", slog.String("err", err.Error()))
	}

	if p.Console == nil {
		return credentials.Credentials{}, ErrNoCredentials
	}
	log.Info("provision:waiting", slog.String("usage", Command+" <ssid> [password]"))
	sc := bufio.NewScanner(p.Console)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return credentials.Credentials{}, err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		c, err := ParseLine(line)
		if err != nil {
			log.Warn("provision:bad-line", slog.String("err", err.Error()))
			continue
		}
		if p.try(ctx, c) == nil {
			p.save(c)
			return c, nil
		}
	}
	if err := sc.Err(); err != nil {
		return credentials.Credentials{}, err
	}
	return credentials.Credentials{}, ErrNoCredentials
}

func (p *Provisioner) try(ctx context.Context, c credentials.Credentials) error {
	err := p.Join(ctx, c)
	if err != nil {
		p.logger().Warn("provision:join-failed",
			slog.String("ssid", c.SSID),
			slog.String("err", err.Error()),
		)
		return err
	}
	p.logger().Info("provision:joined", slog.String("ssid", c.SSID))
	return nil
}

func (p *Provisioner) save(c credentials.Credentials) {
	if err := p.Store.Save(c); err != nil {
		p.logger().Error("provision:save-failed", slog.String("err", err.Error()))
	}
}

func (p *Provisioner) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLine parses `wifi <ssid> [password]`. Quote arguments that contain
// spaces: wifi "My Net" 'p@ss word'.
func ParseLine(line string) (credentials.Credentials, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return credentials.Credentials{}, fmt.Errorf("provision: %w", err)
	}
	if len(args) < 2 || len(args) > 3 || args[0] != Command {
		return credentials.Credentials{}, ErrSyntax
	}
	c := credentials.Credentials{SSID: args[1]}
	if len(args) == 3 {
		c.Password = args[2]
	}
	if !c.Valid() {
		return credentials.Credentials{}, ErrSyntax
	}
	if len(c.SSID) > credentials.MaxSSID || len(c.Password) > credentials.MaxPassword {
		return credentials.Credentials{}, credentials.ErrTooLong
	}
	return c, nil
}

// FormatLine renders c as a console line ParseLine accepts.
func FormatLine(c credentials.Credentials) string {
	line := Command + " " + quote(c.SSID)
	if c.Password != "" {
		line += " " + quote(c.Password)
	}
	return line
}

// quote wraps s in single quotes when shlex would otherwise split or
// reinterpret it. shlex has no escapes inside single quotes, so embedded
// single quotes close, escape and reopen the quote.
func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'\\#") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
