// Package timesync sets the wall clock from SNTP servers, trying the
// primary first and then each fallback, and keeps trying in the background
// until one answers.
package timesync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultMinYear = 2024
	DefaultRetry   = 2 * time.Second
)

var ErrNoServers = errors.New("timesync: no servers configured")

// QueryFunc asks one server and returns the offset to add to the local clock.
type QueryFunc func(ctx context.Context, server string) (time.Duration, error)

// Syncer drives the clock. Query and Adjust must be set; the rest default.
type Syncer struct {
	Query  QueryFunc
	Adjust func(offset time.Duration)
	Now    func() time.Time
	// MinYear is the earliest year accepted as a set clock.
	MinYear int
	// Retry is the pause after every server failed once.
	Retry  time.Duration
	Logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	synced  bool
	server  string
	lastErr error
}

// Request starts synchronising in the background, replacing any previous
// request. It returns immediately; poll Valid for the result.
func (s *Syncer) Request(servers []string) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(ctx, append([]string(nil), servers...))
}

// Stop abandons a pending request.
func (s *Syncer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Syncer) run(ctx context.Context, servers []string) {
	log := s.logger()
	if len(servers) == 0 {
		s.setErr(ErrNoServers)
		log.Error("ntp:no-servers")
		return
	}
	retry := s.Retry
	if retry <= 0 {
		retry = DefaultRetry
	}
	for {
		for _, server := range servers {
			if ctx.Err() != nil {
				return
			}
			offset, err := s.Query(ctx, server)
			if err != nil {
				s.setErr(err)
				log.Warn("ntp:query-failed", slog.String("server", server), slog.String("err", err.Error()))
				continue
			}
			s.mu.Lock()
			s.Adjust(offset)
			s.synced, s.server, s.lastErr = true, server, nil
			s.mu.Unlock()
			log.Info("ntp:synced",
				slog.String("server", server),
				slog.Duration("offset", offset),
				slog.String("time", s.now().UTC().Format(time.RFC3339)),
			)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

// Valid reports whether the clock holds a plausible wall time.
func (s *Syncer) Valid() bool {
	min := s.MinYear
	if min == 0 {
		min = DefaultMinYear
	}
	return s.now().Year() >= min
}

// Status returns the server that answered, if any, and the last failure.
func (s *Syncer) Status() (synced bool, server string, lastErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced, s.server, s.lastErr
}

func (s *Syncer) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Syncer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
