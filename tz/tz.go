// Package tz converts UTC instants to local time using a POSIX TZ rule such
// as "<-04>4<-03>,M9.1.6/24,M4.1.6/24". TinyGo ships no zoneinfo database,
// so the rule is compiled into the firmware and evaluated here.
//
// Only the Mm.w.d transition form is supported; it is what every current
// zone with daylight saving uses.
package tz

import (
	"errors"
	"strconv"
	"time"
)

var (
	ErrSyntax      = errors.New("tz: malformed rule")
	ErrUnsupported = errors.New("tz: only Mm.w.d transitions are supported")
)

// defaultRules are applied when a DST name is given without transitions.
const defaultRules = ",M3.2.0,M11.1.0"

// Zone is a parsed POSIX TZ rule.
type Zone struct {
	StdName   string
	StdOffset int // seconds east of UTC
	DSTName   string
	DSTOffset int // seconds east of UTC

	hasDST     bool
	start, end transition
}

type transition struct {
	month   int // 1..12
	week    int // 1..5, 5 = last
	weekday int // 0 = Sunday
	secs    int // local time of day, may exceed 24h
}

// UTC is the zone used when no rule is configured.
var UTC = &Zone{StdName: "UTC"}

// Parse parses a POSIX TZ string.
func Parse(s string) (*Zone, error) {
	p := parser{s: s}
	z := &Zone{}

	var err error
	if z.StdName, err = p.name(); err != nil {
		return nil, err
	}
	off, err := p.offset()
	if err != nil {
		return nil, err
	}
	z.StdOffset = -off

	if p.done() {
		return z, nil
	}

	z.hasDST = true
	if z.DSTName, err = p.name(); err != nil {
		return nil, err
	}
	z.DSTOffset = z.StdOffset + 3600
	if !p.done() && p.peek() != ',' {
		off, err := p.offset()
		if err != nil {
			return nil, err
		}
		z.DSTOffset = -off
	}

	if p.done() {
		p = parser{s: defaultRules}
	}
	if z.start, err = p.transition(); err != nil {
		return nil, err
	}
	if z.end, err = p.transition(); err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, ErrSyntax
	}
	return z, nil
}

// MustParse is like Parse but panics on error. For constants only.
func MustParse(s string) *Zone {
	z, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return z
}

// Lookup returns the abbreviation and offset in effect at t.
func (z *Zone) Lookup(t time.Time) (name string, offset int, dst bool) {
	if !z.hasDST {
		return z.StdName, z.StdOffset, false
	}
	u := t.Unix()
	year := t.UTC().Year()
	start := z.start.unix(year, z.StdOffset)
	end := z.end.unix(year, z.DSTOffset)

	if start < end {
		dst = u >= start && u < end
	} else {
		// Southern hemisphere: DST spans the new year.
		dst = u >= start || u < end
	}
	if dst {
		return z.DSTName, z.DSTOffset, true
	}
	return z.StdName, z.StdOffset, false
}

// In returns t expressed in the zone.
func (z *Zone) In(t time.Time) time.Time {
	name, off, _ := z.Lookup(t)
	return t.In(time.FixedZone(name, off))
}

// unix returns the UTC instant of the transition in year, given the offset
// in effect just before it.
func (tr transition) unix(year, offsetBefore int) int64 {
	first := time.Date(year, time.Month(tr.month), 1, 0, 0, 0, 0, time.UTC)
	day := 1 + (tr.weekday-int(first.Weekday())+7)%7 + (tr.week-1)*7
	dim := daysIn(year, tr.month)
	for day > dim {
		day -= 7
	}
	local := time.Date(year, time.Month(tr.month), day, 0, 0, 0, 0, time.UTC).Unix() + int64(tr.secs)
	return local - int64(offsetBefore)
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

type parser struct {
	s   string
	pos int
}

func (p *parser) done() bool { return p.pos >= len(p.s) }
func (p *parser) peek() byte { return p.s[p.pos] }

func (p *parser) name() (string, error) {
	if p.done() {
		return "", ErrSyntax
	}
	if p.peek() == '<' {
		p.pos++
		start := p.pos
		for !p.done() && p.peek() != '>' {
			p.pos++
		}
		if p.done() || p.pos-start < 3 {
			return "", ErrSyntax
		}
		name := p.s[start:p.pos]
		p.pos++
		return name, nil
	}
	start := p.pos
	for !p.done() && isAlpha(p.peek()) {
		p.pos++
	}
	if p.pos-start < 3 {
		return "", ErrSyntax
	}
	return p.s[start:p.pos], nil
}

// offset parses [+|-]hh[:mm[:ss]] and returns seconds (POSIX sign: west positive).
func (p *parser) offset() (int, error) {
	sign := 1
	if !p.done() && (p.peek() == '+' || p.peek() == '-') {
		if p.peek() == '-' {
			sign = -1
		}
		p.pos++
	}
	secs, err := p.clock(167)
	if err != nil {
		return 0, err
	}
	return sign * secs, nil
}

func (p *parser) clock(maxHours int) (int, error) {
	h, err := p.number(0, maxHours)
	if err != nil {
		return 0, err
	}
	secs := h * 3600
	for _, mult := range []int{60, 1} {
		if p.done() || p.peek() != ':' {
			break
		}
		p.pos++
		n, err := p.number(0, 59)
		if err != nil {
			return 0, err
		}
		secs += n * mult
	}
	return secs, nil
}

func (p *parser) transition() (transition, error) {
	if p.done() || p.peek() != ',' {
		return transition{}, ErrSyntax
	}
	p.pos++
	if p.done() {
		return transition{}, ErrSyntax
	}
	if p.peek() != 'M' {
		return transition{}, ErrUnsupported
	}
	p.pos++

	var tr transition
	var err error
	if tr.month, err = p.number(1, 12); err != nil {
		return tr, err
	}
	if err = p.expect('.'); err != nil {
		return tr, err
	}
	if tr.week, err = p.number(1, 5); err != nil {
		return tr, err
	}
	if err = p.expect('.'); err != nil {
		return tr, err
	}
	if tr.weekday, err = p.number(0, 6); err != nil {
		return tr, err
	}

	tr.secs = 2 * 3600
	if !p.done() && p.peek() == '/' {
		p.pos++
		if tr.secs, err = p.offset(); err != nil {
			return tr, err
		}
	}
	return tr, nil
}

func (p *parser) expect(c byte) error {
	if p.done() || p.peek() != c {
		return ErrSyntax
	}
	p.pos++
	return nil
}

func (p *parser) number(min, max int) (int, error) {
	start := p.pos
	for !p.done() && p.peek() >= '0' && p.peek() <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, ErrSyntax
	}
	n, err := strconv.Atoi(p.s[start:p.pos])
	if err != nil || n < min || n > max {
		return 0, ErrSyntax
	}
	return n, nil
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
