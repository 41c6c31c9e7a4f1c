package provision

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"openenterprise/paxcounter/credentials"
)

// network accepts exactly one credential.
type network struct {
	want     credentials.Credentials
	attempts []credentials.Credentials
}

func (n *network) join(_ context.Context, c credentials.Credentials) error {
	n.attempts = append(n.attempts, c)
	if c != n.want {
		return errors.New("auth failed")
	}
	return nil
}

var home = credentials.Credentials{SSID: "HomeNet", Password: "hunter22"}

func seeded(c credentials.Credentials) func() credentials.Credentials {
	return func() credentials.Credentials { return c }
}

func TestRunSources(t *testing.T) {
	factory := credentials.Credentials{SSID: "Factory", Password: "factory1"}

	tests := []struct {
		name      string
		stored    *credentials.Credentials
		erased    bool
		seed      credentials.Credentials
		console   string
		wantTried []string
		wantSaved string
		wantErr   error
	}{
		{
			name:      "stored joins",
			stored:    &home,
			wantTried: []string{"HomeNet"},
			wantSaved: "HomeNet",
		},
		{
			name:      "blank store uses seed",
			seed:      home,
			wantTried: []string{"HomeNet"},
			wantSaved: "HomeNet",
		},
		{
			name:      "erased store skips seed",
			erased:    true,
			seed:      home,
			console:   "wifi HomeNet hunter22\n",
			wantTried: []string{"HomeNet"},
			wantSaved: "HomeNet",
		},
		{
			name:      "bad seed falls back to console",
			seed:      factory,
			console:   "garbage\nwifi Wrong pw\nwifi HomeNet hunter22\n",
			wantTried: []string{"Factory", "Wrong", "HomeNet"},
			wantSaved: "HomeNet",
		},
		{
			name:      "stale stored credential falls back to console",
			stored:    &factory,
			console:   "wifi HomeNet hunter22\n",
			wantTried: []string{"Factory", "HomeNet"},
			wantSaved: "HomeNet",
		},
		{
			name:      "console closes",
			erased:    true,
			console:   "wifi Wrong pw\n",
			wantTried: []string{"Wrong"},
			wantErr:   ErrNoCredentials,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := credentials.NewSectorStore(credentials.NewMemorySector())
			if tc.stored != nil {
				store.Save(*tc.stored)
			}
			if tc.erased {
				store.Erase()
			}
			net := &network{want: home}
			p := &Provisioner{
				Store:   store,
				Seed:    seeded(tc.seed),
				Console: strings.NewReader(tc.console),
				Join:    net.join,
			}

			got, err := p.Run(context.Background())
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Run() err = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr == nil && got != home {
				t.Errorf("Run() = %+v, want %+v", got, home)
			}

			var tried []string
			for _, c := range net.attempts {
				tried = append(tried, c.SSID)
			}
			if strings.Join(tried, ",") != strings.Join(tc.wantTried, ",") {
				t.Errorf("tried %v, want %v", tried, tc.wantTried)
			}

			saved, err := store.Load()
			if tc.wantSaved == "" {
				if err == nil && tc.stored == nil {
					t.Errorf("saved %+v, want nothing", saved)
				}
				return
			}
			if err != nil || saved.SSID != tc.wantSaved {
				t.Errorf("stored = %+v, %v; want %s", saved, err, tc.wantSaved)
			}
		})
	}
}

func TestBegin(t *testing.T) {
	store := credentials.NewSectorStore(credentials.NewMemorySector())
	net := &network{want: home}
	p := &Provisioner{Store: store, Seed: seeded(home), Join: net.join}

	if err := p.Begin(); err != nil {
		t.Fatalf("Begin() err = %v", err)
	}
	if err := p.Begin(); !errors.Is(err, ErrStarted) {
		t.Errorf("second Begin() err = %v", err)
	}
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("provisioning did not finish")
	}
	got, err := p.Result()
	if err != nil || got != home {
		t.Errorf("Result() = %+v, %v", got, err)
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    credentials.Credentials
		wantErr bool
	}{
		{line: "wifi HomeNet hunter22", want: home},
		{line: "wifi CafeGuest", want: credentials.Credentials{SSID: "CafeGuest"}},
		{line: `wifi "My Net" 'p@ss word'`, want: credentials.Credentials{SSID: "My Net", Password: "p@ss word"}},
		{line: "wifi", wantErr: true},
		{line: "wlan a b", wantErr: true},
		{line: "wifi a b c", wantErr: true},
		{line: `wifi "unterminated`, wantErr: true},
		{line: "wifi " + strings.Repeat("x", credentials.MaxSSID+1), wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			got, err := ParseLine(tc.line)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ParseLine() = %+v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if got != tc.want {
				t.Errorf("ParseLine() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestFormatLineRoundTrip(t *testing.T) {
	for _, c := range []credentials.Credentials{
		home,
		{SSID: "Open"},
		{SSID: "My Net", Password: `it's "quoted"`},
		{SSID: "#hash", Password: `back\slash`},
	} {
		line := FormatLine(c)
		got, err := ParseLine(line)
		if err != nil {
			t.Errorf("ParseLine(%q) err = %v", line, err)
			continue
		}
		if got != c {
			t.Errorf("round trip of %+v via %q = %+v", c, line, got)
		}
	}
}
