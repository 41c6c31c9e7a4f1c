package credentials

import (
	"errors"
	"strings"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Credentials
	}{
		{"typical", Credentials{SSID: "HomeNet", Password: "hunter22"}},
		{"open network", Credentials{SSID: "CafeGuest"}},
		{"spaces and symbols", Credentials{SSID: "My Net: 5G", Password: `p@ss "word"`}},
		{"max lengths", Credentials{SSID: strings.Repeat("s", MaxSSID), Password: strings.Repeat("p", MaxPassword)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := MarshalRecord(tc.in)
			if err != nil {
				t.Fatalf("MarshalRecord() err = %v", err)
			}
			if len(rec) > RecordSize {
				t.Fatalf("record length %d exceeds RecordSize %d", len(rec), RecordSize)
			}
			got, err := UnmarshalRecord(rec)
			if err != nil {
				t.Fatalf("UnmarshalRecord() err = %v", err)
			}
			if got != tc.in {
				t.Errorf("UnmarshalRecord() = %+v, want %+v", got, tc.in)
			}
		})
	}
}

func TestMarshalRecordTooLong(t *testing.T) {
	_, err := MarshalRecord(Credentials{SSID: strings.Repeat("x", MaxSSID+1)})
	if !errors.Is(err, ErrTooLong) {
		t.Errorf("err = %v, want ErrTooLong", err)
	}
}

func TestUnmarshalRecordErrors(t *testing.T) {
	good, _ := MarshalRecord(Credentials{SSID: "net", Password: "pw"})

	flipped := append([]byte(nil), good...)
	flipped[headerLen] ^= 0x01

	badMagic := append([]byte(nil), good...)
	badMagic[0] = 'Q'

	blankSector := make([]byte, RecordSize)
	for i := range blankSector {
		blankSector[i] = 0xFF
	}

	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"blank sector", blankSector, ErrNotFound},
		{"tombstone", tombstone(), ErrErased},
		{"crc mismatch", flipped, ErrCorrupt},
		{"bad magic", badMagic, ErrCorrupt},
		{"truncated", good[:5], ErrCorrupt},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnmarshalRecord(tc.in)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSectorStore(t *testing.T) {
	store := NewSectorStore(NewMemorySector())

	if _, err := store.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("fresh Load() err = %v, want ErrNotFound", err)
	}

	want := Credentials{SSID: "HomeNet", Password: "hunter22"}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() err = %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() err = %v", err)
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	// Overwrite with a shorter record; stale bytes must not leak through.
	if err := store.Save(Credentials{SSID: "b"}); err != nil {
		t.Fatalf("Save() err = %v", err)
	}
	got, _ = store.Load()
	if got.SSID != "b" || got.Password != "" {
		t.Errorf("Load() after overwrite = %+v", got)
	}

	if err := store.Erase(); err != nil {
		t.Fatalf("Erase() err = %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrErased) {
		t.Errorf("Load() after Erase err = %v, want ErrErased", err)
	}
}

func TestCredentialsValid(t *testing.T) {
	if (Credentials{}).Valid() {
		t.Error("empty credentials reported valid")
	}
	if !(Credentials{SSID: "x"}).Valid() {
		t.Error("credentials with SSID reported invalid")
	}
}
