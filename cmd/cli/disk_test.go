package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"openenterprise/paxcounter/msdisk"
)

func TestBuildImage(t *testing.T) {
	stamp := time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name    string
		label   string
		wantErr error
	}{
		{"default label", "PAXCOUNTER", nil},
		{"empty label", "", msdisk.ErrLabel},
		{"label too long", "PAXCOUNTER-01", msdisk.ErrLabel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := buildImage(tt.label, []byte("hello\r\n"), stamp)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("buildImage() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if len(img) != msdisk.SectorCount*msdisk.SectorSize {
				t.Errorf("image size = %d", len(img))
			}
			if img[510] != 0x55 || img[511] != 0xAA {
				t.Error("missing boot signature")
			}
			if !bytes.Contains(img, []byte("hello\r\n")) {
				t.Error("readme not in image")
			}
		})
	}
}
