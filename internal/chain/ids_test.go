package chain

import (
	"strings"
	"testing"
)

func TestParseBountyID(t *testing.T) {
	valid := "0x" + strings.Repeat("ab", 32)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid 32 bytes", valid, false},
		{"valid with whitespace", "  " + valid + " ", false},
		{"too short", "0xabcd", true},
		{"too long", valid + "ff", true},
		{"missing prefix", strings.Repeat("ab", 32), true},
		{"not hex", "0x" + strings.Repeat("zz", 32), true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseBountyID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if FormatBountyID(id) != valid {
				t.Errorf("round trip = %s, want %s", FormatBountyID(id), valid)
			}
		})
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid checksummed", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", false},
		{"valid lowercase", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", false},
		{"too short", "0x5aaeb", true},
		{"not hex", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAzz", true},
		{"empty", "", true},
		{"bounty id length", "0x" + strings.Repeat("ab", 32), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseAddress(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestRepoIDHash(t *testing.T) {
	a := RepoIDHash(123456)
	b := RepoIDHash(123456)
	c := RepoIDHash(123457)

	if a != b {
		t.Error("hash must be deterministic")
	}
	if a == c {
		t.Error("distinct repo ids must not collide")
	}
	if a == ([32]byte{}) {
		t.Error("hash must not be zero")
	}
}
