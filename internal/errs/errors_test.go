package errs

import (
	"errors"
	"strings"
	"testing"
)

func TestChainErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Chain("sepolia", "resolve", cause)

	if !errors.Is(err, cause) {
		t.Error("chain error must unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "sepolia") || !strings.Contains(err.Error(), "resolve") {
		t.Errorf("message missing context: %s", err.Error())
	}
}

func TestDBSyncErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := DBSync("0xabc", "0xdef", cause)

	if !errors.Is(err, cause) {
		t.Error("db sync error must unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "0xabc") || !strings.Contains(err.Error(), "0xdef") {
		t.Errorf("message missing bounty/tx context: %s", err.Error())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		max      int
		expected string
	}{
		{"nil error", nil, 10, ""},
		{"short error", errors.New("boom"), 10, "boom"},
		{"exact length", errors.New("123456"), 6, "123456"},
		{"truncated", errors.New("a very long provider error message"), 11, "a very long..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.err, tt.max); got != tt.expected {
				t.Errorf("Truncate() = %q, want %q", got, tt.expected)
			}
		})
	}
}
