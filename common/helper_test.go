package common

import (
	"testing"
	"time"
)

func TestGetEnvFallback(t *testing.T) {
	t.Setenv("AUTOPILOT_TEST_KEY", "")
	if got := GetEnv("AUTOPILOT_TEST_KEY", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("AUTOPILOT_TEST_KEY", "set")
	if got := GetEnv("AUTOPILOT_TEST_KEY", "fallback"); got != "set" {
		t.Fatalf("expected set, got %q", got)
	}
}

func TestParseDurationValid(t *testing.T) {
	if got := ParseDuration("2h", 5*time.Minute); got != 2*time.Hour {
		t.Fatalf("expected 2h, got %s", got)
	}
}

func TestParseDurationInvalidUsesFallback(t *testing.T) {
	fallback := 5 * time.Minute
	if got := ParseDuration("not-a-duration", fallback); got != fallback {
		t.Fatalf("expected fallback %s, got %s", fallback, got)
	}
}

func TestParseIntInvalidUsesFallback(t *testing.T) {
	if got := ParseInt("nope", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in       string
		fallback bool
		want     bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"off", true, false},
		{"0", true, false},
		{"", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		if got := ParseBool(tt.in, tt.fallback); got != tt.want {
			t.Errorf("ParseBool(%q, %v) = %v, want %v", tt.in, tt.fallback, got, tt.want)
		}
	}
}

func TestParseFloat(t *testing.T) {
	if got := ParseFloat("0.5", 1); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if got := ParseFloat("x", 1.5); got != 1.5 {
		t.Fatalf("expected fallback 1.5, got %v", got)
	}
}
