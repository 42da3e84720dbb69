package ident

import (
	"testing"
	"time"
)

func TestNewCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("NewCode() error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("Expected 6 digits, got %q", code)
		}
		if code[0] == '0' {
			t.Errorf("Expected code without leading zero, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("Expected only digits, got %q", code)
			}
		}
	}
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewFixedClock(start)

	if !c.Now().Equal(start) {
		t.Errorf("Expected %v, got %v", start, c.Now())
	}

	c.Advance(time.Minute)
	if want := start.Add(time.Minute); !c.Now().Equal(want) {
		t.Errorf("Expected %v, got %v", want, c.Now())
	}
}

func TestNewID_Unique(t *testing.T) {
	if NewID() == NewID() {
		t.Error("Expected distinct ids")
	}
}
