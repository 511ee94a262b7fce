package utils

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	if len(id) != 32 { // 16 bytes = 32 hex chars
		t.Errorf("GenerateID() returned length %d, want 32", len(id))
	}

	for _, c := range id {
		if !strings.ContainsAny(string(c), "0123456789abcdef") {
			t.Errorf("GenerateID() returned invalid hex character: %c", c)
		}
	}

	if id2 := GenerateID(); id == id2 {
		t.Error("GenerateID() returned same ID twice")
	}
}

func TestGenerateClientID(t *testing.T) {
	clientID := GenerateClientID()
	if !strings.HasPrefix(clientID, "live_") {
		t.Errorf("GenerateClientID() should start with 'live_', got %s", clientID)
	}

	parts := strings.Split(clientID, "_")
	if len(parts) != 3 {
		t.Fatalf("GenerateClientID() should have 3 parts separated by '_', got %d", len(parts))
	}
	if len(parts[1]) != 8 {
		t.Errorf("GenerateClientID() random part should be 8 chars, got %s", parts[1])
	}
	if len(parts[2]) < 10 {
		t.Errorf("GenerateClientID() timestamp part too short: %s", parts[2])
	}
}

func TestFormatTime(t *testing.T) {
	testTime := time.Date(2024, 1, 15, 14, 30, 45, 0, time.UTC)
	formatted := FormatTime(testTime)
	if formatted != "2024-01-15 14:30:45" {
		t.Errorf("FormatTime() = %q, want %q", formatted, "2024-01-15 14:30:45")
	}
}
