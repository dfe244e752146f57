package auth

import (
	"encoding/hex"
	"testing"
)

func TestGenerateState(t *testing.T) {
	state, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState failed: %v", err)
	}

	// 32バイトの乱数をhexエンコードした64文字
	if len(state) != 64 {
		t.Errorf("Expected state length 64, got %d", len(state))
	}
	if _, err := hex.DecodeString(state); err != nil {
		t.Errorf("Expected hex-encoded state, got %q: %v", state, err)
	}

	other, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState failed: %v", err)
	}
	if state == other {
		t.Error("Expected distinct states on successive calls")
	}
}
