package internal

import "testing"

func TestValidEmail(t *testing.T) {
	valid := []string{"alice@example.com", "a.b+c@sub.example.org"}
	for _, s := range valid {
		if !ValidEmail(s) {
			t.Errorf("ValidEmail(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "alice", "alice@", "@example.com", "Alice <alice@example.com>"}
	for _, s := range invalid {
		if ValidEmail(s) {
			t.Errorf("ValidEmail(%q) = true, want false", s)
		}
	}
}

func TestValidPhone(t *testing.T) {
	valid := []string{"+33 6 12 34 56 78", "0612345678", "+1 (555) 010-2030"}
	for _, s := range valid {
		if !ValidPhone(s) {
			t.Errorf("ValidPhone(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "12345", "phone", "+", "123456789012345678901"}
	for _, s := range invalid {
		if ValidPhone(s) {
			t.Errorf("ValidPhone(%q) = true, want false", s)
		}
	}
}

func TestValidPIN(t *testing.T) {
	if !ValidPIN("1234", 4, 8) {
		t.Error("ValidPIN(1234) = false, want true")
	}
	if ValidPIN("123", 4, 8) {
		t.Error("ValidPIN(123) = true, want false")
	}
	if ValidPIN("123456789", 4, 8) {
		t.Error("ValidPIN(123456789) = true, want false")
	}
	if ValidPIN("12a4", 4, 8) {
		t.Error("ValidPIN(12a4) = true, want false")
	}
}

func TestNewAttemptID(t *testing.T) {
	a, b := NewAttemptID(), NewAttemptID()
	if a == "" || a == b {
		t.Fatalf("attempt IDs not unique: %q %q", a, b)
	}
}

func TestNewSecret(t *testing.T) {
	s, err := NewSecret(20)
	if err != nil {
		t.Fatalf("NewSecret error: %v", err)
	}
	if len(s) == 0 {
		t.Fatal("empty secret")
	}
	other, _ := NewSecret(20)
	if s == other {
		t.Fatal("secrets not unique")
	}
}
