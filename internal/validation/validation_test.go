package validation

import "testing"

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{name: "plain address", email: "buyer@example.com", valid: true},
		{name: "subdomain", email: "a.b@mail.example.org", valid: true},
		{name: "display name", email: "Buyer <buyer@example.com>", valid: false},
		{name: "missing at", email: "buyer.example.com", valid: false},
		{name: "empty string", email: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidEmail(tt.email); got != tt.valid {
				t.Fatalf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.valid)
			}
		})
	}
}

func TestCouponCode(t *testing.T) {
	if got := NormalizeCouponCode("  save10 "); got != "SAVE10" {
		t.Fatalf("NormalizeCouponCode = %q, want SAVE10", got)
	}

	tests := []struct {
		name  string
		code  string
		valid bool
	}{
		{name: "letters and digits", code: "SAVE10", valid: true},
		{name: "dash and underscore", code: "BLACK-FRIDAY_24", valid: true},
		{name: "too short", code: "AB", valid: false},
		{name: "lower case", code: "save10", valid: false},
		{name: "space inside", code: "SAVE 10", valid: false},
		{name: "non ascii", code: "СКИДКА", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidCouponCode(tt.code); got != tt.valid {
				t.Fatalf("IsValidCouponCode(%q) = %v, want %v", tt.code, got, tt.valid)
			}
		})
	}
}

func TestIsValidTrackingNumber(t *testing.T) {
	tests := []struct {
		number string
		valid  bool
	}{
		{number: "SF0123ABCDEF4567", valid: true},
		{number: "1Z-999-AA1", valid: true},
		{number: "", valid: false},
		{number: "abc/../def", valid: false},
		{number: "номер", valid: false},
	}

	for _, tt := range tests {
		if got := IsValidTrackingNumber(tt.number); got != tt.valid {
			t.Fatalf("IsValidTrackingNumber(%q) = %v, want %v", tt.number, got, tt.valid)
		}
	}
}

func TestQuantityAndPassword(t *testing.T) {
	if IsValidQuantity(0) || IsValidQuantity(100) || !IsValidQuantity(1) {
		t.Fatal("unexpected quantity validation result")
	}
	if IsValidPassword("short") || !IsValidPassword("long-enough") {
		t.Fatal("unexpected password validation result")
	}
}
