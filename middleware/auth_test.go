package middleware

import "testing"

func TestAllowedFingerprint(t *testing.T) {
	allowed := []string{
		"SHA256:aGVsbG8gd29ybGQgdGhpcyBpcyBhIGtleQ",
		"SHA256:c2Vjb25kIGFkbWluIGtleSBmaW5nZXJwcmk",
	}

	tests := []struct {
		name        string
		fingerprint string
		expected    bool
	}{
		{
			name:        "first key matches",
			fingerprint: "SHA256:aGVsbG8gd29ybGQgdGhpcyBpcyBhIGtleQ",
			expected:    true,
		},
		{
			name:        "second key matches",
			fingerprint: "SHA256:c2Vjb25kIGFkbWluIGtleSBmaW5nZXJwcmk",
			expected:    true,
		},
		{
			name:        "unknown key rejected",
			fingerprint: "SHA256:dW5rbm93biBrZXkgZmluZ2VycHJpbnQgISE",
			expected:    false,
		},
		{
			name:        "raw hash without prefix rejected",
			fingerprint: "aGVsbG8gd29ybGQgdGhpcyBpcyBhIGtleQ",
			expected:    false,
		},
		{
			name:        "empty fingerprint rejected",
			fingerprint: "",
			expected:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := allowedFingerprint(allowed, tt.fingerprint); got != tt.expected {
				t.Errorf("allowedFingerprint(%q) = %v, expected %v", tt.fingerprint, got, tt.expected)
			}
		})
	}
}

func TestAllowedFingerprintEmptyList(t *testing.T) {
	// An empty list never matches; the open-dashboard case is handled by the
	// caller before the lookup.
	if allowedFingerprint(nil, "SHA256:aGVsbG8gd29ybGQgdGhpcyBpcyBhIGtleQ") {
		t.Error("Expected no match against an empty allowlist")
	}
}
