package domain

import "testing"

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercase passthrough",
			input:    "example.com",
			expected: "example.com",
		},
		{
			name:     "uppercase",
			input:    "EXAMPLE.COM",
			expected: "example.com",
		},
		{
			name:     "mixed case subdomain",
			input:    "Sub.Example.Com",
			expected: "sub.example.com",
		},
		{
			name:     "trailing dot",
			input:    "example.com.",
			expected: "example.com",
		},
		{
			name:     "surrounding whitespace",
			input:    "  example.com ",
			expected: "example.com",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeHost(tt.input)
			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestMatchDomain(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		host    string
		match   bool
	}{
		{
			name:    "exact match",
			pattern: "example.com",
			host:    "example.com",
			match:   true,
		},
		{
			name:    "exact match case-insensitive",
			pattern: "Example.COM",
			host:    "example.com",
			match:   true,
		},
		{
			name:    "exact no match",
			pattern: "example.com",
			host:    "other.com",
			match:   false,
		},
		{
			name:    "exact does not match subdomain",
			pattern: "example.com",
			host:    "sub.example.com",
			match:   false,
		},
		{
			name:    "wildcard matches subdomain",
			pattern: "*.bad.com",
			host:    "sub.bad.com",
			match:   true,
		},
		{
			name:    "wildcard matches deep subdomain",
			pattern: "*.bad.com",
			host:    "a.b.bad.com",
			match:   true,
		},
		{
			name:    "wildcard never matches the bare base domain",
			pattern: "*.bad.com",
			host:    "bad.com",
			match:   false,
		},
		{
			name:    "wildcard does not match sibling suffix",
			pattern: "*.bad.com",
			host:    "notbad.com",
			match:   false,
		},
		{
			name:    "wildcard does not match partial segment",
			pattern: "*.bad.com",
			host:    "abad.com",
			match:   false,
		},
		{
			name:    "wildcard case-insensitive",
			pattern: "*.Bad.Com",
			host:    "SUB.bad.com",
			match:   true,
		},
		{
			name:    "wildcard against different tld",
			pattern: "*.bad.com",
			host:    "sub.bad.org",
			match:   false,
		},
		{
			name:    "empty pattern",
			pattern: "",
			host:    "example.com",
			match:   false,
		},
		{
			name:    "empty host",
			pattern: "example.com",
			host:    "",
			match:   false,
		},
		{
			name:    "trailing dot on host",
			pattern: "*.bad.com",
			host:    "sub.bad.com.",
			match:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MatchDomain(tt.pattern, tt.host)
			if result != tt.match {
				t.Errorf("MatchDomain(%q, %q) = %v, expected %v", tt.pattern, tt.host, result, tt.match)
			}
		})
	}
}

func TestInstancePolicyFlagSummary(t *testing.T) {
	empty := &InstancePolicy{Domain: "quiet.example"}
	if empty.FlagSummary() != "none" {
		t.Errorf("Expected 'none', got '%s'", empty.FlagSummary())
	}

	policy := &InstancePolicy{
		Domain:        "loud.example",
		Blocked:       true,
		MediaRemoval:  true,
		RejectDeletes: true,
	}

	summary := policy.FlagSummary()
	expected := "blocked, media, no-deletes"
	if summary != expected {
		t.Errorf("Expected '%s', got '%s'", expected, summary)
	}
}

func TestInstancePolicyIsWildcard(t *testing.T) {
	wildcard := &InstancePolicy{Domain: "*.bad.com"}
	if !wildcard.IsWildcard() {
		t.Error("Expected wildcard domain to report IsWildcard")
	}

	exact := &InstancePolicy{Domain: "bad.com"}
	if exact.IsWildcard() {
		t.Error("Expected exact domain to not report IsWildcard")
	}
}
