package security

import "testing"

func TestSafeRedirectPath(t *testing.T) {
	tests := []struct {
		name string
		next string
		want string
	}{
		{"empty uses fallback", "", "/dashboard"},
		{"same-origin path", "/dashboard/history", "/dashboard/history"},
		{"path with query", "/record?mode=patologi", "/record?mode=patologi"},
		{"absolute URL rejected", "https://evil.example.com/", "/dashboard"},
		{"protocol-relative rejected", "//evil.example.com", "/dashboard"},
		{"backslash rejected", "/\\evil.example.com", "/dashboard"},
		{"relative path rejected", "dashboard", "/dashboard"},
		{"javascript scheme rejected", "javascript:alert(1)", "/dashboard"},
		{"newline rejected", "/ok\r\nLocation: https://evil", "/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeRedirectPath(tt.next, "/dashboard"); got != tt.want {
				t.Errorf("SafeRedirectPath(%q) = %q, want %q", tt.next, got, tt.want)
			}
		})
	}
}
