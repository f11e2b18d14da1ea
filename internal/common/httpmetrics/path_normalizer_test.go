package httpmetrics

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/api/auth/login", "/api/auth/login"},
		{"/api/auth/refresh/", "/api/auth/refresh"},
		{"/health", "/health"},
		{"/api/users/7a2f3c1e-5b6d-4e8f-9a0b-1c2d3e4f5a6b", "/api/users/{param}"},
		{"/api/users/7A2F3C1E-5B6D-4E8F-9A0B-1C2D3E4F5A6B", "/api/users/{param}"},
		{"/api/users/42/posts", "/api/users/{param}/posts"},
		{"/wp-login.php", "/other"},
		{"/.env", "/other"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
