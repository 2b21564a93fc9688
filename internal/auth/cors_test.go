package auth

import "testing"

func TestResolveOrigin(t *testing.T) {
	t.Parallel()

	const list = "https://admin.divine.video, *.divine.video ,http://localhost:5173"

	tests := []struct {
		name   string
		origin string
		list   string
		want   string
	}{
		{"exact", "http://localhost:5173", list, "http://localhost:5173"},
		{"wildcard subdomain", "https://preview-abc.divine.video", list, "https://preview-abc.divine.video"},
		// Suffix semantics: scheme and depth are not checked.
		{"wildcard ignores scheme and depth", "http://a.b.divine.video", list, "http://a.b.divine.video"},
		// The suffix differs, so this falls back to the default rather than matching.
		{"lookalike host falls back", "https://evil.divine.video.attacker.com", list, "https://admin.divine.video"},
		{"suffix only", "https://x.divine.video", "*.divine.video", "https://x.divine.video"},
		{"bare apex does not match wildcard", "https://divine.video", "*.divine.video", "*.divine.video"},
		{"unknown falls back to first", "https://example.com", list, "https://admin.divine.video"},
		{"no origin header", "", list, "https://admin.divine.video"},
		{"empty list", "https://admin.divine.video", "", ""},
		{"blank entries ignored", "https://example.com", " , ,https://a.test", "https://a.test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ResolveOrigin(tt.origin, tt.list); got != tt.want {
				t.Errorf("ResolveOrigin(%q) = %q, want %q", tt.origin, got, tt.want)
			}
		})
	}
}
