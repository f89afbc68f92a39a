package engine

import "testing"

func TestNormalizeMediaURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", "https://media.example/watch/abc.mp4", "https://media.example/watch/abc.mp4", true},
		{"query suffix", "https://media.example/watch/abc.mp4?expires=123&sig=xyz", "https://media.example/watch/abc.mp4", true},
		{"format suffix", "https://media.example/watch/abc.mp4-mobile.mp4", "https://media.example/watch/abc.mp4", true},
		{"surrounding space", "  https://media.example/abc.mp4 \n", "https://media.example/abc.mp4", true},
		{"no extension", "https://media.example/watch/abc.webm", "", false},
		{"empty", "", "", false},
		{"spaces only", "   ", "", false},
		{"no host", "file.mp4", "", false},
		{"no scheme", "media.example/abc.mp4", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := NormalizeMediaURL(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("NormalizeMediaURL(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNormalizeMediaURLIdempotent(t *testing.T) {
	t.Parallel()

	first, ok := NormalizeMediaURL("https://media.example/abc.mp4?sig=1")
	if !ok {
		t.Fatal("first pass rejected")
	}
	second, ok := NormalizeMediaURL(first)
	if !ok || second != first {
		t.Fatalf("second pass = (%q, %v), want (%q, true)", second, ok, first)
	}
}
