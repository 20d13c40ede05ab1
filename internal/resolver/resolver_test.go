package resolver

import (
	"strings"
	"testing"
)

func TestLooksLikeWebpageLink(t *testing.T) {
	cases := map[string]bool{
		"https://www.youtube.com/watch?v=abc": true,
		"https://youtu.be/abc":                true,
		"https://soundcloud.com/artist/track":  true,
		"https://example.com/song.mp3":         false,
		"":                                     false,
	}
	for url, want := range cases {
		if got := LooksLikeWebpageLink(url); got != want {
			t.Fatalf("LooksLikeWebpageLink(%q) = %v, want %v", url, got, want)
		}
	}
}

func TestScanForMediaTagFindsOGVideo(t *testing.T) {
	html := `<html><head><meta property="og:title" content="Song"><meta property="og:video" content="https://cdn.example.com/a.mp4"></head><body></body></html>`
	media, err := scanForMediaTag(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if media != "https://cdn.example.com/a.mp4" {
		t.Fatalf("media = %q, want https://cdn.example.com/a.mp4", media)
	}
}

func TestScanForMediaTagReturnsEmptyWhenAbsent(t *testing.T) {
	html := `<html><head><title>No media here</title></head><body></body></html>`
	media, err := scanForMediaTag(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if media != "" {
		t.Fatalf("expected empty media, got %q", media)
	}
}
