// Package resolver turns a webpage link into a direct media URL by
// scraping OpenGraph tags, adapted from bken's linkpreview.go (which
// extracts a page's title/description/image for chat link previews) to
// instead extract og:video/og:audio, the fields that point at playable
// media.
package resolver

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Timeout bounds how long resolution may take; PlayRequest handling must
// not stall on a slow or hung origin.
const Timeout = 4 * time.Second

// MaxBody caps how much of a page is read while scanning for meta tags.
const MaxBody = 256 * 1024

// KnownHosts are the hostnames PlayRequest treats as webpage links worth
// resolving, rather than direct media URLs to use as-is.
var KnownHosts = []string{
	"youtube.com", "youtu.be", "soundcloud.com", "vimeo.com", "bandcamp.com",
}

// LooksLikeWebpageLink reports whether rawURL's host matches a known
// video/audio service, using a simple suffix match against KnownHosts.
func LooksLikeWebpageLink(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	hostname := strings.ToLower(u.Hostname())
	for _, host := range KnownHosts {
		if hostname == host || strings.HasSuffix(hostname, "."+host) {
			return true
		}
	}
	return false
}

// Resolver resolves a webpage link to a direct media URL.
type Resolver struct {
	client *http.Client
}

// New constructs a Resolver with its own bounded-timeout HTTP client.
func New() *Resolver {
	return &Resolver{client: &http.Client{
		Timeout: Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}}
}

// Resolve fetches rawURL and returns the og:video or og:audio URL found in
// its <head>. If nothing is found, or the fetch/parse fails, it returns
// rawURL unchanged so the caller can fall back to the original link — per
// the external-resolver-failure error policy.
func (r *Resolver) Resolve(rawURL string) (string, error) {
	if !LooksLikeWebpageLink(rawURL) {
		return rawURL, nil
	}

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return rawURL, err
	}
	req.Header.Set("User-Agent", "syncradio-resolver/1.0")
	req.Header.Set("Accept", "text/html")

	resp, err := r.client.Do(req)
	if err != nil {
		return rawURL, err
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, "text/html") && !strings.Contains(ct, "application/xhtml") {
		return rawURL, nil
	}

	body := io.LimitReader(resp.Body, MaxBody)
	media, err := scanForMediaTag(body)
	if err != nil {
		return rawURL, err
	}
	if media == "" {
		return rawURL, nil
	}
	return media, nil
}

// scanForMediaTag walks r's head looking for og:video or og:audio meta
// tags, stopping at <body> since media tags never appear after it.
func scanForMediaTag(r io.Reader) (string, error) {
	tokenizer := html.NewTokenizer(r)

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != io.EOF {
				return "", err
			}
			return "", nil

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tag := string(tn)

			if tag == "body" {
				return "", nil
			}
			if tag == "meta" && hasAttr {
				if media := mediaFromMeta(tokenizer); media != "" {
					return media, nil
				}
			}
		}
	}
}

func mediaFromMeta(tokenizer *html.Tokenizer) string {
	var property, content string
	for {
		key, val, more := tokenizer.TagAttr()
		switch string(key) {
		case "property", "name":
			property = string(val)
		case "content":
			content = string(val)
		}
		if !more {
			break
		}
	}
	if property == "og:video" || property == "og:video:url" || property == "og:audio" {
		return content
	}
	return ""
}
