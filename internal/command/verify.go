package command

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Verifier checks that a proposed image URL points at a live PNG resource
// before it is stored in a chat record.
type Verifier struct {
	http *http.Client
}

// NewVerifier returns a Verifier with a bounded request timeout.
func NewVerifier() *Verifier {
	return &Verifier{http: &http.Client{Timeout: 30 * time.Second}}
}

// VerifyPNG confirms the URL serves a PNG. It issues a HEAD request first
// and falls back to GET when HEAD is unusable (transport failure or a
// server that rejects the method). Any non-success status fails the check.
// A declared content type other than image/png fails unless the URL path
// itself ends in .png, since static hosts often mislabel images.
func (v *Verifier) VerifyPNG(ctx context.Context, rawURL string) error {
	resp, err := v.request(ctx, http.MethodHead, rawURL)
	if err != nil || resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		if resp != nil {
			_ = resp.Body.Close()
		}
		resp, err = v.request(ctx, http.MethodGet, rawURL)
		if err != nil {
			return fmt.Errorf("command: fetching %s: %w", rawURL, err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("command: %s returned HTTP %d", rawURL, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/png") && !hasPNGPath(rawURL) {
		return fmt.Errorf("command: %s is %s, not image/png", rawURL, contentType)
	}
	return nil
}

func (v *Verifier) request(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return v.http.Do(req)
}

// hasPNGPath reports whether the URL path ends in .png, query aside.
func hasPNGPath(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".png")
}
