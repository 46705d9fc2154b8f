package auditor

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Canonicalize normalizes a target URL so that trivially different
// spellings of the same page share one cache identity: the scheme
// defaults to https, scheme and host are lower-cased, the fragment is
// dropped and a trailing slash on the path is trimmed. Query parameters
// stay, since they can select a different page variant.
func Canonicalize(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("auditor: empty URL")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("auditor: invalid URL %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("auditor: URL %q has no host", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), nil
}

// Fingerprint returns the cache key for a canonical URL.
func Fingerprint(canonicalURL string) string {
	hash := md5.Sum([]byte(canonicalURL))
	return hex.EncodeToString(hash[:])
}
