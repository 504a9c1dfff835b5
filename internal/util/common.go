package util

import (
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/browser"
)

// ResolvePath joins base and rel, but if rel is an absolute path it is returned
// directly (cleaned). filepath.Join("a", "/b") returns "a/b", which is never
// what a config file means by an absolute path.
func ResolvePath(base, rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(base, rel)
}

// WriteJSONFile writes a JSON object to a file, creating parent directories if needed.
func WriteJSONFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// ExternalURL checks that raw may be handed to the OS and returns it
// normalized. Only http, https and mailto pass.
func ExternalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "https", "mailto":
	default:
		return "", errors.New("refusing to open url with scheme " + u.Scheme)
	}
	return u.String(), nil
}

// OpenURL opens a URL in the system's default browser.
func OpenURL(raw string) error {
	u, err := ExternalURL(raw)
	if err != nil {
		return err
	}
	return browser.OpenURL(u)
}

// IsBlankAddress reports whether an address means "nothing loaded".
func IsBlankAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	return addr == "" || addr == "about:blank"
}
