package parser

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// Resolve makes href absolute against base and strips its fragment. The
// result is always an http(s) address that passes IsSafe.
func Resolve(base *url.URL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", fmt.Errorf("%w: %q", ErrUnresolvable, href)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	return finish(abs)
}

// NormalizeURL validates an address given without a base, such as a seed.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}
	return finish(u)
}

func finish(u *url.URL) (string, error) {
	u.Fragment = ""
	u.RawFragment = ""

	if !u.IsAbs() {
		return "", fmt.Errorf("%w: %q", ErrUnresolvable, u.String())
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrUnresolvable, u.String())
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)

	address := u.String()
	if !IsSafe(address) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeURL, address)
	}
	return address, nil
}

// IsSafe reports whether address is free of characters that would break out
// of a quoted string in a textually built query.
func IsSafe(address string) bool {
	for _, r := range address {
		switch r {
		case '\'', '"', '`', '\\':
			return false
		}
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func ExtractDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Host
}
