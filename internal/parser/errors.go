package parser

import "errors"

var (
	// ErrUnresolvable is returned for hrefs that cannot be made absolute.
	ErrUnresolvable = errors.New("unresolvable link target")

	// ErrUnsupportedScheme is returned for absolute targets that are not http(s).
	ErrUnsupportedScheme = errors.New("unsupported link scheme")

	// ErrUnsafeURL is returned for addresses carrying quote, backslash,
	// whitespace or control characters.
	ErrUnsafeURL = errors.New("unsafe characters in url")
)
