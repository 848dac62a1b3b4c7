package simulate

import (
	"strings"

	"github.com/integrationkit/apphost/framework"
)

// NormalizePath removes one leading "~/" or, failing that, one leading "/" from url, giving a
// path relative to the application root. "~/home/index" and "/home/index" both become
// "home/index".
func NormalizePath(url string) string {
	if len(url) >= 2 && url[0] == '~' && url[1] == '/' {
		return url[2:]
	}
	return strings.TrimPrefix(url, "/")
}

// ParseURL normalizes url and splits it into a path and a query string at the first "?".
func ParseURL(url string) (path, query string, err error) {
	if url == "" {
		return "", "", &framework.ArgumentError{Name: "url", Reason: "must not be empty"}
	}
	path, query, _ = strings.Cut(NormalizePath(url), "?")
	return path, query, nil
}
